package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigits(t *testing.T) {
	assert.Equal(t, "5511912345678", Digits("+55 11 91234-5678"))
	assert.Equal(t, "", Digits("abc"))
	assert.Equal(t, "120363", Digits("120363@g.us"))
}

func TestKey_Matches(t *testing.T) {
	existing := KeyOf("+55 11 91234-5678", "")

	assert.True(t, existing.Matches(KeyOf("5511912345678", "")), "cross-format number")
	assert.True(t, existing.Matches(KeyOf("+55 11 91234-5678", "")), "raw number")
	assert.False(t, existing.Matches(KeyOf("5511900000000", "")))

	byMail := KeyOf("", "ana@example.com")
	assert.True(t, byMail.Matches(KeyOf("123", "ana@example.com")))
	assert.False(t, byMail.Matches(KeyOf("", "")), "empty email never matches")
}

func TestIndex_ContainsAndAdd(t *testing.T) {
	ix := NewIndex(KeyOf("+55 11 91234-5678", ""), KeyOf("", "bob@example.com"))

	assert.True(t, ix.Contains(KeyOf("5511912345678", "")))
	assert.True(t, ix.Contains(KeyOf("999", "bob@example.com")))
	assert.False(t, ix.Contains(KeyOf("", "")))
	assert.False(t, ix.Contains(KeyOf("4133334444", "carol@example.com")))

	ix.Add(KeyOf("4133334444", "carol@example.com"))
	assert.True(t, ix.Contains(KeyOf("41 3333-4444", "")))
}
