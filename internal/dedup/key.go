// Package dedup decides whether a candidate contact is already represented in
// a contact list. List items copy name/number/email instead of referencing the
// contact, so identity is the membership key, not the contact id.
package dedup

import (
	"strings"
	"unicode"
)

// Key is the membership identity of a list entry.
type Key struct {
	Raw    string
	Digits string
	Email  string
}

func KeyOf(number, email string) Key {
	return Key{
		Raw:    number,
		Digits: Digits(number),
		Email:  strings.TrimSpace(email),
	}
}

// Matches reports whether both keys denote the same member: equal raw number,
// equal digits-only number, or equal non-empty email.
func (k Key) Matches(o Key) bool {
	switch {
	case k.Raw != "" && k.Raw == o.Raw:
		return true
	case k.Digits != "" && k.Digits == o.Digits:
		return true
	case k.Email != "" && k.Email == o.Email:
		return true
	}
	return false
}

// Digits strips everything but ASCII digits, so "+55 11 91234-5678" and
// "5511912345678" compare equal.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
