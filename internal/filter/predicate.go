package filter

import (
	"slices"
	"time"

	"github.com/LeventeLantos/listsync/internal/model"
)

type Field string

const (
	FieldChannel            Field = "channel"
	FieldRepresentativeCode Field = "representativeCode"
	FieldCity               Field = "city"
	FieldSituation          Field = "situation"
)

// Predicate is one constraint category. The set of implementations is closed;
// compilers switch over the concrete types.
type Predicate interface {
	Match(c *model.Contact) bool
	predicate()
}

// InSet matches when the contact's field equals any of Values.
type InSet struct {
	Field  Field
	Values []string
}

func (p InSet) Match(c *model.Contact) bool {
	return slices.Contains(p.Values, fieldValue(c, p.Field))
}

// FoundedBetween matches founding dates within [From, To], both whole days.
type FoundedBetween struct {
	From time.Time
	To   time.Time
}

func (p FoundedBetween) Match(c *model.Contact) bool {
	if c.FoundationDate == nil {
		return false
	}
	d := dateOf(*c.FoundationDate)
	return !d.Before(p.From) && !d.After(p.To)
}

// FoundedInMonths matches founding dates in any of the calendar months (1-12),
// regardless of year.
type FoundedInMonths struct {
	Months []int
}

func (p FoundedInMonths) Match(c *model.Contact) bool {
	if c.FoundationDate == nil {
		return false
	}
	return slices.Contains(p.Months, int(c.FoundationDate.Month()))
}

// CreditLimitRange bounds the parsed credit limit; nil means open. Contacts
// whose limit is empty or unparsable never match.
type CreditLimitRange struct {
	Min *float64
	Max *float64
}

func (p CreditLimitRange) Match(c *model.Contact) bool {
	v, ok := ParseMoney(c.CreditLimit)
	if !ok {
		return false
	}
	if p.Min != nil && v < *p.Min {
		return false
	}
	if p.Max != nil && v > *p.Max {
		return false
	}
	return true
}

// HasAllTags requires every listed tag on the contact.
type HasAllTags struct {
	TagIDs []int64
}

func (p HasAllTags) Match(c *model.Contact) bool {
	for _, id := range p.TagIDs {
		if !slices.Contains(c.TagIDs, id) {
			return false
		}
	}
	return true
}

// IDIn restricts to a precomputed set of contact ids.
type IDIn struct {
	IDs []int64
}

func (p IDIn) Match(c *model.Contact) bool {
	return slices.Contains(p.IDs, c.ID)
}

func (InSet) predicate()            {}
func (FoundedBetween) predicate()   {}
func (FoundedInMonths) predicate()  {}
func (CreditLimitRange) predicate() {}
func (HasAllTags) predicate()       {}
func (IDIn) predicate()             {}

func fieldValue(c *model.Contact, f Field) string {
	switch f {
	case FieldChannel:
		return c.Channel
	case FieldRepresentativeCode:
		return c.RepresentativeCode
	case FieldCity:
		return c.City
	case FieldSituation:
		return string(c.Situation)
	}
	return ""
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
