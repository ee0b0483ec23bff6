package filter

import (
	"slices"
	"time"

	"github.com/LeventeLantos/listsync/internal/model"
)

// Query is a conjunction of predicates.
type Query struct {
	Predicates []Predicate
}

func (q Query) Match(c *model.Contact) bool {
	for _, p := range q.Predicates {
		if !p.Match(c) {
			return false
		}
	}
	return true
}

// Tags returns the tag predicate, if any.
func (q Query) Tags() (HasAllTags, bool) {
	for _, p := range q.Predicates {
		if t, ok := p.(HasAllTags); ok {
			return t, true
		}
	}
	return HasAllTags{}, false
}

// WithContactIDs swaps the tag predicate for an id restriction computed from
// the tag associations.
func (q Query) WithContactIDs(ids []int64) Query {
	out := Query{Predicates: make([]Predicate, 0, len(q.Predicates))}
	replaced := false
	for _, p := range q.Predicates {
		if _, ok := p.(HasAllTags); ok {
			out.Predicates = append(out.Predicates, IDIn{IDs: ids})
			replaced = true
			continue
		}
		out.Predicates = append(out.Predicates, p)
	}
	if !replaced {
		out.Predicates = append(out.Predicates, IDIn{IDs: ids})
	}
	return out
}

// Compile validates the spec and builds its predicates in a fixed order.
func Compile(s Spec) (Query, error) {
	s = s.normalized()
	if s.IsEmpty() {
		return Query{}, model.NewValidationError(model.StageInput, "no filter informed")
	}

	var q Query
	sets := []struct {
		field  Field
		values []string
	}{
		{FieldChannel, s.Channel},
		{FieldRepresentativeCode, s.RepresentativeCode},
		{FieldCity, s.City},
		{FieldSituation, s.Situation},
	}
	for _, set := range sets {
		if len(set.values) > 0 {
			q.Predicates = append(q.Predicates, InSet{Field: set.field, Values: set.values})
		}
	}

	if s.MonthYear != "" {
		start, err := time.Parse("2006-01", s.MonthYear)
		if err != nil {
			return Query{}, model.NewValidationError(model.StageMonthYear, "invalid value %q, expected YYYY-MM", s.MonthYear)
		}
		q.Predicates = append(q.Predicates, FoundedBetween{
			From: start,
			To:   start.AddDate(0, 1, -1),
		})
	}

	if len(s.FoundationMonths) > 0 {
		months := make([]int, 0, len(s.FoundationMonths))
		for _, m := range s.FoundationMonths {
			if m < 1 || m > 12 {
				return Query{}, model.NewValidationError(model.StageMonthYear, "invalid month %d", m)
			}
			if !slices.Contains(months, m) {
				months = append(months, m)
			}
		}
		slices.Sort(months)
		q.Predicates = append(q.Predicates, FoundedInMonths{Months: months})
	}

	if s.MinCreditLimit != "" || s.MaxCreditLimit != "" {
		var r CreditLimitRange
		if s.MinCreditLimit != "" {
			v, ok := ParseMoney(s.MinCreditLimit)
			if !ok {
				return Query{}, model.NewValidationError(model.StageCreditLimit, "invalid minimum %q", s.MinCreditLimit)
			}
			r.Min = &v
		}
		if s.MaxCreditLimit != "" {
			v, ok := ParseMoney(s.MaxCreditLimit)
			if !ok {
				return Query{}, model.NewValidationError(model.StageCreditLimit, "invalid maximum %q", s.MaxCreditLimit)
			}
			r.Max = &v
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return Query{}, model.NewValidationError(model.StageCreditLimit, "minimum %s is above maximum %s", s.MinCreditLimit, s.MaxCreditLimit)
		}
		q.Predicates = append(q.Predicates, r)
	}

	if len(s.Tags) > 0 {
		ids := make([]int64, 0, len(s.Tags))
		for _, id := range s.Tags {
			if id <= 0 {
				return Query{}, model.NewValidationError(model.StageTags, "invalid tag id %d", id)
			}
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		q.Predicates = append(q.Predicates, HasAllTags{TagIDs: ids})
	}

	return q, nil
}

// ContactsWithAllTags groups association rows per contact and keeps the
// contacts holding every required tag, in ascending id order.
func ContactsWithAllTags(rows []model.ContactTag, required []int64) []int64 {
	byContact := make(map[int64]map[int64]struct{})
	for _, r := range rows {
		set, ok := byContact[r.ContactID]
		if !ok {
			set = make(map[int64]struct{})
			byContact[r.ContactID] = set
		}
		set[r.TagID] = struct{}{}
	}

	var ids []int64
	for contactID, tags := range byContact {
		all := true
		for _, t := range required {
			if _, ok := tags[t]; !ok {
				all = false
				break
			}
		}
		if all {
			ids = append(ids, contactID)
		}
	}
	slices.Sort(ids)
	return ids
}
