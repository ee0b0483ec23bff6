// Package filter turns a saved-filter specification into a closed set of
// predicates that can be matched in memory or compiled to SQL.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Spec is the wire and storage shape of a contact filter. Absent or empty
// fields are not applied as constraints.
type Spec struct {
	Channel            []string `json:"channel,omitempty"`
	RepresentativeCode []string `json:"representativeCode,omitempty"`
	City               []string `json:"city,omitempty"`
	Situation          []string `json:"situation,omitempty"`
	MonthYear          string   `json:"monthYear,omitempty"`
	FoundationMonths   []int    `json:"foundationMonths,omitempty"`
	MinCreditLimit     string   `json:"minCreditLimit,omitempty"`
	MaxCreditLimit     string   `json:"maxCreditLimit,omitempty"`
	Tags               []int64  `json:"tags,omitempty"`
}

// Decode reads a persisted spec. A null or empty document yields the zero Spec.
func Decode(raw []byte) (Spec, error) {
	var s Spec
	if len(raw) == 0 || string(raw) == "null" {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return Spec{}, fmt.Errorf("decode filter: %w", err)
	}
	return s.normalized(), nil
}

func (s Spec) Encode() (json.RawMessage, error) {
	return json.Marshal(s.normalized())
}

// IsEmpty reports whether the spec carries no constraint at all.
func (s Spec) IsEmpty() bool {
	n := s.normalized()
	return len(n.Channel) == 0 &&
		len(n.RepresentativeCode) == 0 &&
		len(n.City) == 0 &&
		len(n.Situation) == 0 &&
		n.MonthYear == "" &&
		len(n.FoundationMonths) == 0 &&
		n.MinCreditLimit == "" &&
		n.MaxCreditLimit == "" &&
		len(n.Tags) == 0
}

func (s Spec) normalized() Spec {
	return Spec{
		Channel:            cleanStrings(s.Channel),
		RepresentativeCode: cleanStrings(s.RepresentativeCode),
		City:               cleanStrings(s.City),
		Situation:          cleanStrings(s.Situation),
		MonthYear:          strings.TrimSpace(s.MonthYear),
		FoundationMonths:   s.FoundationMonths,
		MinCreditLimit:     strings.TrimSpace(s.MinCreditLimit),
		MaxCreditLimit:     strings.TrimSpace(s.MaxCreditLimit),
		Tags:               s.Tags,
	}
}

func cleanStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
