package billing

import (
	"strings"
	"time"
)

// Candidate is a customer selected by a rule, with the state it was selected in.
type Candidate struct {
	Customer Customer
	Status   StatusKey
	Diff     int
}

// Evaluate classifies c against today and reports whether the rule selects it.
func (r Rule) Evaluate(c Customer, today time.Time) (Candidate, bool) {
	diff := DaysBetween(c.Expiration, today)
	cand := Candidate{Customer: c, Status: ClassifyDiff(diff), Diff: diff}

	if strings.TrimSpace(c.Phone) == "" {
		return cand, false
	}
	if !r.filters(cand.Status) {
		return cand, false
	}
	if !r.Period.Contains(diff) {
		return cand, false
	}
	return cand, true
}

// Match returns the customers of roster the rule selects, in roster order.
func Match(r Rule, roster []Customer, today time.Time) []Candidate {
	out := make([]Candidate, 0)
	for _, c := range roster {
		if cand, ok := r.Evaluate(c, today); ok {
			out = append(out, cand)
		}
	}
	return out
}
