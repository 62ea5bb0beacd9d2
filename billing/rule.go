package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MinDelaySeconds is the lowest gap allowed between two sends of a rule.
const MinDelaySeconds = 3

// Customer is the read-only view of a client record the engine works with.
type Customer struct {
	ID         int64
	OwnerID    int64
	Name       string
	Phone      string // empty when the record has no contact
	Plan       string
	Expiration time.Time
	Valor      decimal.Decimal
	Suspended  bool

	Server   string
	Username string
	Password string
	App      string
	Screens  int
}

// Rule is a validated billing rule. Build it with NewRule.
type Rule struct {
	ID           int64
	OwnerID      int64
	Name         string
	Active       bool
	Template     string
	StatusFilter []StatusKey
	Period       Period
	DelayMin     int
	DelayMax     int
	SendHour     int
	SendMinute   int
}

// RuleInput carries the loosely typed fields as stored or as posted by the UI.
type RuleInput struct {
	ID              int64
	OwnerID         int64
	Name            string
	Active          bool
	Template        string
	StatusFilter    []string
	PeriodType      string
	PeriodValue     int
	PeriodDirection string
	DelayMin        int
	DelayMax        int
	SendHour        int
	SendMinute      int
}

// NewRule validates in and returns the typed rule. All problems are joined
// into one error.
func NewRule(in RuleInput) (Rule, error) {
	var errs []error

	filter := make([]StatusKey, 0, len(in.StatusFilter))
	seen := map[StatusKey]bool{}
	for _, raw := range in.StatusFilter {
		s, err := ParseStatusKey(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !seen[s] {
			seen[s] = true
			filter = append(filter, s)
		}
	}

	pt, err := ParsePeriodType(in.PeriodType)
	if err != nil {
		errs = append(errs, err)
	}
	dir, err := ParseDirection(in.PeriodDirection)
	if err != nil {
		errs = append(errs, err)
	}
	if in.PeriodValue < 0 {
		errs = append(errs, fmt.Errorf("period value must be >= 0, got %d", in.PeriodValue))
	}
	if in.DelayMin < MinDelaySeconds {
		errs = append(errs, fmt.Errorf("delay min must be >= %d seconds, got %d", MinDelaySeconds, in.DelayMin))
	}
	if in.DelayMax < in.DelayMin {
		errs = append(errs, fmt.Errorf("delay max (%d) must be >= delay min (%d)", in.DelayMax, in.DelayMin))
	}
	if in.SendHour < 0 || in.SendHour > 23 {
		errs = append(errs, fmt.Errorf("send hour out of range: %d", in.SendHour))
	}
	if in.SendMinute < 0 || in.SendMinute > 59 {
		errs = append(errs, fmt.Errorf("send minute out of range: %d", in.SendMinute))
	}
	if strings.TrimSpace(in.Template) == "" {
		errs = append(errs, errors.New("message template is required"))
	}

	if len(errs) > 0 {
		return Rule{}, fmt.Errorf("rule %d: %w", in.ID, errors.Join(errs...))
	}

	return Rule{
		ID:           in.ID,
		OwnerID:      in.OwnerID,
		Name:         in.Name,
		Active:       in.Active,
		Template:     in.Template,
		StatusFilter: filter,
		Period:       Period{Type: pt, Value: in.PeriodValue, Direction: dir},
		DelayMin:     in.DelayMin,
		DelayMax:     in.DelayMax,
		SendHour:     in.SendHour,
		SendMinute:   in.SendMinute,
	}, nil
}

// DueAt reports whether the rule's send time equals now's hour and minute.
func (r Rule) DueAt(now time.Time) bool {
	return now.Hour() == r.SendHour && now.Minute() == r.SendMinute
}

func (r Rule) filters(s StatusKey) bool {
	if len(r.StatusFilter) == 0 {
		return true
	}
	for _, f := range r.StatusFilter {
		if f == s {
			return true
		}
	}
	return false
}
