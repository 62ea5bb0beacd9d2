package billing

import (
	"fmt"
	"strings"
)

type PeriodType string

const (
	PeriodHours  PeriodType = "hours"
	PeriodDays   PeriodType = "days"
	PeriodWeeks  PeriodType = "weeks"
	PeriodMonths PeriodType = "months"
)

// dayMultiplier converts one unit of a period into days. Hours give a fractional
// target that integer day differences can only meet at 0.
var dayMultiplier = map[PeriodType]float64{
	PeriodHours:  1.0 / 24.0,
	PeriodDays:   1,
	PeriodWeeks:  7,
	PeriodMonths: 30,
}

func ParsePeriodType(raw string) (PeriodType, error) {
	p := PeriodType(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return PeriodDays, nil
	}
	if _, ok := dayMultiplier[p]; !ok {
		return "", fmt.Errorf("unknown period type %q", raw)
	}
	return p, nil
}

// Days returns value expressed in days.
func (p PeriodType) Days(value int) float64 {
	return float64(value) * dayMultiplier[p]
}

type Direction string

const (
	DirectionBefore Direction = "before"
	DirectionAfter  Direction = "after"
)

func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DirectionBefore:
		return DirectionBefore, nil
	case DirectionAfter:
		return DirectionAfter, nil
	}
	return "", fmt.Errorf("unknown period direction %q", raw)
}

// Period is the optional time window of a rule. A zero Value disables it.
type Period struct {
	Type      PeriodType
	Value     int
	Direction Direction
}

func (p Period) Enabled() bool { return p.Value > 0 }

// Contains reports whether a day difference (expiration minus today) falls in the window.
func (p Period) Contains(diff int) bool {
	if !p.Enabled() {
		return true
	}
	target := p.Type.Days(p.Value)
	d := float64(diff)
	if p.Direction == DirectionAfter {
		return diff <= 0 && -d <= target
	}
	return diff >= 0 && d <= target
}
