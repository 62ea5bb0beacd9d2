// Package billing holds the pure rules of the billing notifications: lifecycle
// classification, rule matching and message rendering. Nothing here does I/O.
package billing

import (
	"fmt"
	"time"
)

// StatusKey is the lifecycle phase of a subscription relative to a reference day.
type StatusKey string

const (
	StatusActive  StatusKey = "active"
	StatusPre3    StatusKey = "pre3"
	StatusPre2    StatusKey = "pre2"
	StatusPre1    StatusKey = "pre1"
	StatusToday   StatusKey = "today"
	StatusPost1   StatusKey = "post1"
	StatusPost2   StatusKey = "post2"
	StatusExpired StatusKey = "expired"
)

// AllStatuses lists every key in lifecycle order.
var AllStatuses = []StatusKey{
	StatusActive,
	StatusPre3,
	StatusPre2,
	StatusPre1,
	StatusToday,
	StatusPost1,
	StatusPost2,
	StatusExpired,
}

// ParseStatusKey rejects anything that is not one of AllStatuses.
func ParseStatusKey(raw string) (StatusKey, error) {
	for _, s := range AllStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status key %q", raw)
}

// DaysBetween returns expiration minus reference in whole calendar days.
// Time of day is ignored; each value is read in its own location.
func DaysBetween(expiration, reference time.Time) int {
	e := civilDay(expiration)
	r := civilDay(reference)
	return int(e.Sub(r).Hours() / 24)
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClassifyDiff maps a signed day difference to its lifecycle state.
func ClassifyDiff(diff int) StatusKey {
	switch {
	case diff > 3:
		return StatusActive
	case diff == 3:
		return StatusPre3
	case diff == 2:
		return StatusPre2
	case diff == 1:
		return StatusPre1
	case diff == 0:
		return StatusToday
	case diff == -1:
		return StatusPost1
	case diff == -2:
		return StatusPost2
	default:
		return StatusExpired
	}
}

// Classify is ClassifyDiff(DaysBetween(expiration, reference)).
func Classify(expiration, reference time.Time) StatusKey {
	return ClassifyDiff(DaysBetween(expiration, reference))
}
