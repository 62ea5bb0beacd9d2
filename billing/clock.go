package billing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultTimezone is the business timezone used to decide "today" and send times.
const DefaultTimezone = "America/Sao_Paulo"

// Clock gives the current time already converted to the reference timezone.
type Clock interface {
	Now() time.Time
}

// ZoneClock reads the system clock and converts it to Location.
type ZoneClock struct {
	Location *time.Location
}

func NewZoneClock(tz string) (ZoneClock, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return ZoneClock{}, err
	}
	return ZoneClock{Location: loc}, nil
}

func (c ZoneClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RunDate is the calendar key used to claim a rule for one day.
func RunDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Waiter pauses between two sends.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// SleepWaiter blocks on a real timer. It returns early with ctx.Err() when ctx ends.
type SleepWaiter struct{}

func (SleepWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !tmr.Stop() {
			<-tmr.C
		}
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

// Jitter draws uniform delays in [min, max] seconds.
type Jitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewJitter(seed int64) *Jitter {
	return &Jitter{rng: rand.New(rand.NewSource(seed))}
}

// Delay returns a duration between minSec and maxSec seconds inclusive, at
// millisecond resolution.
func (j *Jitter) Delay(minSec, maxSec int) time.Duration {
	lo := time.Duration(minSec) * time.Second
	hi := time.Duration(maxSec) * time.Second
	if hi <= lo {
		return lo
	}
	steps := int64((hi - lo) / time.Millisecond)
	j.mu.Lock()
	n := j.rng.Int63n(steps + 1)
	j.mu.Unlock()
	return lo + time.Duration(n)*time.Millisecond
}
