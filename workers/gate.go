package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cobranca/billing"
	"cobranca/db"
)

// Gate decides whether a due rule may run now. A rule runs at most once per
// calendar day in the reference timezone.
type Gate struct {
	store Store
}

func NewGate(store Store) Gate {
	return Gate{store: store}
}

// Admit returns true when the caller now owns the (rule, today) claim.
// A rule that already has a run log today, or whose claim is held by someone
// else, is skipped without error.
func (g Gate) Admit(ctx context.Context, ruleID int64, now time.Time) (bool, error) {
	ran, err := g.store.HasRunSince(ctx, ruleID, billing.StartOfDay(now))
	if err != nil {
		return false, fmt.Errorf("check runs of rule %d: %w", ruleID, err)
	}
	if ran {
		return false, nil
	}
	err = g.store.ClaimRun(ctx, ruleID, billing.RunDate(now), now)
	if errors.Is(err, db.ErrAlreadyClaimed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim rule %d: %w", ruleID, err)
	}
	return true, nil
}

// Release gives back a claim taken by Admit when the run never reached dispatch.
func (g Gate) Release(ctx context.Context, ruleID int64, now time.Time) error {
	return g.store.ReleaseClaim(ctx, ruleID, billing.RunDate(now))
}
