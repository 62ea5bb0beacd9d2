package workers

import (
	"context"
	"fmt"
	"time"

	"cobranca/models"
)

// RunOutcome is everything the run logger needs to close one rule execution.
type RunOutcome struct {
	RuleID    int64
	OwnerID   int64
	Matched   int
	Started   bool // dispatch loop entered
	Result    DispatchResult
	ExtraErrs []models.RunError
}

// Status maps an outcome to the stored run status.
func (o RunOutcome) Status() string {
	switch {
	case o.Matched == 0 && len(o.ExtraErrs) == 0:
		return models.RUN_STATUS_NO_MATCHES
	case !o.Started:
		return models.RUN_STATUS_ERROR
	case o.Result.Sent == 0:
		return models.RUN_STATUS_ERROR
	default:
		return models.RUN_STATUS_COMPLETED
	}
}

// RunLogger writes the single run log of a rule execution and rolls the
// counters up into the rule.
type RunLogger struct {
	Store Store
}

func (l RunLogger) Record(ctx context.Context, o RunOutcome, at time.Time) (*models.RunLog, error) {
	errs := append([]models.RunError{}, o.ExtraErrs...)
	errs = append(errs, o.Result.Errors...)

	entry := &models.RunLog{
		RuleID:         o.RuleID,
		OwnerID:        o.OwnerID,
		ClientsMatched: o.Matched,
		MessagesSent:   o.Result.Sent,
		MessagesFailed: o.Result.Failed,
		Errors:         errs,
		Status:         o.Status(),
		ExecutedAt:     at,
	}
	if err := l.Store.AppendRunLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("save run log of rule %d: %w", o.RuleID, err)
	}

	setCount := entry.Status != models.RUN_STATUS_NO_MATCHES
	if err := l.Store.UpdateRuleStats(ctx, o.RuleID, at, o.Result.Sent, setCount); err != nil {
		return entry, fmt.Errorf("update stats of rule %d: %w", o.RuleID, err)
	}
	return entry, nil
}
