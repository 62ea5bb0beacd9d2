package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cobranca/billing"
	"cobranca/metrics"
	"cobranca/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvocationInProgress is returned when Run is called while another
	// invocation of the same engine has not finished.
	ErrInvocationInProgress = errors.New("billing run already in progress")
	ErrRuleNotFound         = errors.New("billing rule not found")

	// ErrInvalidRule wraps the validation errors of a stored rule.
	ErrInvalidRule = errors.New("invalid billing rule")
)

// Summary is the trigger response.
type Summary struct {
	RulesProcessed int `json:"rulesProcessed"`
	TotalSent      int `json:"totalSent"`
	RulesSkipped   int `json:"rulesSkipped"`
}

type Options struct {
	Store           Store
	Clock           billing.Clock
	Waiter          billing.Waiter
	Jitter          *billing.Jitter
	NewSender       SenderFactory
	ProviderTimeout time.Duration
	DefaultBaseURL  string
	Log             zerolog.Logger
	Metrics         *metrics.Metrics
}

// Engine runs the billing rules due at the current minute.
type Engine struct {
	store      Store
	clock      billing.Clock
	gate       Gate
	dispatcher Dispatcher
	runs       RunLogger
	log        zerolog.Logger
	metrics    *metrics.Metrics

	mu sync.Mutex
}

func NewEngine(o Options) *Engine {
	if o.Clock == nil {
		clock, err := billing.NewZoneClock(billing.DefaultTimezone)
		if err != nil {
			// no tzdata on the host
			clock = billing.ZoneClock{Location: time.UTC}
		}
		o.Clock = clock
	}
	if o.Waiter == nil {
		o.Waiter = billing.SleepWaiter{}
	}
	if o.Jitter == nil {
		o.Jitter = billing.NewJitter(time.Now().UnixNano())
	}
	return &Engine{
		store: o.Store,
		clock: o.Clock,
		gate:  NewGate(o.Store),
		dispatcher: Dispatcher{
			Store:           o.Store,
			Clock:           o.Clock,
			Waiter:          o.Waiter,
			Jitter:          o.Jitter,
			NewSender:       o.NewSender,
			ProviderTimeout: o.ProviderTimeout,
			DefaultBaseURL:  o.DefaultBaseURL,
			Log:             o.Log,
			Metrics:         o.Metrics,
		},
		runs:    RunLogger{Store: o.Store},
		log:     o.Log,
		metrics: o.Metrics,
	}
}

// Run executes one invocation: every active rule whose send time is the
// current minute goes through the gate, the matcher and the dispatcher, one
// rule after the other. A store failure aborts the invocation; run logs of
// the rules already processed are kept.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if !e.mu.TryLock() {
		e.metrics.Invocation("busy")
		return sum, ErrInvocationInProgress
	}
	defer e.mu.Unlock()

	log := e.log.With().Str("invocation", uuid.NewString()).Logger()
	now := e.clock.Now()

	rows, err := e.store.DueRules(ctx, now.Hour(), now.Minute())
	if err != nil {
		e.metrics.Invocation("error")
		return sum, fmt.Errorf("load due rules: %w", err)
	}
	log.Debug().Int("due", len(rows)).Str("at", now.Format("15:04")).Msg("billing: invocation started")

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			e.metrics.Invocation("error")
			return sum, err
		}
		ran, sent, err := e.runRule(ctx, log, row, now)
		if err != nil {
			e.metrics.Invocation("error")
			return sum, err
		}
		if !ran {
			sum.RulesSkipped++
			continue
		}
		sum.RulesProcessed++
		sum.TotalSent += sent
	}

	e.metrics.Invocation("ok")
	if len(rows) > 0 {
		log.Info().
			Int("processed", sum.RulesProcessed).
			Int("skipped", sum.RulesSkipped).
			Int("sent", sum.TotalSent).
			Msg("billing: invocation done")
	}
	return sum, nil
}

func (e *Engine) runRule(ctx context.Context, parent zerolog.Logger, row models.BillingRule, now time.Time) (bool, int, error) {
	log := parent.With().Int64("rule_id", row.ID).Int64("owner_id", row.OwnerID).Logger()
	started := time.Now()

	admitted, err := e.gate.Admit(ctx, row.ID, now)
	if err != nil {
		return false, 0, err
	}
	if !admitted {
		log.Debug().Msg("billing: rule already ran today, skipping")
		e.metrics.RuleRun("skipped", 0)
		return false, 0, nil
	}

	out := RunOutcome{RuleID: row.ID, OwnerID: row.OwnerID}

	rule, err := row.ToRule()
	if err != nil {
		log.Error().Err(err).Msg("billing: invalid rule")
		out.ExtraErrs = []models.RunError{{Message: err.Error()}}
		return e.finish(ctx, log, out, now, started)
	}

	customers, err := e.store.Customers(ctx, rule.OwnerID)
	if err != nil {
		e.release(ctx, log, row.ID, now)
		return false, 0, fmt.Errorf("load customers of owner %d: %w", rule.OwnerID, err)
	}
	roster := make([]billing.Customer, 0, len(customers))
	for _, c := range customers {
		roster = append(roster, c.ToBilling())
	}
	cands := billing.Match(rule, roster, now)
	out.Matched = len(cands)
	if out.Matched == 0 {
		return e.finish(ctx, log, out, now, started)
	}

	cred, err := e.store.Credential(ctx, rule.OwnerID)
	if err != nil {
		e.release(ctx, log, row.ID, now)
		return false, 0, fmt.Errorf("load credential of owner %d: %w", rule.OwnerID, err)
	}

	res, err := e.dispatcher.Dispatch(ctx, rule, cands, cred)
	if errors.Is(err, ErrMissingCredential) {
		log.Error().Err(err).Msg("billing: cannot dispatch")
		out.ExtraErrs = []models.RunError{{Message: err.Error()}}
		return e.finish(ctx, log, out, now, started)
	}
	out.Started = true
	out.Result = res
	if res.Interrupted {
		log.Warn().Int("sent", res.Sent).Msg("billing: dispatch interrupted")
	}
	return e.finish(ctx, log, out, now, started)
}

// finish records the run even when ctx was cancelled mid-dispatch.
func (e *Engine) finish(ctx context.Context, log zerolog.Logger, out RunOutcome, now, started time.Time) (bool, int, error) {
	entry, err := e.runs.Record(context.WithoutCancel(ctx), out, now)
	if err != nil {
		return true, out.Result.Sent, err
	}
	e.metrics.RuleRun(entry.Status, time.Since(started))
	log.Info().
		Str("status", entry.Status).
		Int("matched", out.Matched).
		Int("sent", out.Result.Sent).
		Int("failed", out.Result.Failed).
		Msg("billing: rule done")
	return true, out.Result.Sent, nil
}

func (e *Engine) release(ctx context.Context, log zerolog.Logger, ruleID int64, now time.Time) {
	if err := e.gate.Release(context.WithoutCancel(ctx), ruleID, now); err != nil {
		log.Warn().Err(err).Msg("billing: claim not released")
	}
}

// Preview lists who the rule would reach right now, without sending or
// claiming anything.
func (e *Engine) Preview(ctx context.Context, ruleID int64) ([]billing.Candidate, error) {
	row, err := e.store.Rule(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("load rule %d: %w", ruleID, err)
	}
	if row == nil {
		return nil, ErrRuleNotFound
	}
	rule, err := row.ToRule()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}
	customers, err := e.store.Customers(ctx, rule.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load customers of owner %d: %w", rule.OwnerID, err)
	}
	roster := make([]billing.Customer, 0, len(customers))
	for _, c := range customers {
		roster = append(roster, c.ToBilling())
	}
	return billing.Match(rule, roster, e.clock.Now()), nil
}
