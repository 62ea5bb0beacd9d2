package workers

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner is what the minute trigger fires. *Engine implements it.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// StartBillingTrigger fires r.Run at the top of every minute in loc, as an
// external cron hitting the trigger endpoint would. Ticks that arrive while a
// run is still going are dropped. Stop the returned cron on shutdown.
func StartBillingTrigger(ctx context.Context, r Runner, loc *time.Location, log zerolog.Logger) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc("* * * * *", func() {
		sum, err := r.Run(ctx)
		switch {
		case errors.Is(err, ErrInvocationInProgress):
			log.Debug().Msg("billing trigger: previous run still going")
		case err != nil:
			log.Error().Err(err).Msg("billing trigger: run failed")
		case sum.RulesProcessed > 0:
			log.Info().Int("processed", sum.RulesProcessed).Int("sent", sum.TotalSent).Msg("billing trigger: tick")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
