package workers

import (
	"context"
	"errors"
	"strings"
	"time"

	"cobranca/billing"
	"cobranca/metrics"
	"cobranca/models"

	"github.com/rs/zerolog"
)

// ErrMissingCredential aborts a rule before any send: the owner has no usable
// provider credential.
var ErrMissingCredential = errors.New("whatsapp credential missing or incomplete")

// DispatchResult is what one rule's send loop produced.
type DispatchResult struct {
	Sent        int
	Failed      int
	Errors      []models.RunError
	Interrupted bool
}

// Dispatcher sends the rendered template to each candidate, one at a time,
// pausing a random delay between sends.
type Dispatcher struct {
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

// Dispatch runs the send loop. It returns ErrMissingCredential without sending
// anything when cred is nil or unusable. Per-customer failures never stop the
// loop; a cancelled ctx does, and the result is flagged Interrupted.
func (d Dispatcher) Dispatch(ctx context.Context, rule billing.Rule, cands []billing.Candidate, cred *models.WhatsAppConfig) (DispatchResult, error) {
	var res DispatchResult
	if cred == nil || !cred.Usable() {
		return res, ErrMissingCredential
	}
	c := *cred
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = d.DefaultBaseURL
	}
	sender := d.NewSender(c)

	for i, cand := range cands {
		if i > 0 {
			if err := d.Waiter.Wait(ctx, d.Jitter.Delay(rule.DelayMin, rule.DelayMax)); err != nil {
				res.interrupt(err)
				break
			}
		} else if err := ctx.Err(); err != nil {
			res.interrupt(err)
			break
		}

		text := billing.Render(rule.Template, billing.CustomerVars(cand.Customer))
		log := d.Log.With().Int64("customer_id", cand.Customer.ID).Str("status", string(cand.Status)).Logger()

		if err := d.send(ctx, sender, cand.Customer.Phone, text); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, models.RunError{CustomerID: cand.Customer.ID, Message: err.Error()})
			d.Metrics.Message(false)
			log.Warn().Err(err).Msg("billing: send failed")
			continue
		}
		res.Sent++
		d.Metrics.Message(true)
		log.Debug().Msg("billing: sent")

		entry := &models.MessageLog{
			OwnerID:    rule.OwnerID,
			RuleID:     rule.ID,
			CustomerID: cand.Customer.ID,
			Status:     string(cand.Status),
			Message:    text,
			Delivery:   models.MESSAGE_STATUS_SENT,
			SentAt:     d.Clock.Now(),
		}
		if err := d.Store.AppendMessageLog(context.WithoutCancel(ctx), entry); err != nil {
			log.Warn().Err(err).Msg("billing: message log not saved")
		}
	}
	return res, nil
}

func (d Dispatcher) send(ctx context.Context, sender Sender, phone, text string) error {
	timeout := d.ProviderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sender.SendText(sendCtx, phone, text)
}

func (r *DispatchResult) interrupt(cause error) {
	r.Interrupted = true
	r.Errors = append(r.Errors, models.RunError{Message: "interrupted: " + cause.Error()})
}
