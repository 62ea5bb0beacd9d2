package workers

import (
	"context"
	"time"

	"cobranca/models"
)

// Store is the persistence the billing engine needs. *db.BillingStore
// implements it.
type Store interface {
	DueRules(ctx context.Context, hour, minute int) ([]models.BillingRule, error)
	Rule(ctx context.Context, id int64) (*models.BillingRule, error)
	HasRunSince(ctx context.Context, ruleID int64, since time.Time) (bool, error)
	ClaimRun(ctx context.Context, ruleID int64, runDate string, at time.Time) error
	ReleaseClaim(ctx context.Context, ruleID int64, runDate string) error
	Customers(ctx context.Context, ownerID int64) ([]models.Customer, error)
	Credential(ctx context.Context, ownerID int64) (*models.WhatsAppConfig, error)
	AppendMessageLog(ctx context.Context, m *models.MessageLog) error
	AppendRunLog(ctx context.Context, l *models.RunLog) error
	UpdateRuleStats(ctx context.Context, ruleID int64, at time.Time, sent int, setCount bool) error
}

// Sender delivers one text message. tools.WhatsAppClient implements it.
type Sender interface {
	SendText(ctx context.Context, phone string, message string) error
}

// SenderFactory builds the sender for one owner's credential.
type SenderFactory func(cred models.WhatsAppConfig) Sender
