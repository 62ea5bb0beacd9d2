package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"cobranca/models"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrAlreadyClaimed means another invocation already took (rule, day).
var ErrAlreadyClaimed = errors.New("rule already claimed for this day")

// BillingStore is the gorm persistence used by the billing dispatch.
// Times are written in UTC so range filters compare the same way on every dialect.
type BillingStore struct {
	db *gorm.DB
}

func NewBillingStore(db *gorm.DB) *BillingStore {
	return &BillingStore{db: db}
}

// DueRules returns the active rules scheduled for hour:minute, ordered by id.
func (s *BillingStore) DueRules(_ context.Context, hour, minute int) ([]models.BillingRule, error) {
	var rules []models.BillingRule
	err := s.db.
		Where("is_active = ? AND send_hour = ? AND send_minute = ?", true, hour, minute).
		Order("id asc").
		Find(&rules).Error
	return rules, err
}

func (s *BillingStore) Rule(_ context.Context, id int64) (*models.BillingRule, error) {
	var rule models.BillingRule
	if err := s.db.First(&rule, id).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// HasRunSince reports whether the rule has any run log at or after since.
func (s *BillingStore) HasRunSince(_ context.Context, ruleID int64, since time.Time) (bool, error) {
	var n int
	err := s.db.Model(&models.RunLog{}).
		Where("rule_id = ? AND executed_at >= ?", ruleID, since.UTC()).
		Count(&n).Error
	return n > 0, err
}

// ClaimRun inserts the (rule, day) claim. A duplicate returns ErrAlreadyClaimed.
func (s *BillingStore) ClaimRun(_ context.Context, ruleID int64, runDate string, at time.Time) error {
	claim := models.RunClaim{RuleID: ruleID, RunDate: runDate, ClaimedAt: at.UTC()}
	err := s.db.Create(&claim).Error
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadyClaimed
	}
	return err
}

// ReleaseClaim drops a claim whose run never reached dispatch.
func (s *BillingStore) ReleaseClaim(_ context.Context, ruleID int64, runDate string) error {
	return s.db.
		Where("rule_id = ? AND run_date = ?", ruleID, runDate).
		Delete(&models.RunClaim{}).Error
}

func (s *BillingStore) Customers(_ context.Context, ownerID int64) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.Where("owner_id = ?", ownerID).Order("id asc").Find(&customers).Error
	return customers, err
}

// Credential returns nil, nil when the owner has no provider credential.
func (s *BillingStore) Credential(_ context.Context, ownerID int64) (*models.WhatsAppConfig, error) {
	var wa models.WhatsAppConfig
	if err := s.db.Where("owner_id = ?", ownerID).First(&wa).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &wa, nil
}

func (s *BillingStore) AppendMessageLog(_ context.Context, m *models.MessageLog) error {
	m.SentAt = m.SentAt.UTC()
	return s.db.Create(m).Error
}

func (s *BillingStore) AppendRunLog(_ context.Context, l *models.RunLog) error {
	l.ExecutedAt = l.ExecutedAt.UTC()
	return s.db.Create(l).Error
}

// UpdateRuleStats sets last_run_at, adds sent to total_sent and, when
// setCount is true, stores sent as last_run_count.
func (s *BillingStore) UpdateRuleStats(_ context.Context, ruleID int64, at time.Time, sent int, setCount bool) error {
	at = at.UTC()
	fields := map[string]any{
		"last_run_at": &at,
		"total_sent":  gorm.Expr("total_sent + ?", sent),
	}
	if setCount {
		fields["last_run_count"] = sent
	}
	res := s.db.Model(&models.BillingRule{}).Where("id = ?", ruleID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecentRuns lists the newest run logs of a rule.
func (s *BillingStore) RecentRuns(_ context.Context, ruleID int64, limit int) ([]models.RunLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.RunLog
	err := s.db.Where("rule_id = ?", ruleID).Order("executed_at desc, id desc").Limit(limit).Find(&logs).Error
	return logs, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
