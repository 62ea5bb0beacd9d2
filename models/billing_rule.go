package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cobranca/billing"
)

// BillingRule é a regra de cobrança automática criada pelo operador.
// Apenas LastRunAt, LastRunCount e TotalSent são alterados pelo disparo.
type BillingRule struct {
	ID              int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	OwnerID         int64      `gorm:"not null;index" json:"owner_id"`
	Name            string     `gorm:"not null" json:"name"`
	IsActive        bool       `gorm:"not null;default:true;index" json:"is_active"`
	MessageTemplate string     `gorm:"type:text;not null" json:"message_template"`
	StatusFilter    string     `gorm:"column:status_filter;type:text;default:'[]'" json:"status_filter"` // JSON array de status
	PeriodType      string     `gorm:"not null;default:'days'" json:"period_type"`
	PeriodValue     int        `gorm:"not null;default:0" json:"period_value"`
	PeriodDirection string     `gorm:"not null;default:'before'" json:"period_direction"`
	DelayMin        int        `gorm:"not null;default:5" json:"delay_min"`
	DelayMax        int        `gorm:"not null;default:15" json:"delay_max"`
	SendHour        int        `gorm:"not null;default:9;index:idx_billing_rules_send_time" json:"send_hour"`
	SendMinute      int        `gorm:"not null;default:0;index:idx_billing_rules_send_time" json:"send_minute"`
	LastRunAt       *time.Time `json:"last_run_at"`
	LastRunCount    int        `gorm:"not null;default:0" json:"last_run_count"`
	TotalSent       int64      `gorm:"not null;default:0" json:"total_sent"`
	CreatedAt       *time.Time `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// StatusKeys decodes the stored filter. Empty or blank means no filter.
func (r BillingRule) StatusKeys() ([]string, error) {
	raw := strings.TrimSpace(r.StatusFilter)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("status_filter inválido: %w", err)
	}
	return keys, nil
}

// ToRule validates the row and returns the typed rule used by the engine.
func (r BillingRule) ToRule() (billing.Rule, error) {
	keys, err := r.StatusKeys()
	if err != nil {
		return billing.Rule{}, fmt.Errorf("rule %d: %w", r.ID, err)
	}
	return billing.NewRule(billing.RuleInput{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Name:            r.Name,
		Active:          r.IsActive,
		Template:        r.MessageTemplate,
		StatusFilter:    keys,
		PeriodType:      r.PeriodType,
		PeriodValue:     r.PeriodValue,
		PeriodDirection: r.PeriodDirection,
		DelayMin:        r.DelayMin,
		DelayMax:        r.DelayMax,
		SendHour:        r.SendHour,
		SendMinute:      r.SendMinute,
	})
}
