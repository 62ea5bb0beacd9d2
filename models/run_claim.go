package models

import "time"

// RunClaim reserva (regra, dia) antes do disparo. O índice único garante que
// só uma execução por dia passe, mesmo com dois gatilhos simultâneos.
type RunClaim struct {
	ID        int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	RuleID    int64     `gorm:"not null;unique_index:ux_billing_run_claims_rule_day" json:"rule_id"`
	RunDate   string    `gorm:"not null;size:10;unique_index:ux_billing_run_claims_rule_day" json:"run_date"` // YYYY-MM-DD no fuso de referência
	ClaimedAt time.Time `gorm:"not null" json:"claimed_at"`
}

func (RunClaim) TableName() string { return "billing_run_claims" }
