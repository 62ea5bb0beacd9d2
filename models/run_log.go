package models

import (
	"encoding/json"
	"time"
)

/************************************************
/**** MARK: RUN STATUS ****/
/************************************************/
const RUN_STATUS_COMPLETED = "completed"
const RUN_STATUS_ERROR = "error"
const RUN_STATUS_NO_MATCHES = "no_matches"

// RunError é uma falha registrada durante a execução de uma regra.
// CustomerID = 0 quando a falha é da regra inteira (ex.: credencial ausente).
type RunError struct {
	CustomerID int64  `json:"customerId"`
	Message    string `json:"message"`
}

// RunLog registra uma execução de regra. Append-only.
type RunLog struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	RuleID         int64      `gorm:"not null;index:idx_billing_run_logs_rule_exec" json:"rule_id"`
	OwnerID        int64      `gorm:"not null;index" json:"owner_id"`
	ClientsMatched int        `gorm:"not null;default:0" json:"clients_matched"`
	MessagesSent   int        `gorm:"not null;default:0" json:"messages_sent"`
	MessagesFailed int        `gorm:"not null;default:0" json:"messages_failed"`
	ErrorsJSON     string     `gorm:"column:errors;type:text" json:"-"`
	Errors         []RunError `gorm:"-" json:"errors"`
	Status         string     `gorm:"not null;index" json:"status"`
	ExecutedAt     time.Time  `gorm:"not null;index:idx_billing_run_logs_rule_exec" json:"executed_at"`
}

func (RunLog) TableName() string { return "billing_run_logs" }

// BeforeSave serializa Errors na coluna texto.
func (l *RunLog) BeforeSave() error {
	if l.Errors == nil {
		l.ErrorsJSON = "[]"
		return nil
	}
	b, err := json.Marshal(l.Errors)
	if err != nil {
		return err
	}
	l.ErrorsJSON = string(b)
	return nil
}

func (l *RunLog) AfterFind() error {
	l.Errors = []RunError{}
	if l.ErrorsJSON == "" {
		return nil
	}
	return json.Unmarshal([]byte(l.ErrorsJSON), &l.Errors)
}
