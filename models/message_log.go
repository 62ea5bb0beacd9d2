package models

import "time"

const MESSAGE_STATUS_SENT = "sent"

// MessageLog guarda cada mensagem entregue ao provedor. Append-only.
type MessageLog struct {
	ID         int64     `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	OwnerID    int64     `gorm:"not null;index" json:"owner_id"`
	RuleID     int64     `gorm:"not null;index" json:"rule_id"`
	CustomerID int64     `gorm:"not null;index" json:"customer_id"`
	Status     string    `gorm:"column:customer_status;not null" json:"customer_status"` // estado do ciclo no envio
	Message    string    `gorm:"type:text" json:"message"`
	Delivery   string    `gorm:"column:delivery_status;not null;default:'sent'" json:"delivery_status"`
	SentAt     time.Time `gorm:"not null;index" json:"sent_at"`
}

func (MessageLog) TableName() string { return "billing_message_logs" }
