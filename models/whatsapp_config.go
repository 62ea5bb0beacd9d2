package models

import (
	"strings"
	"time"
)

const (
	WHATSAPP_STATUS_PENDING   = "pending"
	WHATSAPP_STATUS_CONNECTED = "connected"
)

// WhatsAppConfig guarda a credencial do provedor de mensagens de cada revendedor.
// Uma linha por owner (multi-tenant). O pareamento (QR/código) é feito fora daqui.
type WhatsAppConfig struct {
	ID         int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	OwnerID    int64      `gorm:"not null;unique_index" json:"owner_id"`
	BaseURL    string     `gorm:"column:base_url;default:''" json:"base_url"`
	InstanceID string     `gorm:"column:instance_id;not null" json:"instance_id"`
	Token      string     `gorm:"column:token;not null" json:"-"`
	Status     string     `gorm:"column:status;not null;default:'pending'" json:"status"`
	CreatedAt  *time.Time `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

// Usable reports whether the row carries enough to authenticate a send.
func (w WhatsAppConfig) Usable() bool {
	return strings.TrimSpace(w.InstanceID) != "" && strings.TrimSpace(w.Token) != ""
}
