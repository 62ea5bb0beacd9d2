package models

import (
	"strings"
	"time"

	"cobranca/billing"

	"github.com/shopspring/decimal"
)

// Customer representa um cliente do revendedor.
// O CRUD fica fora deste serviço; aqui o registro é somente leitura.
type Customer struct {
	ID             int64           `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	OwnerID        int64           `gorm:"not null;index" json:"owner_id"`
	Name           string          `gorm:"not null" json:"name"`
	Phone          *string         `gorm:"column:phone" json:"phone"`
	Plan           string          `gorm:"default:''" json:"plan"`
	ExpirationDate time.Time       `gorm:"column:expiration_date;type:date;not null;index" json:"expiration_date"`
	Valor          decimal.Decimal `gorm:"column:valor;type:numeric(12,2);not null;default:0" json:"valor"`
	IsSuspended    bool            `gorm:"not null;default:false" json:"is_suspended"`

	Server   string `gorm:"column:server;default:''" json:"server"`
	Username string `gorm:"column:username;default:''" json:"username"`
	Password string `gorm:"column:password;default:''" json:"-"`
	App      string `gorm:"column:app;default:''" json:"app"`
	Screens  int    `gorm:"column:screens;default:0" json:"screens"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (c Customer) ToBilling() billing.Customer {
	phone := ""
	if c.Phone != nil {
		phone = strings.TrimSpace(*c.Phone)
	}
	return billing.Customer{
		ID:         c.ID,
		OwnerID:    c.OwnerID,
		Name:       c.Name,
		Phone:      phone,
		Plan:       c.Plan,
		Expiration: c.ExpirationDate,
		Valor:      c.Valor,
		Suspended:  c.IsSuspended,
		Server:     c.Server,
		Username:   c.Username,
		Password:   c.Password,
		App:        c.App,
		Screens:    c.Screens,
	}
}
