package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CustomerProfile struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Contact       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"contact"`
	Name          string          `gorm:"type:varchar(255)" json:"name"`
	OrderCount    int             `gorm:"not null;default:0" json:"order_count"`
	LifetimeTotal decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"lifetime_total"`
	LastOrderAt   *time.Time      `json:"last_order_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
