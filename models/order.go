package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusPickedUp  OrderStatus = "picked_up"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusVoid      OrderStatus = "void"
)

// FulfilledStatuses are the terminal states that count as a completed sale.
var FulfilledStatuses = []OrderStatus{OrderStatusCompleted, OrderStatusPickedUp, OrderStatusDelivered}

type Order struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Status            OrderStatus     `gorm:"type:varchar(20);not null;default:'confirmed';index" json:"status"`
	RegisterSessionID uint            `gorm:"not null;index" json:"register_session_id"`
	EmployeeID        uint            `gorm:"not null;index" json:"employee_id"`
	CustomerProfileID *uint           `gorm:"index" json:"customer_profile_id,omitempty"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TipAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tip_amount"`
	Total             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Voided            bool            `gorm:"not null;default:false" json:"voided"`
	VoidReason        string          `gorm:"type:text" json:"void_reason,omitempty"`
	VoidedAt          *time.Time      `json:"voided_at,omitempty"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Lines             []OrderLine     `gorm:"foreignKey:OrderID" json:"lines"`
	Payments          []OrderPayment  `gorm:"foreignKey:OrderID" json:"payments"`
}
