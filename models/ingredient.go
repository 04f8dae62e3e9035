package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockIngredient struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	Name             string              `gorm:"type:varchar(255);not null" json:"name"`
	Unit             string              `gorm:"type:varchar(20)" json:"unit"`
	OnHand           decimal.Decimal     `gorm:"type:decimal(14,4);not null" json:"on_hand"`
	UnitCost         decimal.NullDecimal `gorm:"type:decimal(12,4)" json:"unit_cost"`
	ReorderThreshold decimal.Decimal     `gorm:"type:decimal(14,4);not null" json:"reorder_threshold"`
	Active           bool                `gorm:"not null" json:"active"`
	Version          int64               `gorm:"not null;default:0" json:"version"` // bumped on every ledger write
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Movement types
const (
	MovementSale        = "sale"
	MovementVoidRestore = "void_restore"
	MovementAdjustment  = "adjustment"
)

// InventoryMovement is the append-only record of one on-hand change.
type InventoryMovement struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	IngredientID   uint            `gorm:"not null;index" json:"ingredient_id"`
	MovementType   string          `gorm:"type:varchar(20);not null;index" json:"movement_type"`
	QuantityChange decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity_change"`
	QuantityBefore decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity_before"`
	QuantityAfter  decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity_after"`
	OrderID        *uint           `gorm:"index" json:"order_id,omitempty"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CreatedBy      uint            `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}
