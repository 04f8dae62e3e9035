package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SellableItem is anything that can be rung up on an order. Its recipe may reference
// stock ingredients or other sellable items.
type SellableItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Active      bool            `gorm:"not null" json:"active"` // false = 86'd
	Unit        string          `gorm:"type:varchar(20)" json:"unit"`
	RecipeLines []RecipeLine    `gorm:"foreignKey:ItemID" json:"recipe_lines,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RecipeLine points at exactly one of IngredientID or SubItemID.
type RecipeLine struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ItemID       uint            `gorm:"not null;index" json:"item_id"`
	IngredientID *uint           `gorm:"index" json:"ingredient_id,omitempty"`
	SubItemID    *uint           `gorm:"index" json:"sub_item_id,omitempty"`
	Quantity     decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	Unit         string          `gorm:"type:varchar(20)" json:"unit"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (l RecipeLine) IsSubItem() bool {
	return l.SubItemID != nil
}
