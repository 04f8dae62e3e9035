package models

import "gorm.io/gorm"

// All lists every table owned by the order fulfillment core.
func All() []interface{} {
	return []interface{}{
		&SellableItem{},
		&RecipeLine{},
		&StockIngredient{},
		&InventoryMovement{},
		&RegisterSession{},
		&CustomerProfile{},
		&Order{},
		&OrderLine{},
		&OrderPayment{},
		&AuditEntry{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
