package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-core/config"
	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/utils"
)

// setupTestDB opens a private in-memory database. A single connection makes
// concurrent transactions queue up instead of racing on sqlite's table locks.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	utils.SilenceLoggers()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func requireDecEqual(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func createIngredient(t *testing.T, db *gorm.DB, name, unit, onHand, unitCost string) models.StockIngredient {
	t.Helper()
	ing := models.StockIngredient{
		Name:             name,
		Unit:             unit,
		OnHand:           dec(onHand),
		ReorderThreshold: decimal.Zero,
		Active:           true,
	}
	if unitCost != "" {
		ing.UnitCost = decimal.NewNullDecimal(dec(unitCost))
	}
	require.NoError(t, db.Create(&ing).Error)
	return ing
}

func createItem(t *testing.T, db *gorm.DB, name, price string) models.SellableItem {
	t.Helper()
	item := models.SellableItem{Name: name, Price: dec(price), Active: true, Unit: "each"}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func addIngredientLine(t *testing.T, db *gorm.DB, itemID, ingredientID uint, qty, unit string) {
	t.Helper()
	id := ingredientID
	require.NoError(t, db.Create(&models.RecipeLine{
		ItemID:       itemID,
		IngredientID: &id,
		Quantity:     dec(qty),
		Unit:         unit,
	}).Error)
}

func addSubItemLine(t *testing.T, db *gorm.DB, itemID, subItemID uint, qty string) {
	t.Helper()
	id := subItemID
	require.NoError(t, db.Create(&models.RecipeLine{
		ItemID:    itemID,
		SubItemID: &id,
		Quantity:  dec(qty),
		Unit:      "each",
	}).Error)
}

func onHand(t *testing.T, db *gorm.DB, ingredientID uint) decimal.Decimal {
	t.Helper()
	var ing models.StockIngredient
	require.NoError(t, db.First(&ing, ingredientID).Error)
	return ing.OnHand
}

// pizzaMenu is a two-level menu: Bacon Pizza is a Pizza plus bacon.
type pizzaMenu struct {
	dough, box, bacon models.StockIngredient
	pizza, baconPizza models.SellableItem
}

func seedPizzaMenu(t *testing.T, db *gorm.DB) pizzaMenu {
	t.Helper()
	m := pizzaMenu{
		dough: createIngredient(t, db, "Dough", "each", "100", "4.26"),
		box:   createIngredient(t, db, "Box", "each", "100", "0.45"),
		bacon: createIngredient(t, db, "Bacon", "lb", "50", "5.30"),
	}
	m.pizza = createItem(t, db, "Pizza", "12.99")
	addIngredientLine(t, db, m.pizza.ID, m.dough.ID, "1", "each")
	addIngredientLine(t, db, m.pizza.ID, m.box.ID, "1", "each")

	m.baconPizza = createItem(t, db, "Bacon Pizza", "16.99")
	addSubItemLine(t, db, m.baconPizza.ID, m.pizza.ID, "1")
	addIngredientLine(t, db, m.baconPizza.ID, m.bacon.ID, "0.1", "lb")
	return m
}

func openSession(t *testing.T, db *gorm.DB, terminal int, employee uint) models.RegisterSession {
	t.Helper()
	s, err := NewRegisterService(db, NewAuditService(db)).Open(context.Background(), terminal, employee, "")
	require.NoError(t, err)
	return *s
}

func newTestOrderService(db *gorm.DB) *OrderService {
	return NewOrderService(db, config.EngineConfig{MaxRecipeDepth: 2, MaxRetries: 3})
}

func cashFor(amount string) []PaymentInput {
	return []PaymentInput{{Amount: decPtr(amount), Method: "cash"}}
}
