package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-core/config"
	"github.com/yeremiapane/restaurant-core/models"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func useTempDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", path)
	t.Setenv("GORM_LOG", "off")
	return path
}

func TestMigrateCommand(t *testing.T) {
	path := useTempDatabase(t)

	out, err := runCommand(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration complete")

	db, err := config.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: path})
	require.NoError(t, err)
	for _, table := range models.All() {
		assert.True(t, db.Migrator().HasTable(table), fmt.Sprintf("%T", table))
	}
}

func TestCostCommand(t *testing.T) {
	path := useTempDatabase(t)
	_, err := runCommand(t, "migrate")
	require.NoError(t, err)

	db, err := config.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: path})
	require.NoError(t, err)

	dough := models.StockIngredient{Name: "Dough", Unit: "each", OnHand: decimal.NewFromInt(100),
		UnitCost: decimal.NewNullDecimal(decimal.RequireFromString("4.26")), Active: true}
	require.NoError(t, db.Create(&dough).Error)
	pizza := models.SellableItem{Name: "Pizza", Price: decimal.RequireFromString("12.99"), Active: true}
	require.NoError(t, db.Create(&pizza).Error)
	require.NoError(t, db.Create(&models.RecipeLine{
		ItemID: pizza.ID, IngredientID: &dough.ID, Quantity: decimal.NewFromInt(1), Unit: "each",
	}).Error)

	out, err := runCommand(t, "cost", fmt.Sprint(pizza.ID), "--quantity", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Pizza")
	assert.Contains(t, out, "unit cost:  4.26")
	assert.Contains(t, out, "Dough")
	assert.Contains(t, out, "3 each")
}

func TestCostCommandRejectsBadInput(t *testing.T) {
	useTempDatabase(t)

	_, err := runCommand(t, "cost", "abc", "--quantity", "1")
	assert.Error(t, err)

	_, err = runCommand(t, "cost", "1", "--quantity", "-2")
	assert.Error(t, err)
}

func TestReleaseModeRequiresJWTSecret(t *testing.T) {
	useTempDatabase(t)
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", "")

	_, err := runCommand(t, "migrate")
	assert.ErrorIs(t, err, config.ErrMissingJWTSecret)

	t.Setenv("JWT_SECRET", "release-secret")
	out, err := runCommand(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration complete")
}
