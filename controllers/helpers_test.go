package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-core/config"
	"github.com/yeremiapane/restaurant-core/middlewares"
	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

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

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.ConfigureJWT(config.DevJWTSecret, "")
	db := setupTestDB(t)

	audit := services.NewAuditService(db)
	ledger := services.NewInventoryLedger(db)
	orders := NewOrderController(services.NewOrderService(db, config.EngineConfig{MaxRecipeDepth: 2, MaxRetries: 3}))
	registers := NewRegisterController(services.NewRegisterService(db, audit))
	inventory := NewInventoryController(ledger, audit)
	items := NewItemController(services.NewCostService(db, 2))
	admin := NewAdminController(services.NewTipsService(db), audit)
	customers := NewCustomerController(services.NewCustomerService(db))

	r := gin.New()
	r.Use(middlewares.RequestID())
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())

	api.POST("/orders", orders.CreateOrder)
	api.GET("/orders/:order_id", orders.GetOrderByID)
	api.PATCH("/orders/:order_id/status", orders.UpdateOrderStatus)
	api.POST("/orders/:order_id/void", orders.VoidOrder)
	api.POST("/registers/open", registers.OpenRegister)
	api.POST("/registers/:session_id/close", registers.CloseRegister)
	api.GET("/registers/terminal/:terminal", registers.CurrentRegister)
	api.GET("/registers/:session_id/summary", registers.RegisterSummary)
	api.GET("/inventory", inventory.GetStockLevels)
	api.GET("/inventory/:ingredient_id/preview", inventory.PreviewStockChange)
	api.POST("/inventory/:ingredient_id/adjust", inventory.AdjustStock)
	api.GET("/items/:item_id/cost", items.GetItemCost)
	api.GET("/items/:item_id/explode", items.ExplodeItem)
	api.GET("/customers/:contact", customers.GetCustomerProfile)
	api.GET("/tips", admin.GetTips)
	api.GET("/audit", admin.GetAuditEntries)

	return &testEnv{db: db, router: r}
}

func (e *testEnv) do(t *testing.T, userID uint, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := utils.GenerateToken(userID, "cashier")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

type seededMenu struct {
	pizza   models.SellableItem
	dough   models.StockIngredient
	session models.RegisterSession
}

// seedMenu stocks 3 dough balls and opens terminal 1 for employee 7.
func (e *testEnv) seedMenu(t *testing.T) seededMenu {
	t.Helper()
	dough := models.StockIngredient{
		Name:     "Dough",
		Unit:     "each",
		OnHand:   decimal.NewFromInt(3),
		UnitCost: decimal.NewNullDecimal(decimal.RequireFromString("4.26")),
		Active:   true,
	}
	require.NoError(t, e.db.Create(&dough).Error)

	pizza := models.SellableItem{Name: "Pizza", Price: decimal.RequireFromString("12.99"), Active: true, Unit: "each"}
	require.NoError(t, e.db.Create(&pizza).Error)
	require.NoError(t, e.db.Create(&models.RecipeLine{
		ItemID: pizza.ID, IngredientID: &dough.ID, Quantity: decimal.NewFromInt(1), Unit: "each",
	}).Error)

	terminal := 1
	session := models.RegisterSession{
		TerminalNumber: terminal,
		OpenTerminal:   &terminal,
		Status:         models.RegisterStatusOpen,
		OpenedBy:       7,
		OpenedAt:       time.Now(),
	}
	require.NoError(t, e.db.Create(&session).Error)

	return seededMenu{pizza: pizza, dough: dough, session: session}
}

func orderBody(sessionID, itemID uint, qty int, paid string) gin.H {
	return gin.H{
		"register_session_id": sessionID,
		"lines":               []gin.H{{"item_id": itemID, "quantity": qty}},
		"payments":            []gin.H{{"amount": paid, "method": "cash"}},
	}
}
