package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-core/config"
	"github.com/yeremiapane/restaurant-core/controllers"
	"github.com/yeremiapane/restaurant-core/middlewares"
	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.Issuer)

	r := gin.New()
	r.Use(gin.Recovery())

	if len(cfg.Server.TrustedProxies) > 0 {
		_ = r.SetTrustedProxies(cfg.Server.TrustedProxies)
	}

	r.Use(middlewares.RequestID())
	if cfg.Server.RateLimit > 0 {
		r.Use(middlewares.NewRateLimiter(cfg.Server.RateLimit, 1).RateLimit())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.Server.AllowedOrigin))
	r.Use(middlewares.LoggerMiddleware())

	// Services
	audit := services.NewAuditService(db)
	ledger := services.NewInventoryLedger(db)
	orderSvc := services.NewOrderService(db, cfg.Engine)
	registerSvc := services.NewRegisterService(db, audit)
	costSvc := services.NewCostService(db, cfg.Engine.MaxRecipeDepth)
	tipsSvc := services.NewTipsService(db)
	customerSvc := services.NewCustomerService(db)

	// Controllers
	orderCtrl := controllers.NewOrderController(orderSvc)
	registerCtrl := controllers.NewRegisterController(registerSvc)
	inventoryCtrl := controllers.NewInventoryController(ledger, audit)
	itemCtrl := controllers.NewItemController(costSvc)
	adminCtrl := controllers.NewAdminController(tipsSvc, audit)
	customerCtrl := controllers.NewCustomerController(customerSvc)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())

	// ORDERS
	api.POST("/orders", orderCtrl.CreateOrder)
	api.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	api.PATCH("/orders/:order_id/status", orderCtrl.UpdateOrderStatus)
	api.POST("/orders/:order_id/void", orderCtrl.VoidOrder)

	// REGISTERS
	registers := api.Group("/registers")
	{
		registers.POST("/open", middlewares.RequireRole("cashier", "manager"), registerCtrl.OpenRegister)
		registers.POST("/:session_id/close", middlewares.RequireRole("cashier", "manager"), registerCtrl.CloseRegister)
		registers.GET("/terminal/:terminal", registerCtrl.CurrentRegister)
		registers.GET("/:session_id/summary", registerCtrl.RegisterSummary)
	}

	// INVENTORY
	api.GET("/inventory", inventoryCtrl.GetStockLevels)
	api.GET("/inventory/:ingredient_id/preview", inventoryCtrl.PreviewStockChange)
	api.POST("/inventory/:ingredient_id/adjust",
		middlewares.RequireRole("manager"),
		middlewares.NewStrictRateLimiter(),
		inventoryCtrl.AdjustStock)

	// ITEMS
	api.GET("/items/:item_id/cost", itemCtrl.GetItemCost)
	api.GET("/items/:item_id/explode", itemCtrl.ExplodeItem)

	// CUSTOMERS
	api.GET("/customers/:contact", customerCtrl.GetCustomerProfile)

	// Back office
	backOffice := api.Group("/")
	backOffice.Use(middlewares.RequireRole("manager"))
	{
		backOffice.GET("/tips", adminCtrl.GetTips)
		backOffice.GET("/audit", adminCtrl.GetAuditEntries)
	}

	// KDS websocket, token via ?token=
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("", controllers.KDSHandler)
	}

	return r
}
