package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-core/kds"
	"github.com/yeremiapane/restaurant-core/middlewares"
	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

type InventoryController struct {
	Ledger *services.InventoryLedger
	Audit  *services.AuditService
}

func NewInventoryController(ledger *services.InventoryLedger, audit *services.AuditService) *InventoryController {
	return &InventoryController{Ledger: ledger, Audit: audit}
}

// GetStockLevels -> GET /api/inventory?low=true
func (ic *InventoryController) GetStockLevels(c *gin.Context) {
	onlyLow := c.Query("low") == "true"
	levels, err := ic.Ledger.StockLevels(c.Request.Context(), onlyLow)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock levels", levels)
}

// PreviewStockChange -> GET /api/inventory/:ingredient_id/preview?delta=-2.5
func (ic *InventoryController) PreviewStockChange(c *gin.Context) {
	id, ok := paramID(c, "ingredient_id")
	if !ok {
		return
	}
	delta, ok := queryDecimal(c, "delta", "0")
	if !ok {
		return
	}

	warning, err := ic.Ledger.PreviewAdjustment(c.Request.Context(), id, delta)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock preview", warning)
}

// AdjustStock -> POST /api/inventory/:ingredient_id/adjust
func (ic *InventoryController) AdjustStock(c *gin.Context) {
	id, ok := paramID(c, "ingredient_id")
	if !ok {
		return
	}

	var req struct {
		Delta  decimal.Decimal `json:"delta"`
		Reason string          `json:"reason" binding:"required"`
		Force  bool            `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	movement, warning, err := ic.Ledger.Adjust(c.Request.Context(), ic.Audit, id, req.Delta, req.Reason,
		middlewares.ActorID(c), req.Force, requestID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if warning.Severity != services.SeverityOK {
		kds.BroadcastStockAlert([]services.StockWarning{warning})
	}
	utils.RespondJSON(c, http.StatusOK, "Stock adjusted", gin.H{
		"movement": movement,
		"warning":  warning,
	})
}
