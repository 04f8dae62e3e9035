package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

type ItemController struct {
	Costs *services.CostService
}

func NewItemController(costs *services.CostService) *ItemController {
	return &ItemController{Costs: costs}
}

// GetItemCost -> GET /api/items/:item_id/cost
func (ic *ItemController) GetItemCost(c *gin.Context) {
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	report, err := ic.Costs.ItemCost(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item cost", report)
}

// ExplodeItem -> GET /api/items/:item_id/explode?quantity=3
func (ic *ItemController) ExplodeItem(c *gin.Context) {
	id, ok := paramID(c, "item_id")
	if !ok {
		return
	}
	qty, ok := queryDecimal(c, "quantity", "1")
	if !ok {
		return
	}
	ex, err := ic.Costs.Explode(c.Request.Context(), id, qty)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Recipe explosion", ex)
}
