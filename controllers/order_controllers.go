package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-core/kds"
	"github.com/yeremiapane/restaurant-core/middlewares"
	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

type createOrderRequest struct {
	RegisterSessionID uint                      `json:"register_session_id" binding:"required"`
	Lines             []services.OrderLineInput `json:"lines" binding:"required,min=1,dive"`
	Payments          json.RawMessage           `json:"payments"`
	Tip               decimal.Decimal           `json:"tip"`
	CustomerContact   string                    `json:"customer_contact"`
	CustomerName      string                    `json:"customer_name"`
	Force             bool                      `json:"force"`
}

// CreateOrder -> POST /api/orders
// The employee is the authenticated user. A 409 with data.warnings means stock would
// go negative; resend with force=true to override.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := oc.Orders.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		RegisterSessionID: req.RegisterSessionID,
		EmployeeID:        middlewares.ActorID(c),
		Lines:             req.Lines,
		Payments:          decodePayments(req.Payments),
		Tip:               req.Tip,
		CustomerContact:   req.CustomerContact,
		CustomerName:      req.CustomerName,
		Force:             req.Force,
		RequestID:         requestID(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	kds.BroadcastOrderCreated(*res.Order)
	utils.RespondJSON(c, http.StatusCreated, "Order created", res)
}

// GetOrderByID -> GET /api/orders/:order_id
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}
	order, err := oc.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// UpdateOrderStatus -> PATCH /api/orders/:order_id/status
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.UpdateStatus(c.Request.Context(), id, req.Status, middlewares.ActorID(c), requestID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	kds.BroadcastOrderUpdate(*order)
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// VoidOrder -> POST /api/orders/:order_id/void
func (oc *OrderController) VoidOrder(c *gin.Context) {
	id, ok := paramID(c, "order_id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.VoidOrder(c.Request.Context(), id, req.Reason, middlewares.ActorID(c), requestID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	kds.BroadcastOrderVoided(*order)
	utils.RespondJSON(c, http.StatusOK, "Order voided", order)
}

// decodePayments reads payments leniently. An unreadable list yields none and an
// unreadable amount yields a nil amount, both of which the order service treats as
// malformed payment data.
func decodePayments(raw json.RawMessage) []services.PaymentInput {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}

	payments := make([]services.PaymentInput, 0, len(items))
	for _, item := range items {
		var p struct {
			Amount json.RawMessage `json:"amount"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(item, &p); err != nil {
			payments = append(payments, services.PaymentInput{})
			continue
		}

		in := services.PaymentInput{Method: p.Method}
		var amount decimal.Decimal
		if len(p.Amount) > 0 && string(p.Amount) != "null" && amount.UnmarshalJSON(p.Amount) == nil {
			in.Amount = &amount
		}
		payments = append(payments, in)
	}
	return payments
}
