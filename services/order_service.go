package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-core/config"
	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/utils"
)

var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusConfirmed: {models.OrderStatusPreparing},
	models.OrderStatusPreparing: {models.OrderStatusReady},
	models.OrderStatusReady:     {models.OrderStatusCompleted, models.OrderStatusPickedUp, models.OrderStatusDelivered},
}

// CanTransition reports whether from -> to is an ordinary status change. Void is not
// one of them: it goes through VoidOrder.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal is true for void and every fulfilled status.
func IsTerminal(status models.OrderStatus) bool {
	if status == models.OrderStatusVoid {
		return true
	}
	for _, s := range models.FulfilledStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func knownStatus(status models.OrderStatus) bool {
	if status == models.OrderStatusConfirmed || IsTerminal(status) {
		return true
	}
	_, ok := orderTransitions[status]
	return ok
}

type OrderLineInput struct {
	ItemID   uint `json:"item_id"`
	Quantity int  `json:"quantity"`
}

// PaymentInput is accepted as sent by the register; nil amounts and unknown methods
// count as malformed.
type PaymentInput struct {
	Amount *decimal.Decimal `json:"amount"`
	Method string           `json:"method"`
}

type CreateOrderInput struct {
	RegisterSessionID uint
	EmployeeID        uint
	Lines             []OrderLineInput
	Payments          []PaymentInput
	Tip               decimal.Decimal
	CustomerContact   string
	CustomerName      string
	Force             bool
	RequestID         string
}

type CreateOrderResult struct {
	Order            *models.Order   `json:"order"`
	Warnings         []StockWarning  `json:"warnings,omitempty"`
	Notes            []TraversalNote `json:"notes,omitempty"`
	PaymentDefaulted bool            `json:"payment_defaulted"`
}

// OrderService runs the order pipeline: creation, status changes and voids, each in
// a single transaction.
type OrderService struct {
	db        *gorm.DB
	cfg       config.EngineConfig
	ledger    *InventoryLedger
	audit     *AuditService
	customers *CustomerService
}

func NewOrderService(db *gorm.DB, cfg config.EngineConfig) *OrderService {
	if cfg.MaxRecipeDepth <= 0 {
		cfg.MaxRecipeDepth = DefaultMaxRecipeDepth
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &OrderService{
		db:        db,
		cfg:       cfg,
		ledger:    NewInventoryLedger(db),
		audit:     NewAuditService(db),
		customers: NewCustomerService(db),
	}
}

func validateOrderInput(in CreateOrderInput) error {
	if in.RegisterSessionID == 0 {
		return newValidationError("register_session_id", "is required")
	}
	if len(in.Lines) == 0 {
		return newValidationError("lines", "an order needs at least one line")
	}
	for i, l := range in.Lines {
		if l.ItemID == 0 {
			return newValidationError(fmt.Sprintf("lines[%d].item_id", i), "is required")
		}
		if l.Quantity <= 0 {
			return newValidationError(fmt.Sprintf("lines[%d].quantity", i), "must be greater than zero")
		}
	}
	if in.Tip.IsNegative() {
		return newValidationError("tip", "must not be negative")
	}
	return nil
}

// CreateOrder validates, explodes and checks stock, then writes the order, its lines,
// payments, inventory deductions, customer profile and audit entry atomically. When a
// deduction would drive stock negative the order is refused with InventoryBlockedError
// unless in.Force is set. Lost updates on stock rows retry the whole transaction.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if err := validateOrderInput(in); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		res, err := s.createOrderOnce(ctx, in)
		if errors.Is(err, ErrConcurrencyConflict) && attempt < s.cfg.MaxRetries {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"session_id": in.RegisterSessionID,
				"attempt":    attempt,
			}).Warn("Inventory changed underneath order, retrying")
			continue
		}
		if err != nil {
			if blocked, ok := AsInventoryBlocked(err); ok {
				utils.InfoLogger.WithFields(logrus.Fields{
					"session_id":  in.RegisterSessionID,
					"employee_id": in.EmployeeID,
					"warnings":    len(blocked.Warnings),
				}).Info("Order blocked by inventory")
			}
			return nil, err
		}

		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id":   res.Order.ID,
			"session_id": res.Order.RegisterSessionID,
			"total":      res.Order.Total.StringFixed(2),
			"forced":     in.Force,
		}).Info("Order created")
		return res, nil
	}
}

func (s *OrderService) createOrderOnce(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	result := &CreateOrderResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.RegisterSession
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&session, in.RegisterSessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newValidationError("register_session_id", "session %d does not exist", in.RegisterSessionID)
		}
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			return ErrSessionClosed
		}

		itemIDs := make([]uint, 0, len(in.Lines))
		for _, l := range in.Lines {
			itemIDs = append(itemIDs, l.ItemID)
		}
		itemIDs = uniqueIDs(itemIDs)

		graph, err := LoadRecipeGraph(tx, itemIDs, s.cfg.MaxRecipeDepth)
		if err != nil {
			return err
		}

		lines := make([]models.OrderLine, 0, len(in.Lines))
		subtotal := decimal.Zero
		explosions := make([][]Deduction, 0, len(in.Lines))
		for i, l := range in.Lines {
			item, ok := graph.Items[l.ItemID]
			if !ok {
				return newValidationError(fmt.Sprintf("lines[%d].item_id", i), "item %d does not exist", l.ItemID)
			}
			if !item.Active {
				return newValidationError(fmt.Sprintf("lines[%d].item_id", i), "%s is not available", item.Name)
			}

			qty := decimal.NewFromInt(int64(l.Quantity))
			lineTotal := item.Price.Mul(qty)
			subtotal = subtotal.Add(lineTotal)
			lines = append(lines, models.OrderLine{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Quantity:  l.Quantity,
				UnitPrice: item.Price,
				LineTotal: lineTotal,
			})

			ex := ExplodeRecipe(graph, item.ID, qty, s.cfg.MaxRecipeDepth)
			explosions = append(explosions, ex.Deductions)
			result.Notes = append(result.Notes, ex.Notes...)
		}

		tip := in.Tip.Round(2)
		total := subtotal.Add(tip)

		payments, defaulted, err := s.reconcilePayments(in.Payments, total)
		if err != nil {
			return err
		}
		result.PaymentDefaulted = defaulted

		deductions := MergeDeductions(explosions...)
		var warnings []StockWarning
		blocked := false
		for _, d := range deductions {
			if d.Quantity.IsZero() {
				continue
			}
			w, err := s.ledger.WithTx(tx).Preview(d.IngredientID, d.Quantity.Neg())
			if err != nil {
				return err
			}
			if w.Severity == SeverityOK {
				continue
			}
			if w.Severity == SeverityCritical {
				blocked = true
			}
			warnings = append(warnings, w)
		}
		if blocked && !in.Force {
			return &InventoryBlockedError{Warnings: warnings}
		}
		result.Warnings = warnings

		now := time.Now()
		order := models.Order{
			Status:            models.OrderStatusConfirmed,
			RegisterSessionID: session.ID,
			EmployeeID:        in.EmployeeID,
			Subtotal:          subtotal,
			TipAmount:         tip,
			Total:             total,
			Lines:             lines,
			Payments:          payments,
		}

		if NormalizeContact(in.CustomerContact) != "" {
			profile, err := s.customers.Upsert(tx, in.CustomerContact, in.CustomerName, total, now)
			if err != nil {
				return err
			}
			order.CustomerProfileID = &profile.ID
		}

		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, d := range deductions {
			if d.Quantity.IsZero() {
				continue
			}
			mv, err := s.ledger.WithTx(tx).Apply(d.IngredientID, d.Quantity.Neg(), MovementEntry{
				Type:    models.MovementSale,
				OrderID: &order.ID,
				ActorID: in.EmployeeID,
			})
			if err != nil {
				return err
			}
			if !in.Force && mv.QuantityAfter.IsNegative() {
				return ErrConcurrencyConflict
			}
		}

		if err := s.audit.Record(tx, AuditRecord{
			EntityType: EntityOrder,
			EntityID:   order.ID,
			Action:     "order.created",
			ActorID:    in.EmployeeID,
			RequestID:  in.RequestID,
			Message:    orderCreatedMessage(in.Force, blocked, defaulted),
			After:      order,
		}); err != nil {
			return err
		}

		result.Order = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, n := range result.Notes {
		logNotes(n.ItemID, []TraversalNote{n})
	}
	return result, nil
}

func orderCreatedMessage(force, blocked, defaulted bool) string {
	msg := "order created"
	if force && blocked {
		msg += "; negative stock forced"
	}
	if defaulted {
		msg += "; payment defaulted to cash"
	}
	return msg
}

// reconcilePayments checks that payments cover total exactly. Missing or malformed
// payment data becomes a single cash payment for the full total unless strict
// payments are configured.
func (s *OrderService) reconcilePayments(in []PaymentInput, total decimal.Decimal) ([]models.OrderPayment, bool, error) {
	malformed := len(in) == 0
	reason := "no payments supplied"
	for i, p := range in {
		if p.Amount == nil {
			malformed, reason = true, fmt.Sprintf("payments[%d] has no amount", i)
			break
		}
		if p.Amount.IsNegative() {
			malformed, reason = true, fmt.Sprintf("payments[%d] amount is negative", i)
			break
		}
		if !models.PaymentMethod(p.Method).Valid() {
			malformed, reason = true, fmt.Sprintf("payments[%d] method %q is unknown", i, p.Method)
			break
		}
	}

	if malformed {
		if s.cfg.StrictPayments {
			return nil, false, newValidationError("payments", "%s", reason)
		}
		utils.ErrorLogger.WithFields(logrus.Fields{
			"reason": reason,
			"total":  total.StringFixed(2),
		}).Warn("Malformed payment data, recording a single cash payment")
		return []models.OrderPayment{{Amount: total, Method: models.PaymentMethodCash}}, true, nil
	}

	sum := decimal.Zero
	payments := make([]models.OrderPayment, 0, len(in))
	for _, p := range in {
		amount := p.Amount.Round(2)
		sum = sum.Add(amount)
		payments = append(payments, models.OrderPayment{Amount: amount, Method: models.PaymentMethod(p.Method)})
	}
	if !sum.Equal(total.Round(2)) {
		return nil, false, newValidationError("payments", "payments total %s does not match order total %s",
			utils.FormatMoney(sum), utils.FormatMoney(total))
	}
	return payments, false, nil
}

// UpdateStatus moves an order one step along the fulfillment graph.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, status models.OrderStatus, actorID uint, requestID string) (*models.Order, error) {
	if !knownStatus(status) {
		return nil, newValidationError("status", "unknown status %q", status)
	}
	if status == models.OrderStatusVoid {
		return nil, fmt.Errorf("%w: use void to cancel an order", ErrInvalidTransition)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		from := order.Status
		if !CanTransition(from, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, from).
			Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrencyConflict
		}

		return s.audit.Record(tx, AuditRecord{
			EntityType: EntityOrder,
			EntityID:   order.ID,
			Action:     "order.status_changed",
			ActorID:    actorID,
			RequestID:  requestID,
			Before:     map[string]interface{}{"status": from},
			After:      map[string]interface{}{"status": status},
		})
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
		"actor_id": actorID,
	}).Info("Order status updated")
	return s.GetOrder(ctx, orderID)
}

// VoidOrder reverses a non-terminal order: every sale movement it wrote is restored,
// the customer profile is credited back and the order is marked void.
func (s *OrderService) VoidOrder(ctx context.Context, orderID uint, reason string, actorID uint, requestID string) (*models.Order, error) {
	if reason == "" {
		return nil, newValidationError("reason", "is required")
	}

	var restored int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Voided || order.Status == models.OrderStatusVoid {
			return ErrAlreadyVoided
		}
		if IsTerminal(order.Status) {
			return fmt.Errorf("%w: %s order cannot be voided", ErrInvalidTransition, order.Status)
		}

		deductions, err := saleDeductions(tx, order.ID)
		if err != nil {
			return err
		}
		for _, d := range deductions {
			if _, err := s.ledger.WithTx(tx).Restore(d.IngredientID, d.Quantity, MovementEntry{
				Type:    models.MovementVoidRestore,
				OrderID: &order.ID,
				Notes:   reason,
				ActorID: actorID,
			}); err != nil {
				return err
			}
		}
		restored = len(deductions)

		if order.CustomerProfileID != nil {
			if err := s.customers.Reverse(tx, *order.CustomerProfileID, order.Total); err != nil {
				return err
			}
		}

		from := order.Status
		now := time.Now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND voided = ?", order.ID, false).
			Omit(clause.Associations).
			Updates(map[string]interface{}{
				"status":      models.OrderStatusVoid,
				"voided":      true,
				"void_reason": reason,
				"voided_at":   now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyVoided
		}

		return s.audit.Record(tx, AuditRecord{
			EntityType: EntityOrder,
			EntityID:   order.ID,
			Action:     "order.voided",
			ActorID:    actorID,
			RequestID:  requestID,
			Message:    reason,
			Before:     map[string]interface{}{"status": from},
			After:      map[string]interface{}{"status": models.OrderStatusVoid, "restored_ingredients": len(deductions)},
		})
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":    orderID,
		"actor_id":    actorID,
		"ingredients": restored,
	}).Info("Order voided")
	return s.GetOrder(ctx, orderID)
}

// saleDeductions rebuilds what an order took out of stock from its sale movements.
// The quantities are the negative deltas recorded at sale time.
func saleDeductions(tx *gorm.DB, orderID uint) ([]Deduction, error) {
	var movements []models.InventoryMovement
	err := tx.Where("order_id = ? AND movement_type = ?", orderID, models.MovementSale).
		Order("ingredient_id asc").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}

	acc := make(map[uint]decimal.Decimal)
	for _, m := range movements {
		acc[m.IngredientID] = acc[m.IngredientID].Add(m.QuantityChange)
	}
	out := make([]Deduction, 0, len(acc))
	for id, q := range acc {
		out = append(out, Deduction{IngredientID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out, nil
}

func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder is the order detail read model.
func (s *OrderService) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
