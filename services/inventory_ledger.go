package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/utils"
)

type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// lowStockRatio: a change leaving less than this share of the current quantity is reported.
var lowStockRatio = decimal.RequireFromString("0.1")

type StockWarning struct {
	IngredientID   uint            `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Unit           string          `json:"unit"`
	Severity       Severity        `json:"severity"`
	CurrentQty     decimal.Decimal `json:"current_qty"`
	Delta          decimal.Decimal `json:"delta"`
	NewQty         decimal.Decimal `json:"new_qty"`
	Message        string          `json:"message"`
}

// ClassifyStockChange grades the effect of adding delta to current.
func ClassifyStockChange(current, delta decimal.Decimal) Severity {
	newQty := current.Add(delta)
	switch {
	case newQty.IsNegative():
		return SeverityCritical
	case newQty.IsZero():
		return SeverityWarning
	case current.IsPositive() && newQty.LessThan(current.Mul(lowStockRatio)):
		return SeverityInfo
	}
	return SeverityOK
}

func buildWarning(ing models.StockIngredient, delta decimal.Decimal) StockWarning {
	newQty := ing.OnHand.Add(delta)
	sev := ClassifyStockChange(ing.OnHand, delta)

	var msg string
	switch sev {
	case SeverityCritical:
		msg = fmt.Sprintf("%s would go negative: %s %s on hand, new quantity %s %s",
			ing.Name, ing.OnHand.String(), ing.Unit, newQty.String(), ing.Unit)
	case SeverityWarning:
		msg = fmt.Sprintf("%s will be used up", ing.Name)
	case SeverityInfo:
		msg = fmt.Sprintf("%s drops below 10%% of current stock (%s %s left)", ing.Name, newQty.String(), ing.Unit)
	}

	return StockWarning{
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		Unit:           ing.Unit,
		Severity:       sev,
		CurrentQty:     ing.OnHand,
		Delta:          delta,
		NewQty:         newQty,
		Message:        msg,
	}
}

// MovementEntry describes why the ledger is being written.
type MovementEntry struct {
	Type    string
	OrderID *uint
	Notes   string
	ActorID uint
}

// InventoryLedger owns every write to StockIngredient.OnHand. Bind it to a
// transaction with WithTx so previews and writes share the same row locks.
type InventoryLedger struct {
	db *gorm.DB
}

func NewInventoryLedger(db *gorm.DB) *InventoryLedger {
	return &InventoryLedger{db: db}
}

func (l *InventoryLedger) WithTx(tx *gorm.DB) *InventoryLedger {
	return &InventoryLedger{db: tx}
}

func (l *InventoryLedger) lockIngredient(id uint) (models.StockIngredient, error) {
	var ing models.StockIngredient
	err := l.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ing, fmt.Errorf("ingredient %d: %w", id, ErrNotFound)
	}
	return ing, err
}

// Preview classifies the effect of delta without writing anything.
func (l *InventoryLedger) Preview(ingredientID uint, delta decimal.Decimal) (StockWarning, error) {
	ing, err := l.lockIngredient(ingredientID)
	if err != nil {
		return StockWarning{}, err
	}
	return buildWarning(ing, delta), nil
}

// Apply adds delta to the on-hand quantity unconditionally and records the movement.
// A version mismatch means another writer got in between: ErrConcurrencyConflict.
func (l *InventoryLedger) Apply(ingredientID uint, delta decimal.Decimal, entry MovementEntry) (*models.InventoryMovement, error) {
	ing, err := l.lockIngredient(ingredientID)
	if err != nil {
		return nil, err
	}

	before := ing.OnHand
	after := before.Add(delta)
	now := time.Now()

	res := l.db.Model(&models.StockIngredient{}).
		Where("id = ? AND version = ?", ing.ID, ing.Version).
		Updates(map[string]interface{}{
			"on_hand":    after,
			"version":    ing.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update ingredient %d: %w", ing.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrencyConflict
	}

	mv := &models.InventoryMovement{
		IngredientID:   ing.ID,
		MovementType:   entry.Type,
		QuantityChange: delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		OrderID:        entry.OrderID,
		Notes:          entry.Notes,
		CreatedBy:      entry.ActorID,
		CreatedAt:      now,
	}
	if err := l.db.Create(mv).Error; err != nil {
		return nil, fmt.Errorf("log movement: %w", err)
	}
	return mv, nil
}

// Restore reverses a deduction: saleDelta is the (negative) delta applied at sale time.
func (l *InventoryLedger) Restore(ingredientID uint, saleDelta decimal.Decimal, entry MovementEntry) (*models.InventoryMovement, error) {
	if entry.Type == "" {
		entry.Type = models.MovementVoidRestore
	}
	return l.Apply(ingredientID, saleDelta.Neg(), entry)
}

// StockLevel is the read model for one ingredient.
type StockLevel struct {
	models.StockIngredient
	Severity Severity `json:"severity"`
}

// ClassifyLevel grades an on-hand quantity against its reorder threshold.
func ClassifyLevel(onHand, reorderThreshold decimal.Decimal) Severity {
	switch {
	case onHand.IsNegative():
		return SeverityCritical
	case onHand.IsZero():
		return SeverityWarning
	case reorderThreshold.IsPositive() && onHand.LessThanOrEqual(reorderThreshold):
		return SeverityInfo
	}
	return SeverityOK
}

// StockLevels lists active ingredients with their classification. With onlyLow set,
// ingredients classified ok are left out.
func (l *InventoryLedger) StockLevels(ctx context.Context, onlyLow bool) ([]StockLevel, error) {
	var ings []models.StockIngredient
	if err := l.db.WithContext(ctx).Where("active = ?", true).Order("name asc").Find(&ings).Error; err != nil {
		return nil, err
	}
	out := make([]StockLevel, 0, len(ings))
	for _, ing := range ings {
		sev := ClassifyLevel(ing.OnHand, ing.ReorderThreshold)
		if onlyLow && sev == SeverityOK {
			continue
		}
		out = append(out, StockLevel{StockIngredient: ing, Severity: sev})
	}
	return out, nil
}

// PreviewAdjustment is Preview outside of any caller transaction.
func (l *InventoryLedger) PreviewAdjustment(ctx context.Context, ingredientID uint, delta decimal.Decimal) (StockWarning, error) {
	var w StockWarning
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		w, err = l.WithTx(tx).Preview(ingredientID, delta)
		return err
	})
	return w, err
}

// Adjust applies a manual stock change (restock, waste, count correction) with an
// audit entry. A change that would drive stock negative is refused unless force.
func (l *InventoryLedger) Adjust(ctx context.Context, audit *AuditService, ingredientID uint, delta decimal.Decimal, reason string, actorID uint, force bool, requestID string) (*models.InventoryMovement, StockWarning, error) {
	if delta.IsZero() {
		return nil, StockWarning{}, newValidationError("delta", "must not be zero")
	}
	if reason == "" {
		return nil, StockWarning{}, newValidationError("reason", "is required")
	}

	var mv *models.InventoryMovement
	var warning StockWarning
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := l.WithTx(tx)
		w, err := ledger.Preview(ingredientID, delta)
		if err != nil {
			return err
		}
		warning = w
		if w.Severity == SeverityCritical && !force {
			return &InventoryBlockedError{Warnings: []StockWarning{w}}
		}

		mv, err = ledger.Apply(ingredientID, delta, MovementEntry{
			Type:    models.MovementAdjustment,
			Notes:   reason,
			ActorID: actorID,
		})
		if err != nil {
			return err
		}

		return audit.Record(tx, AuditRecord{
			EntityType: EntityStockIngredient,
			EntityID:   ingredientID,
			Action:     "stock.adjusted",
			ActorID:    actorID,
			RequestID:  requestID,
			Message:    reason,
			Before:     map[string]interface{}{"on_hand": mv.QuantityBefore},
			After:      map[string]interface{}{"on_hand": mv.QuantityAfter},
		})
	})
	if err != nil {
		return nil, warning, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"ingredient_id": ingredientID,
		"delta":         delta.String(),
		"on_hand":       mv.QuantityAfter.String(),
		"actor_id":      actorID,
	}).Info("Stock adjusted")
	return mv, warning, nil
}
