package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-core/utils"
)

// CostService answers "what does this item cost to make" and "what does selling it
// consume" against the current catalog.
type CostService struct {
	db       *gorm.DB
	maxDepth int
}

func NewCostService(db *gorm.DB, maxDepth int) *CostService {
	return &CostService{db: db, maxDepth: maxDepth}
}

type CostReport struct {
	ItemID    uint            `json:"item_id"`
	ItemName  string          `json:"item_name"`
	Cost      decimal.Decimal `json:"cost"`
	Price     decimal.Decimal `json:"price"`
	MarginPct decimal.Decimal `json:"margin_pct"`
	Notes     []TraversalNote `json:"notes,omitempty"`
}

func (s *CostService) graphFor(ctx context.Context, itemID uint) (*RecipeGraph, error) {
	g, err := LoadRecipeGraph(s.db.WithContext(ctx), []uint{itemID}, s.maxDepth)
	if err != nil {
		return nil, err
	}
	if _, ok := g.Items[itemID]; !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

// ResolveUnitCost returns the recursive ingredient cost of one unit of itemID.
func (s *CostService) ResolveUnitCost(ctx context.Context, itemID uint) (decimal.Decimal, []TraversalNote, error) {
	g, err := s.graphFor(ctx, itemID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	cost, notes := ResolveCost(g, itemID, s.maxDepth)
	logNotes(itemID, notes)
	return cost, notes, nil
}

// ItemCost is ResolveUnitCost plus price and gross margin.
func (s *CostService) ItemCost(ctx context.Context, itemID uint) (*CostReport, error) {
	g, err := s.graphFor(ctx, itemID)
	if err != nil {
		return nil, err
	}
	item := g.Items[itemID]
	cost, notes := ResolveCost(g, itemID, s.maxDepth)
	logNotes(itemID, notes)

	return &CostReport{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Cost:      cost,
		Price:     item.Price,
		MarginPct: utils.Percent(item.Price.Sub(cost), item.Price),
		Notes:     notes,
	}, nil
}

// Explode lists the ingredient deductions for selling quantity units of itemID.
func (s *CostService) Explode(ctx context.Context, itemID uint, quantity decimal.Decimal) (*Explosion, error) {
	if !quantity.IsPositive() {
		return nil, newValidationError("quantity", "must be greater than zero")
	}
	g, err := s.graphFor(ctx, itemID)
	if err != nil {
		return nil, err
	}
	ex := ExplodeRecipe(g, itemID, quantity, s.maxDepth)
	return &ex, nil
}

func logNotes(itemID uint, notes []TraversalNote) {
	for _, n := range notes {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"item_id": itemID,
			"kind":    n.Kind,
			"ref_id":  n.RefID,
			"depth":   n.Depth,
		}).Warn(n.Message)
	}
}
