package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/utils"
)

// DefaultMaxRecipeDepth is how many levels of item-in-item nesting are followed.
const DefaultMaxRecipeDepth = 2

type NoteKind string

const (
	NoteCycle        NoteKind = "cycle"
	NoteDepth        NoteKind = "depth_truncated"
	NoteMissing      NoteKind = "missing_reference"
	NoteUnitMismatch NoteKind = "unit_mismatch"
)

// TraversalNote reports a recipe branch that contributed nothing, or contributed with
// a caveat. Notes never fail a sale.
type TraversalNote struct {
	Kind    NoteKind `json:"kind"`
	ItemID  uint     `json:"item_id"`
	RefID   uint     `json:"ref_id"`
	Path    []uint   `json:"path"`
	Depth   int      `json:"depth"`
	Message string   `json:"message"`
}

// RecipeGraph is the slice of the catalog reachable from a set of items.
type RecipeGraph struct {
	Items       map[uint]models.SellableItem
	Lines       map[uint][]models.RecipeLine
	Ingredients map[uint]models.StockIngredient
}

func NewRecipeGraph() *RecipeGraph {
	return &RecipeGraph{
		Items:       make(map[uint]models.SellableItem),
		Lines:       make(map[uint][]models.RecipeLine),
		Ingredients: make(map[uint]models.StockIngredient),
	}
}

// LoadRecipeGraph reads the items reachable from rootIDs level by level, stopping
// after maxDepth levels of nesting, plus every ingredient those recipes reference.
func LoadRecipeGraph(db *gorm.DB, rootIDs []uint, maxDepth int) (*RecipeGraph, error) {
	g := NewRecipeGraph()
	frontier := uniqueIDs(rootIDs)
	ingredientIDs := make(map[uint]struct{})

	for depth := 0; depth <= maxDepth && len(frontier) > 0; depth++ {
		var items []models.SellableItem
		if err := db.Where("id IN ?", frontier).Find(&items).Error; err != nil {
			return nil, fmt.Errorf("load items: %w", err)
		}
		for _, it := range items {
			g.Items[it.ID] = it
		}

		var lines []models.RecipeLine
		if err := db.Where("item_id IN ?", frontier).Order("id asc").Find(&lines).Error; err != nil {
			return nil, fmt.Errorf("load recipe lines: %w", err)
		}

		var next []uint
		for _, l := range lines {
			g.Lines[l.ItemID] = append(g.Lines[l.ItemID], l)
			switch {
			case l.SubItemID != nil:
				if _, seen := g.Items[*l.SubItemID]; !seen {
					next = append(next, *l.SubItemID)
				}
			case l.IngredientID != nil:
				ingredientIDs[*l.IngredientID] = struct{}{}
			}
		}
		frontier = uniqueIDs(next)
	}

	if len(ingredientIDs) > 0 {
		ids := make([]uint, 0, len(ingredientIDs))
		for id := range ingredientIDs {
			ids = append(ids, id)
		}
		var ings []models.StockIngredient
		if err := db.Where("id IN ?", ids).Find(&ings).Error; err != nil {
			return nil, fmt.Errorf("load ingredients: %w", err)
		}
		for _, ing := range ings {
			g.Ingredients[ing.ID] = ing
		}
	}
	return g, nil
}

type leafFunc func(ing models.StockIngredient, qty decimal.Decimal)

// recipeWalker is shared by cost resolution and explosion so both apply the same
// cycle and depth guard.
type recipeWalker struct {
	graph    *RecipeGraph
	maxDepth int
	notes    []TraversalNote
}

func newRecipeWalker(g *RecipeGraph, maxDepth int) *recipeWalker {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &recipeWalker{graph: g, maxDepth: maxDepth}
}

// walk visits every leaf ingredient under itemID. factor is the product of the
// quantities on the path so far; path holds the items already on this call chain.
func (w *recipeWalker) walk(itemID uint, factor decimal.Decimal, depth int, path []uint, leaf leafFunc) {
	for _, line := range w.graph.Lines[itemID] {
		qty := line.Quantity.Mul(factor)

		switch {
		case line.SubItemID != nil:
			sub := *line.SubItemID
			if containsID(path, sub) {
				w.note(NoteCycle, itemID, sub, path, depth,
					fmt.Sprintf("item %d refers back to item %d; branch ignored", itemID, sub))
				continue
			}
			if depth+1 > w.maxDepth {
				w.note(NoteDepth, itemID, sub, path, depth,
					fmt.Sprintf("item %d nested deeper than %d levels; branch ignored", sub, w.maxDepth))
				continue
			}
			if _, ok := w.graph.Items[sub]; !ok {
				w.note(NoteMissing, itemID, sub, path, depth,
					fmt.Sprintf("item %d references unknown item %d", itemID, sub))
				continue
			}
			w.walk(sub, qty, depth+1, appendID(path, sub), leaf)

		case line.IngredientID != nil:
			ing, ok := w.graph.Ingredients[*line.IngredientID]
			if !ok {
				w.note(NoteMissing, itemID, *line.IngredientID, path, depth,
					fmt.Sprintf("item %d references unknown ingredient %d", itemID, *line.IngredientID))
				continue
			}
			converted, ok := utils.ConvertQuantity(qty, line.Unit, ing.Unit)
			if !ok {
				w.note(NoteUnitMismatch, itemID, ing.ID, path, depth,
					fmt.Sprintf("recipe unit %q cannot be converted to %q for %s; used as-is", line.Unit, ing.Unit, ing.Name))
			}
			leaf(ing, converted)

		default:
			w.note(NoteMissing, itemID, 0, path, depth,
				fmt.Sprintf("recipe line %d of item %d has no source", line.ID, itemID))
		}
	}
}

func (w *recipeWalker) note(kind NoteKind, itemID, refID uint, path []uint, depth int, msg string) {
	w.notes = append(w.notes, TraversalNote{
		Kind:    kind,
		ItemID:  itemID,
		RefID:   refID,
		Path:    append([]uint(nil), path...),
		Depth:   depth,
		Message: msg,
	})
}

// ResolveCost returns the ingredient cost of one unit of itemID. Ingredients without
// a unit cost contribute zero.
func ResolveCost(g *RecipeGraph, itemID uint, maxDepth int) (decimal.Decimal, []TraversalNote) {
	w := newRecipeWalker(g, maxDepth)
	total := decimal.Zero
	w.walk(itemID, decimal.NewFromInt(1), 0, []uint{itemID}, func(ing models.StockIngredient, qty decimal.Decimal) {
		if ing.UnitCost.Valid {
			total = total.Add(qty.Mul(ing.UnitCost.Decimal))
		}
	})
	return total, w.notes
}

type Deduction struct {
	IngredientID   uint            `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
}

type Explosion struct {
	Deductions []Deduction     `json:"deductions"`
	Notes      []TraversalNote `json:"notes,omitempty"`
}

// ExplodeRecipe flattens quantitySold units of itemID into base-ingredient deductions,
// merging ingredients reached through different branches.
func ExplodeRecipe(g *RecipeGraph, itemID uint, quantitySold decimal.Decimal, maxDepth int) Explosion {
	w := newRecipeWalker(g, maxDepth)
	acc := make(map[uint]*Deduction)
	w.walk(itemID, quantitySold, 0, []uint{itemID}, func(ing models.StockIngredient, qty decimal.Decimal) {
		if d, ok := acc[ing.ID]; ok {
			d.Quantity = d.Quantity.Add(qty)
			return
		}
		acc[ing.ID] = &Deduction{IngredientID: ing.ID, IngredientName: ing.Name, Quantity: qty, Unit: ing.Unit}
	})

	out := make([]Deduction, 0, len(acc))
	for _, d := range acc {
		out = append(out, *d)
	}
	sortDeductions(out)
	return Explosion{Deductions: out, Notes: w.notes}
}

// MergeDeductions sums deductions per ingredient across several explosions.
func MergeDeductions(lists ...[]Deduction) []Deduction {
	acc := make(map[uint]*Deduction)
	for _, list := range lists {
		for _, d := range list {
			if cur, ok := acc[d.IngredientID]; ok {
				cur.Quantity = cur.Quantity.Add(d.Quantity)
				continue
			}
			cp := d
			acc[d.IngredientID] = &cp
		}
	}
	out := make([]Deduction, 0, len(acc))
	for _, d := range acc {
		out = append(out, *d)
	}
	sortDeductions(out)
	return out
}

// Deductions are ordered by ingredient id so row locks are always taken in the same order.
func sortDeductions(ds []Deduction) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].IngredientID < ds[j].IngredientID })
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func appendID(path []uint, id uint) []uint {
	next := make([]uint, len(path), len(path)+1)
	copy(next, path)
	return append(next, id)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
