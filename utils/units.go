package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

type unitDef struct {
	family string
	factor decimal.Decimal // multiples of the family base unit
}

var units = map[string]unitDef{
	"g":    {"mass", decimal.NewFromInt(1)},
	"kg":   {"mass", decimal.NewFromInt(1000)},
	"oz":   {"mass", decimal.RequireFromString("28.349523125")},
	"lb":   {"mass", decimal.RequireFromString("453.59237")},
	"ml":   {"volume", decimal.NewFromInt(1)},
	"l":    {"volume", decimal.NewFromInt(1000)},
	"each": {"count", decimal.NewFromInt(1)},
	"ea":   {"count", decimal.NewFromInt(1)},
	"pc":   {"count", decimal.NewFromInt(1)},
}

// NormalizeUnit lowercases and trims a unit label.
func NormalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// ConvertQuantity converts qty from one unit into another. Empty or identical units
// convert as-is. ok is false when the units are unknown or of different families.
func ConvertQuantity(qty decimal.Decimal, from, to string) (decimal.Decimal, bool) {
	from, to = NormalizeUnit(from), NormalizeUnit(to)
	if from == "" || to == "" || from == to {
		return qty, true
	}
	f, okFrom := units[from]
	t, okTo := units[to]
	if !okFrom || !okTo || f.family != t.family {
		return qty, false
	}
	return qty.Mul(f.factor).Div(t.factor), true
}
