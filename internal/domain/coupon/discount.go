package coupon

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// ApplicableLines filters order lines down to the set this coupon applies to.
// Explicitly excluded products are dropped first; when a product or category
// allow-list is configured, only matching lines survive. A coupon with no
// product restrictions applies to every line.
func ApplicableLines(c *Coupon, items []Item) []Item {
	excluded := toSet(c.ExcludedProducts)
	products := toSet(c.ApplicableProducts)
	categories := toSet(c.ApplicableCategories)
	restricted := len(products) > 0 || len(categories) > 0

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if _, skip := excluded[it.ProductID]; skip {
			continue
		}
		if restricted {
			_, byProduct := products[it.ProductID]
			_, byCategory := categories[it.Category]
			if !byProduct && !byCategory {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// ComputeDiscount calculates the monetary discount the coupon yields over the
// given applicable lines. The result is rounded half-up to two decimal places
// at the point of return and never exceeds the applicable subtotal.
func ComputeDiscount(c *Coupon, applicable []Item) (decimal.Decimal, error) {
	subtotal := linesSubtotal(applicable)

	switch c.Archetype {
	case ArchetypePercentage:
		amount := subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount)
		}
		return clampAndRound(amount, subtotal), nil

	case ArchetypeFixed:
		return clampAndRound(decimal.Min(c.Value, subtotal), subtotal), nil

	case ArchetypeBOGO:
		setSize := c.BuyQuantity + c.GetQuantity
		if setSize <= 0 {
			return zero, errors.Errorf("coupon %s: bogo set size must be positive", c.Code)
		}
		sets := totalQuantity(applicable) / setSize
		return clampAndRound(freeUnitsValue(applicable, sets*c.GetQuantity), subtotal), nil

	case ArchetypeBuyXGetY:
		if totalQuantity(applicable) < c.BuyQuantity {
			return zero, nil
		}
		return clampAndRound(freeUnitsValue(applicable, c.GetQuantity), subtotal), nil

	case ArchetypeFreeShipping:
		// Value carries the shipping cost being waived, supplied by the caller.
		return clampAndRound(c.Value, c.Value), nil

	default:
		return zero, errors.Errorf("unsupported coupon archetype: %q", c.Archetype)
	}
}

// freeUnitsValue prices freeUnits worth of goods, consuming the cheapest lines
// first. Partial consumption within a line is allowed. Allocating from the
// cheap end keeps the discount merchant-favorable.
func freeUnitsValue(items []Item, freeUnits int) decimal.Decimal {
	if freeUnits <= 0 {
		return zero
	}

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UnitPrice.LessThan(sorted[j].UnitPrice)
	})

	value := zero
	remaining := freeUnits
	for _, it := range sorted {
		if remaining <= 0 {
			break
		}
		take := min(remaining, it.Quantity)
		value = value.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(take))))
		remaining -= take
	}
	return value
}

// linesSubtotal sums quantity times unit price across the given lines.
func linesSubtotal(items []Item) decimal.Decimal {
	sum := zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// totalQuantity sums quantities across the given lines.
func totalQuantity(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// clampAndRound bounds the amount to [0, ceiling] and rounds half-up to cents.
func clampAndRound(amount, ceiling decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return zero
	}
	if amount.GreaterThan(ceiling) {
		amount = ceiling
	}
	return amount.Round(2)
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
