// Package pricing sequences coupon stacking and tax computation into a final
// order quote.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/coupon"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/tax"
)

// Quote is the final pricing breakdown for an order.
type Quote struct {
	Subtotal           decimal.Decimal
	Discount           decimal.Decimal
	DiscountedSubtotal decimal.Decimal
	TaxAmount          decimal.Decimal
	Total              decimal.Decimal

	AppliedCoupons []coupon.AppliedCoupon
	Conflicts      []string
	Warnings       []string
	TaxBreakdown   []tax.Line
	TaxInclusive   bool
}

// Orchestrator produces quotes by resolving coupon codes against the raw
// subtotal, then taxing what remains. Discount-before-tax is deliberate:
// value that was discounted away must not be taxed.
type Orchestrator struct {
	resolver *coupon.Resolver
	taxes    *tax.Engine
}

// NewOrchestrator creates an Orchestrator from its two collaborators.
func NewOrchestrator(resolver *coupon.Resolver, taxes *tax.Engine) *Orchestrator {
	return &Orchestrator{resolver: resolver, taxes: taxes}
}

// Quote prices an order: raw subtotal, stacked coupon resolution against that
// subtotal, discounted subtotal (floored at zero), tax on the discounted
// value, and a final total of discounted subtotal plus tax.
func (o *Orchestrator) Quote(ctx context.Context, items []coupon.Item, customer coupon.Customer, codes []string, taxInclusive bool) (*Quote, error) {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal())
	}

	stacking, err := o.resolver.Resolve(ctx, items, customer, codes, subtotal)
	if err != nil {
		return nil, errors.Wrap(err, "resolve coupons")
	}

	discounted := subtotal.Sub(stacking.TotalDiscount)
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}

	taxCalc, err := o.taxes.CalculateActive(ctx, discountedTaxItems(items, subtotal, discounted), taxInclusive)
	if err != nil {
		return nil, errors.Wrap(err, "calculate tax")
	}

	return &Quote{
		Subtotal:           subtotal.Round(2),
		Discount:           stacking.TotalDiscount.Round(2),
		DiscountedSubtotal: discounted.Round(2),
		TaxAmount:          taxCalc.TaxAmount,
		Total:              taxCalc.Total.Round(2),
		AppliedCoupons:     stacking.AppliedCoupons,
		Conflicts:          stacking.Conflicts,
		Warnings:           stacking.Warnings,
		TaxBreakdown:       taxCalc.Breakdown,
		TaxInclusive:       taxCalc.IsInclusive,
	}, nil
}

// discountedTaxItems spreads the net discount pro-rata over the order lines
// so per-product tax configs see discounted prices. The tax base stays equal
// to the discounted subtotal.
func discountedTaxItems(items []coupon.Item, subtotal, discounted decimal.Decimal) []tax.Item {
	out := make([]tax.Item, len(items))
	scale := decimal.NewFromInt(1)
	if subtotal.IsPositive() && !discounted.Equal(subtotal) {
		scale = discounted.Div(subtotal)
	}
	for i, it := range items {
		out[i] = tax.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.Mul(scale),
		}
	}
	return out
}
