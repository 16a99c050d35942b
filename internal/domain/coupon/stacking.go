package coupon

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// AppliedCoupon records a single accepted coupon within a stacking batch.
type AppliedCoupon struct {
	Code      string
	Discount  decimal.Decimal
	Stackable bool
	Message   string
}

// StackingResult is the best-effort outcome of resolving a batch of coupon
// codes. Invalid codes land in Conflicts and combination rejections in
// Warnings; the batch never aborts on a policy failure. The caller decides
// whether partial success is acceptable for checkout.
type StackingResult struct {
	TotalDiscount  decimal.Decimal
	AppliedCoupons []AppliedCoupon
	Conflicts      []string
	Warnings       []string
}

// Resolver combines multiple coupon codes into one net discount, enforcing
// the non-stackable exclusivity rule.
type Resolver struct {
	validator Validator
}

// NewResolver creates a Resolver that validates codes with the given Validator.
func NewResolver(validator Validator) *Resolver {
	return &Resolver{validator: validator}
}

// Resolve processes codes strictly in the order supplied. The first accepted
// non-stackable coupon blocks every later code, and a non-stackable code is
// itself rejected when any coupon was already accepted. Code order is
// significant and must be preserved by callers.
func (r *Resolver) Resolve(ctx context.Context, items []Item, customer Customer, codes []string, subtotal decimal.Decimal) (*StackingResult, error) {
	result := &StackingResult{TotalDiscount: decimal.Zero}

	exclusiveApplied := false
	for _, code := range codes {
		v, err := r.validator.Validate(ctx, code, items, customer, subtotal)
		if err != nil {
			return nil, errors.Wrapf(err, "validate coupon %s", code)
		}

		if !v.Valid {
			result.Conflicts = append(result.Conflicts, fmt.Sprintf("%s: %s", code, v.Message))
			continue
		}

		if exclusiveApplied {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("coupon %s cannot be combined with a non-stackable coupon", code))
			continue
		}
		if !v.Stackable && len(result.AppliedCoupons) > 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("coupon %s is not stackable and cannot be combined with other coupons", code))
			continue
		}

		if !v.Stackable {
			exclusiveApplied = true
		}
		result.AppliedCoupons = append(result.AppliedCoupons, AppliedCoupon{
			Code:      code,
			Discount:  v.Discount,
			Stackable: v.Stackable,
			Message:   v.Message,
		})
		result.TotalDiscount = result.TotalDiscount.Add(v.Discount)
	}

	return result, nil
}
