package coupon

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator checks a coupon code against an order context and reports the
// computed discount. Policy failures are part of the Validation result;
// returned errors are reserved for storage faults.
type Validator interface {
	Validate(ctx context.Context, code string, items []Item, customer Customer, subtotal decimal.Decimal) (*Validation, error)
}

// PolicyValidator implements Validator by looking up coupons from a Repository
// and running the full eligibility chain before computing the discount.
type PolicyValidator struct {
	repo Repository
	now  func() time.Time
}

// NewPolicyValidator creates a PolicyValidator backed by the given Repository.
func NewPolicyValidator(repo Repository) *PolicyValidator {
	return &PolicyValidator{repo: repo, now: time.Now}
}

// Validate runs the eligibility checks in order, short-circuiting on the first
// failure: existence, active flag, validity window (inclusive on both ends),
// global usage cap, minimum order value, customer allow-list, tier allow-list,
// per-customer usage cap, and at least one applicable order line. Only then is
// the discount computed; a coupon that is valid by policy but discounts to
// zero is still reported valid.
func (v *PolicyValidator) Validate(ctx context.Context, code string, items []Item, customer Customer, subtotal decimal.Decimal) (*Validation, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid(ReasonNotFound, fmt.Sprintf("coupon %q not found", code)), nil
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.IsActive {
		return invalid(ReasonInactive, fmt.Sprintf("coupon %s is not active", c.Code)), nil
	}

	now := v.now()
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return invalid(ReasonNotYetValid, fmt.Sprintf("coupon %s is not valid yet", c.Code)), nil
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return invalid(ReasonExpired, fmt.Sprintf("coupon %s has expired", c.Code)), nil
	}

	if c.MaxUsages > 0 && c.UsageCount >= c.MaxUsages {
		return invalid(ReasonUsageLimitReached, fmt.Sprintf("coupon %s has reached its usage limit", c.Code)), nil
	}

	if c.MinOrderValue.IsPositive() && subtotal.LessThan(c.MinOrderValue) {
		return invalid(ReasonMinOrderNotMet,
			fmt.Sprintf("order must be at least %s to use coupon %s", c.MinOrderValue.StringFixed(2), c.Code)), nil
	}

	if len(c.AllowedCustomers) > 0 && !slices.Contains(c.AllowedCustomers, customer.ID) {
		return invalid(ReasonCustomerNotAllowed, fmt.Sprintf("coupon %s is not available for this customer", c.Code)), nil
	}

	if len(c.AllowedTiers) > 0 && !slices.Contains(c.AllowedTiers, customer.Tier) {
		return invalid(ReasonTierNotAllowed, fmt.Sprintf("coupon %s is not available for tier %q", c.Code, customer.Tier)), nil
	}

	if c.MaxUsagesPerCustomer > 0 {
		used, err := v.repo.CustomerUsage(ctx, customer.ID, c.Code)
		if err != nil {
			return nil, errors.Wrap(err, "get customer usage")
		}
		if used >= c.MaxUsagesPerCustomer {
			return invalid(ReasonCustomerLimitReached,
				fmt.Sprintf("coupon %s has already been used the maximum number of times", c.Code)), nil
		}
	}

	applicable := ApplicableLines(c, items)
	if len(applicable) == 0 {
		return invalid(ReasonNoApplicableItems, fmt.Sprintf("no items in the order qualify for coupon %s", c.Code)), nil
	}

	discount, err := ComputeDiscount(c, applicable)
	if err != nil {
		return nil, errors.Wrap(err, "compute discount")
	}

	message := c.Description
	if message == "" {
		message = fmt.Sprintf("coupon %s applied", c.Code)
	}

	return &Validation{Valid: true, Discount: discount, Message: message, Stackable: c.IsStackable}, nil
}

func invalid(reason Reason, message string) *Validation {
	return &Validation{Valid: false, Reason: reason, Message: message, Discount: decimal.Zero}
}
