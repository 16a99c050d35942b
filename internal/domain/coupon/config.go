package coupon

import (
	"fmt"
	"strings"
)

// CheckConfig validates an administrator-authored coupon before it is
// persisted. All violations are collected and returned together, not just the
// first one. A nil result means the coupon is well-formed.
func CheckConfig(c *Coupon) []string {
	var violations []string

	if strings.TrimSpace(c.Code) == "" {
		violations = append(violations, "code is required")
	}

	switch c.Archetype {
	case ArchetypePercentage, ArchetypeFixed, ArchetypeFreeShipping:
	case ArchetypeBOGO, ArchetypeBuyXGetY:
		if c.BuyQuantity <= 0 {
			violations = append(violations, "buyQuantity must be greater than 0")
		}
		if c.GetQuantity <= 0 {
			violations = append(violations, "getQuantity must be greater than 0")
		}
	default:
		violations = append(violations, fmt.Sprintf("unknown archetype %q", c.Archetype))
	}

	if c.Value.IsNegative() {
		violations = append(violations, "value must not be negative")
	}
	if c.Archetype == ArchetypePercentage && c.Value.GreaterThan(hundred) {
		violations = append(violations, "percentage value must not exceed 100")
	}

	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		violations = append(violations, "validUntil must not be before validFrom")
	}

	if c.MinOrderValue.IsNegative() {
		violations = append(violations, "minOrderValue must not be negative")
	}
	if c.MaxDiscount.IsNegative() {
		violations = append(violations, "maxDiscount must not be negative")
	}

	if c.MaxUsages < 0 {
		violations = append(violations, "maxUsages must not be negative")
	}
	if c.MaxUsages > 0 && c.UsageCount > c.MaxUsages {
		violations = append(violations, "usageCount must not exceed maxUsages")
	}
	if c.MaxUsagesPerCustomer < 0 {
		violations = append(violations, "maxUsagesPerCustomer must not be negative")
	}

	return violations
}
