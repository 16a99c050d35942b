package tax

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Type enumerates the supported tax rule kinds. All of them are
// percentage-style except flat-fee, whose rate is an absolute amount.
type Type string

const (
	TypeVAT        Type = "vat"
	TypeGST        Type = "gst"
	TypeSalesTax   Type = "sales-tax"
	TypeFlatFee    Type = "flat-fee"
	TypePercentage Type = "percentage"
	TypeCustom     Type = "custom"
)

// Config is an administrator-authored tax rule. Multiple active configs may
// apply to one order; each computes independently against its own applicable
// subtotal and they never compound on each other's base.
type Config struct {
	ID   string
	Name string
	Type Type
	// Rate is a percent for percentage-style types and an absolute amount for
	// flat-fee.
	Rate decimal.Decimal
	// IsInclusive marks the rate as already embedded in displayed prices; the
	// pre-tax base is extracted instead of adding on top.
	IsInclusive bool
	// ApplicableProducts restricts the config to the listed products. Empty
	// means all items.
	ApplicableProducts []string
	IsActive           bool
}

// Repository lists the active tax configurations.
type Repository interface {
	ListActive(ctx context.Context) ([]Config, error)
}

// Line is one entry of a tax breakdown: a single config's independently
// rounded contribution.
type Line struct {
	ConfigID    string
	Name        string
	Type        Type
	Rate        decimal.Decimal
	Amount      decimal.Decimal
	IsInclusive bool
}

// Calculation is the result of running the engine over an order.
type Calculation struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
	Breakdown   []Line
	IsInclusive bool
}

// CheckConfig validates a tax rule before it is persisted, returning every
// violation at once. A nil result means the config is well-formed.
func CheckConfig(c *Config) []string {
	var violations []string

	if strings.TrimSpace(c.Name) == "" {
		violations = append(violations, "name is required")
	}

	switch c.Type {
	case TypeVAT, TypeGST, TypeSalesTax, TypeFlatFee, TypePercentage, TypeCustom:
	default:
		violations = append(violations, fmt.Sprintf("unknown tax type %q", c.Type))
	}

	if c.Rate.IsNegative() {
		violations = append(violations, "rate must not be negative")
	}
	if c.Type != TypeFlatFee && c.Rate.GreaterThan(decimal.NewFromInt(100)) {
		violations = append(violations, "percentage rate must not exceed 100")
	}
	if c.Type == TypeFlatFee && c.IsInclusive {
		violations = append(violations, "flat-fee configs cannot be inclusive")
	}

	return violations
}
