package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Archetype enumerates the supported coupon discount strategies.
type Archetype string

const (
	// ArchetypePercentage applies a percentage-based discount to the applicable subtotal.
	ArchetypePercentage Archetype = "percentage"
	// ArchetypeFixed applies a fixed monetary discount capped at the applicable subtotal.
	ArchetypeFixed Archetype = "fixed"
	// ArchetypeBOGO grants free units for every completed buy+get set.
	ArchetypeBOGO Archetype = "bogo"
	// ArchetypeBuyXGetY grants a single batch of free units once the buy threshold is met.
	ArchetypeBuyXGetY Archetype = "buy_x_get_y"
	// ArchetypeFreeShipping waives the shipping cost carried in the coupon value.
	ArchetypeFreeShipping Archetype = "free_shipping"
)

var (
	// ErrNotFound is returned when a coupon code does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrUsageLimitReached is returned by the store when the global usage cap
	// would be exceeded by another redemption.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCustomerLimitReached is returned by the store when the per-customer
	// usage cap would be exceeded by another redemption.
	ErrCustomerLimitReached = errors.New("customer usage limit reached")
)

// Coupon is an administrator-authored discount rule.
//
// Zero values mean "unconfigured" for the optional constraints: a nil validity
// bound is open-ended, empty product/customer/tier lists impose no restriction,
// and a zero cap is uncapped.
type Coupon struct {
	Code      string
	Archetype Archetype
	// Value is a percent for percentage coupons, a monetary amount for fixed
	// coupons, and the waived shipping cost for free-shipping coupons.
	Value       decimal.Decimal
	Description string

	ValidFrom  *time.Time
	ValidUntil *time.Time

	MinOrderValue decimal.Decimal
	MaxDiscount   decimal.Decimal

	ApplicableProducts   []string
	ExcludedProducts     []string
	ApplicableCategories []string

	MaxUsages            int
	UsageCount           int
	MaxUsagesPerCustomer int

	AllowedCustomers []string
	AllowedTiers     []string

	IsActive    bool
	IsStackable bool

	// BOGO parameters. For bogo, every BuyQuantity+GetQuantity units form a
	// set; for buy_x_get_y, GetQuantity units are granted once the total
	// quantity reaches BuyQuantity.
	BuyQuantity int
	GetQuantity int

	Metadata map[string]string
}

// Item is a single order line as seen by the pricing engine. Lines are
// consumed, never mutated.
type Item struct {
	ProductID string
	Category  string
	Quantity  int
	UnitPrice decimal.Decimal
	// LineDiscount is a per-line discount already applied upstream. It is
	// carried for reporting and does not participate in coupon math.
	LineDiscount decimal.Decimal
}

// Subtotal returns quantity times unit price for this line.
func (it Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Customer identifies the buyer for allow-list and tier checks.
type Customer struct {
	ID   string
	Tier string
}

// Reason classifies why a coupon was rejected by policy.
type Reason string

const (
	ReasonNotFound             Reason = "not_found"
	ReasonInactive             Reason = "inactive"
	ReasonNotYetValid          Reason = "not_yet_valid"
	ReasonExpired              Reason = "expired"
	ReasonUsageLimitReached    Reason = "usage_limit_reached"
	ReasonMinOrderNotMet       Reason = "min_order_not_met"
	ReasonCustomerNotAllowed   Reason = "customer_not_allowed"
	ReasonTierNotAllowed       Reason = "tier_not_allowed"
	ReasonCustomerLimitReached Reason = "customer_limit_reached"
	ReasonNoApplicableItems    Reason = "no_applicable_items"
	ReasonCannotCombine        Reason = "cannot_combine"
)

// Validation is the outcome of checking a coupon against an order context.
// A coupon that passes every policy check but discounts to zero is still
// Valid with a zero Discount.
type Validation struct {
	Valid    bool
	Discount decimal.Decimal
	Message  string
	Reason   Reason
	// Stackable mirrors the coupon's IsStackable flag for valid results, so
	// the stacking resolver can enforce exclusivity without a second lookup.
	Stackable bool
}

// Repository provides lookup and mutation of coupons and their usage counters.
//
// IncrementUsage must be atomic and cap-aware: it increments both the global
// usage counter and the (customerID, code) counter in one transaction, and
// fails with ErrUsageLimitReached or ErrCustomerLimitReached when either cap
// is already exhausted. The engine never performs read-modify-write on
// counters itself.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, activeOnly bool) ([]Coupon, error)
	Save(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
	IncrementUsage(ctx context.Context, code, customerID string) error
	CustomerUsage(ctx context.Context, customerID, code string) (int, error)
}
