package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/coupon"
)

const couponColumns = `code, archetype, value, description, valid_from, valid_until,
		min_order_value, max_discount, applicable_products, excluded_products,
		applicable_categories, max_usages, usage_count, max_usages_per_customer,
		allowed_customers, allowed_tiers, is_active, is_stackable,
		buy_quantity, get_quantity, metadata`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY code`

	listActiveCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE is_active = TRUE ORDER BY code`

	saveCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (code) DO UPDATE SET
			archetype = EXCLUDED.archetype,
			value = EXCLUDED.value,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			min_order_value = EXCLUDED.min_order_value,
			max_discount = EXCLUDED.max_discount,
			applicable_products = EXCLUDED.applicable_products,
			excluded_products = EXCLUDED.excluded_products,
			applicable_categories = EXCLUDED.applicable_categories,
			max_usages = EXCLUDED.max_usages,
			usage_count = EXCLUDED.usage_count,
			max_usages_per_customer = EXCLUDED.max_usages_per_customer,
			allowed_customers = EXCLUDED.allowed_customers,
			allowed_tiers = EXCLUDED.allowed_tiers,
			is_active = EXCLUDED.is_active,
			is_stackable = EXCLUDED.is_stackable,
			buy_quantity = EXCLUDED.buy_quantity,
			get_quantity = EXCLUDED.get_quantity,
			metadata = EXCLUDED.metadata,
			updated_at = now()`

	deleteCouponSQL = `DELETE FROM coupons WHERE UPPER(code) = UPPER($1)`

	// The conditional UPDATE is what makes the global cap race-free: two
	// concurrent redemptions both pass the WHERE only while usage_count is
	// below the cap, and row locking serializes the increments.
	incrementGlobalUsageSQL = `UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE UPPER(code) = UPPER($1) AND (max_usages = 0 OR usage_count < max_usages)
		RETURNING code, max_usages_per_customer`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE UPPER(code) = UPPER($1))`

	// Conditional upsert: the WHERE clause blocks the update once the
	// per-customer cap is reached, so no row comes back and the enclosing
	// transaction rolls back the global increment too.
	incrementCustomerUsageSQL = `INSERT INTO coupon_usages (customer_id, code, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (customer_id, code) DO UPDATE SET count = coupon_usages.count + 1
		WHERE $3 = 0 OR coupon_usages.count < $3
		RETURNING count`

	getCustomerUsageSQL = `SELECT count FROM coupon_usages
		WHERE customer_id = $1 AND UPPER(code) = UPPER($2)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// List returns all coupons, or only the active ones, ordered by code.
func (r *CouponRepository) List(ctx context.Context, activeOnly bool) ([]coupon.Coupon, error) {
	query := listCouponsSQL
	if activeOnly {
		query = listActiveCouponsSQL
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Save upserts a coupon keyed by its code.
func (r *CouponRepository) Save(ctx context.Context, c *coupon.Coupon) error {
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := r.pool.Exec(ctx, saveCouponSQL,
		c.Code, string(c.Archetype), c.Value, c.Description, c.ValidFrom, c.ValidUntil,
		c.MinOrderValue, c.MaxDiscount,
		emptyIfNil(c.ApplicableProducts), emptyIfNil(c.ExcludedProducts), emptyIfNil(c.ApplicableCategories),
		c.MaxUsages, c.UsageCount, c.MaxUsagesPerCustomer,
		emptyIfNil(c.AllowedCustomers), emptyIfNil(c.AllowedTiers),
		c.IsActive, c.IsStackable, c.BuyQuantity, c.GetQuantity, metadata,
	)
	if err != nil {
		return fmt.Errorf("saving coupon %q: %w", c.Code, err)
	}
	return nil
}

// Delete removes a coupon and, via cascade, its per-customer usage counters.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// IncrementUsage atomically bumps both the global and the per-customer usage
// counters in one transaction. It fails with coupon.ErrUsageLimitReached or
// coupon.ErrCustomerLimitReached when the respective cap is exhausted, rolling
// back any partial increment.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code, customerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var (
		canonicalCode string
		customerCap   int
	)
	err = tx.QueryRow(ctx, incrementGlobalUsageSQL, code).Scan(&canonicalCode, &customerCap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if lookupErr := r.pool.QueryRow(ctx, couponExistsSQL, code).Scan(&exists); lookupErr != nil {
				return fmt.Errorf("incrementing usage for coupon %q: %w", code, lookupErr)
			}
			if !exists {
				return coupon.ErrNotFound
			}
			return coupon.ErrUsageLimitReached
		}
		return fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
	}

	var count int
	err = tx.QueryRow(ctx, incrementCustomerUsageSQL, customerID, canonicalCode, customerCap).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrCustomerLimitReached
		}
		return fmt.Errorf("incrementing customer usage for coupon %q: %w", code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
	}
	return nil
}

// CustomerUsage returns how many times the customer has redeemed the coupon.
// A missing counter reads as zero.
func (r *CouponRepository) CustomerUsage(ctx context.Context, customerID, code string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, getCustomerUsageSQL, customerID, code).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting customer usage for coupon %q: %w", code, err)
	}
	return count, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		archetype  string
		validFrom  *time.Time
		validUntil *time.Time
	)
	err := row.Scan(
		&c.Code, &archetype, &c.Value, &c.Description, &validFrom, &validUntil,
		&c.MinOrderValue, &c.MaxDiscount,
		&c.ApplicableProducts, &c.ExcludedProducts, &c.ApplicableCategories,
		&c.MaxUsages, &c.UsageCount, &c.MaxUsagesPerCustomer,
		&c.AllowedCustomers, &c.AllowedTiers,
		&c.IsActive, &c.IsStackable, &c.BuyQuantity, &c.GetQuantity, &c.Metadata,
	)
	c.Archetype = coupon.Archetype(archetype)
	c.ValidFrom = validFrom
	c.ValidUntil = validUntil
	return c, err
}

// emptyIfNil maps a nil slice to an empty one so text[] columns never see NULL.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
