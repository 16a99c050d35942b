package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/tax"
)

const (
	listActiveTaxConfigsSQL = `SELECT id, name, type, rate, is_inclusive, applicable_products, is_active
		FROM tax_configs WHERE is_active = TRUE ORDER BY name`

	saveTaxConfigSQL = `INSERT INTO tax_configs (id, name, type, rate, is_inclusive, applicable_products, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			rate = EXCLUDED.rate,
			is_inclusive = EXCLUDED.is_inclusive,
			applicable_products = EXCLUDED.applicable_products,
			is_active = EXCLUDED.is_active`
)

var _ tax.Repository = (*TaxConfigRepository)(nil)

// TaxConfigRepository implements tax.Repository backed by PostgreSQL.
type TaxConfigRepository struct {
	pool *pgxpool.Pool
}

// NewTaxConfigRepository returns a TaxConfigRepository that uses the given pool.
func NewTaxConfigRepository(pool *pgxpool.Pool) *TaxConfigRepository {
	return &TaxConfigRepository{pool: pool}
}

// ListActive returns all active tax configs ordered by name.
func (r *TaxConfigRepository) ListActive(ctx context.Context) ([]tax.Config, error) {
	rows, err := r.pool.Query(ctx, listActiveTaxConfigsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active tax configs: %w", err)
	}
	return pgx.CollectRows(rows, scanTaxConfig)
}

// Save upserts a tax config keyed by its ID.
func (r *TaxConfigRepository) Save(ctx context.Context, c *tax.Config) error {
	_, err := r.pool.Exec(ctx, saveTaxConfigSQL,
		c.ID, c.Name, string(c.Type), c.Rate, c.IsInclusive, emptyIfNil(c.ApplicableProducts), c.IsActive)
	if err != nil {
		return fmt.Errorf("saving tax config %q: %w", c.ID, err)
	}
	return nil
}

func scanTaxConfig(row pgx.CollectableRow) (tax.Config, error) {
	var (
		c       tax.Config
		cfgType string
	)
	err := row.Scan(&c.ID, &c.Name, &cfgType, &c.Rate, &c.IsInclusive, &c.ApplicableProducts, &c.IsActive)
	c.Type = tax.Type(cfgType)
	return c, err
}
