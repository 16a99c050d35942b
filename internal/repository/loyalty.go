package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/loyalty"
)

const (
	getLoyaltyAccountSQL = `SELECT customer_id, balance, lifetime_earned, tier
		FROM loyalty_accounts WHERE customer_id = $1`

	getLoyaltyLotsSQL = `SELECT points, expires_at FROM loyalty_lots
		WHERE customer_id = $1 ORDER BY expires_at, id`

	getLoyaltyTransactionsSQL = `SELECT id, type, points, description, created_at
		FROM loyalty_transactions WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`

	upsertLoyaltyAccountSQL = `INSERT INTO loyalty_accounts (customer_id, balance, lifetime_earned, tier)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			lifetime_earned = EXCLUDED.lifetime_earned,
			tier = EXCLUDED.tier,
			updated_at = now()`

	deleteLoyaltyLotsSQL = `DELETE FROM loyalty_lots WHERE customer_id = $1`

	insertLoyaltyLotSQL = `INSERT INTO loyalty_lots (customer_id, points, expires_at)
		VALUES ($1, $2, $3)`

	// Transactions are immutable; replayed saves skip entries already written.
	insertLoyaltyTransactionSQL = `INSERT INTO loyalty_transactions (id, customer_id, type, points, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
)

var _ loyalty.Repository = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Repository backed by PostgreSQL.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// Get loads an account with its lots (soonest expiry first) and its
// transaction log (newest first).
// Returns loyalty.ErrAccountNotFound when the customer has no account.
func (r *LoyaltyRepository) Get(ctx context.Context, customerID string) (*loyalty.Account, error) {
	var account loyalty.Account
	err := r.pool.QueryRow(ctx, getLoyaltyAccountSQL, customerID).Scan(
		&account.CustomerID, &account.Balance, &account.LifetimeEarned, &account.Tier,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loyalty.ErrAccountNotFound
		}
		return nil, fmt.Errorf("getting loyalty account %q: %w", customerID, err)
	}

	lotRows, err := r.pool.Query(ctx, getLoyaltyLotsSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting loyalty lots for %q: %w", customerID, err)
	}
	account.Lots, err = pgx.CollectRows(lotRows, func(row pgx.CollectableRow) (loyalty.Lot, error) {
		var lot loyalty.Lot
		err := row.Scan(&lot.Points, &lot.ExpiresAt)
		return lot, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting loyalty lots for %q: %w", customerID, err)
	}

	txnRows, err := r.pool.Query(ctx, getLoyaltyTransactionsSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting loyalty transactions for %q: %w", customerID, err)
	}
	account.Transactions, err = pgx.CollectRows(txnRows, func(row pgx.CollectableRow) (loyalty.Transaction, error) {
		var txn loyalty.Transaction
		var txnType string
		err := row.Scan(&txn.ID, &txnType, &txn.Points, &txn.Description, &txn.CreatedAt)
		txn.Type = loyalty.TransactionType(txnType)
		return txn, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting loyalty transactions for %q: %w", customerID, err)
	}

	return &account, nil
}

// Save writes the account state in one transaction: the aggregate row is
// upserted, the lot list is replaced wholesale, and any new ledger entries
// are appended. Existing transactions are never modified.
func (r *LoyaltyRepository) Save(ctx context.Context, account *loyalty.Account) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("saving loyalty account %q: %w", account.CustomerID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, upsertLoyaltyAccountSQL,
		account.CustomerID, account.Balance, account.LifetimeEarned, account.Tier)
	if err != nil {
		return fmt.Errorf("saving loyalty account %q: %w", account.CustomerID, err)
	}

	if _, err := tx.Exec(ctx, deleteLoyaltyLotsSQL, account.CustomerID); err != nil {
		return fmt.Errorf("replacing loyalty lots for %q: %w", account.CustomerID, err)
	}
	for _, lot := range account.Lots {
		if _, err := tx.Exec(ctx, insertLoyaltyLotSQL, account.CustomerID, lot.Points, lot.ExpiresAt); err != nil {
			return fmt.Errorf("replacing loyalty lots for %q: %w", account.CustomerID, err)
		}
	}

	for _, txn := range account.Transactions {
		_, err := tx.Exec(ctx, insertLoyaltyTransactionSQL,
			txn.ID, account.CustomerID, string(txn.Type), txn.Points, txn.Description, txn.CreatedAt)
		if err != nil {
			return fmt.Errorf("appending loyalty transaction %q: %w", txn.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("saving loyalty account %q: %w", account.CustomerID, err)
	}
	return nil
}
