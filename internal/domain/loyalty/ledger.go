package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds the loyalty program parameters.
type Config struct {
	// PointsPerDollar is the base accrual rate applied to the charged amount.
	PointsPerDollar decimal.Decimal
	// DollarsPerPoint is the monetary value of one point at redemption.
	DollarsPerPoint decimal.Decimal
	// MinimumRedemption is the smallest number of points a customer may redeem.
	MinimumRedemption int64
	// ExpirationDays is the lifetime of newly earned points. Zero disables
	// expiration entirely: no lots are created.
	ExpirationDays int
	// TierMultipliers scales accrual per customer tier. Unknown tiers use 1.
	TierMultipliers map[string]decimal.Decimal
}

// Ledger accrues, redeems, and expires point balances per customer. It is
// invoked after payment settlement, keyed by the final charged amount.
type Ledger struct {
	accounts Repository
	cfg      Config
	now      func() time.Time
}

// NewLedger creates a Ledger with the given account store and program config.
func NewLedger(accounts Repository, cfg Config) *Ledger {
	return &Ledger{accounts: accounts, cfg: cfg, now: time.Now}
}

// Accrue awards points for a settled charge:
//
//	pointsEarned = floor(charged * pointsPerDollar * tierMultiplier)
//
// It appends an earned transaction, raises the balance and lifetime total,
// and opens a new expiring lot when expiration is configured. A customer
// without an account gets one created on first accrual.
func (l *Ledger) Accrue(ctx context.Context, customerID string, charged decimal.Decimal) (int64, error) {
	account, err := l.getOrCreate(ctx, customerID)
	if err != nil {
		return 0, err
	}

	multiplier, ok := l.cfg.TierMultipliers[account.Tier]
	if !ok {
		multiplier = decimal.NewFromInt(1)
	}

	earned := charged.Mul(l.cfg.PointsPerDollar).Mul(multiplier).Floor().IntPart()
	if earned < 0 {
		earned = 0
	}

	now := l.now()
	account.Balance += earned
	account.LifetimeEarned += earned
	if l.cfg.ExpirationDays > 0 && earned > 0 {
		account.Lots = append(account.Lots, Lot{
			Points:    earned,
			ExpiresAt: now.AddDate(0, 0, l.cfg.ExpirationDays),
		})
	}
	prependTransaction(account, Transaction{
		ID:          uuid.New().String(),
		Type:        TransactionEarned,
		Points:      earned,
		Description: fmt.Sprintf("earned on purchase of %s", charged.StringFixed(2)),
		CreatedAt:   now,
	})

	if err := l.accounts.Save(ctx, account); err != nil {
		return 0, errors.Wrap(err, "save loyalty account")
	}
	return earned, nil
}

// Redeem converts points into their monetary value. It fails with
// ErrBelowMinimumRedemption or ErrInsufficientPoints without touching the
// account. Redemption consumes from the aggregate balance only; expiring lots
// are left as-is.
func (l *Ledger) Redeem(ctx context.Context, customerID string, points int64) (decimal.Decimal, error) {
	if points < l.cfg.MinimumRedemption {
		return decimal.Zero, errors.Wrapf(ErrBelowMinimumRedemption,
			"minimum redemption is %d points", l.cfg.MinimumRedemption)
	}

	account, err := l.accounts.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return decimal.Zero, ErrInsufficientPoints
		}
		return decimal.Zero, errors.Wrap(err, "get loyalty account")
	}

	if points > account.Balance {
		return decimal.Zero, errors.Wrapf(ErrInsufficientPoints,
			"balance is %d points", account.Balance)
	}

	value := decimal.NewFromInt(points).Mul(l.cfg.DollarsPerPoint).Round(2)

	account.Balance -= points
	prependTransaction(account, Transaction{
		ID:          uuid.New().String(),
		Type:        TransactionRedeemed,
		Points:      -points,
		Description: fmt.Sprintf("redeemed for %s", value.StringFixed(2)),
		CreatedAt:   l.now(),
	})

	if err := l.accounts.Save(ctx, account); err != nil {
		return decimal.Zero, errors.Wrap(err, "save loyalty account")
	}
	return value, nil
}

// ExpirePoints sweeps lots whose expiry has passed, deducts their sum from
// the balance, appends one expired transaction for the total, and retains the
// remaining lots. The sweep is idempotent: with no newly expired lots it is a
// no-op and returns 0.
//
// Because redemption does not consume from lots, a lot can expire points that
// were already spent, driving the balance below what the retained lots cover.
// The balance is deliberately not floored at zero so the mismatch stays
// visible to reporting.
func (l *Ledger) ExpirePoints(ctx context.Context, customerID string) (int64, error) {
	account, err := l.accounts.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get loyalty account")
	}

	now := l.now()
	var expired int64
	retained := account.Lots[:0:0]
	for _, lot := range account.Lots {
		if lot.ExpiresAt.Before(now) {
			expired += lot.Points
		} else {
			retained = append(retained, lot)
		}
	}

	if expired == 0 {
		return 0, nil
	}

	account.Lots = retained
	account.Balance -= expired
	prependTransaction(account, Transaction{
		ID:          uuid.New().String(),
		Type:        TransactionExpired,
		Points:      -expired,
		Description: fmt.Sprintf("%d points expired", expired),
		CreatedAt:   now,
	})

	if err := l.accounts.Save(ctx, account); err != nil {
		return 0, errors.Wrap(err, "save loyalty account")
	}
	return expired, nil
}

// Adjust applies a manual correction as a new adjusted transaction. Existing
// entries are never edited.
func (l *Ledger) Adjust(ctx context.Context, customerID string, points int64, reason string) error {
	account, err := l.getOrCreate(ctx, customerID)
	if err != nil {
		return err
	}

	account.Balance += points
	if points > 0 {
		account.LifetimeEarned += points
	}
	prependTransaction(account, Transaction{
		ID:          uuid.New().String(),
		Type:        TransactionAdjusted,
		Points:      points,
		Description: reason,
		CreatedAt:   l.now(),
	})

	return errors.Wrap(l.accounts.Save(ctx, account), "save loyalty account")
}

func (l *Ledger) getOrCreate(ctx context.Context, customerID string) (*Account, error) {
	account, err := l.accounts.Get(ctx, customerID)
	if err == nil {
		return account, nil
	}
	if errors.Is(err, ErrAccountNotFound) {
		return &Account{CustomerID: customerID}, nil
	}
	return nil, errors.Wrap(err, "get loyalty account")
}

// prependTransaction keeps the ledger newest-first.
func prependTransaction(account *Account, txn Transaction) {
	account.Transactions = append([]Transaction{txn}, account.Transactions...)
}
