package loyalty

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// TransactionType classifies a loyalty ledger entry.
type TransactionType string

const (
	TransactionEarned   TransactionType = "earned"
	TransactionRedeemed TransactionType = "redeemed"
	TransactionExpired  TransactionType = "expired"
	// TransactionAdjusted models manual corrections. Written entries are
	// immutable; corrections always append, never edit.
	TransactionAdjusted TransactionType = "adjusted"
)

var (
	// ErrAccountNotFound is returned when no loyalty account exists for a customer.
	ErrAccountNotFound = errors.New("loyalty account not found")
	// ErrBelowMinimumRedemption is returned when a redemption is under the
	// configured minimum.
	ErrBelowMinimumRedemption = errors.New("points below minimum redemption")
	// ErrInsufficientPoints is returned when a redemption exceeds the balance.
	ErrInsufficientPoints = errors.New("insufficient points balance")
)

// Lot is a batch of points sharing a single expiry date. Lots partition
// earned points for FIFO-style expiration; they are advisory with respect to
// redemption, which consumes from the aggregate balance only.
type Lot struct {
	Points    int64
	ExpiresAt time.Time
}

// Transaction is one immutable entry in an account's ledger. Points is a
// signed delta: positive for earned/adjusted-up, negative for redeemed and
// expired entries.
type Transaction struct {
	ID          string
	Type        TransactionType
	Points      int64
	Description string
	CreatedAt   time.Time
}

// Account is a customer's loyalty state. Transactions are kept newest-first.
type Account struct {
	CustomerID     string
	Balance        int64
	LifetimeEarned int64
	Tier           string
	Lots           []Lot
	Transactions   []Transaction
}

// Repository persists loyalty accounts. Save is last-write-wins; callers must
// serialize access per customer.
type Repository interface {
	Get(ctx context.Context, customerID string) (*Account, error)
	Save(ctx context.Context, account *Account) error
}
