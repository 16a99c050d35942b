//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/loyalty"
	"github.com/apipat2499/omni-sales-sub006/internal/repository"
)

func TestLoyaltyRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLoyaltyRepository(pool)

	now := time.Now().UTC().Truncate(time.Second)
	account := &loyalty.Account{
		CustomerID:     "it-cust-1",
		Balance:        150,
		LifetimeEarned: 200,
		Tier:           "gold",
		Lots: []loyalty.Lot{
			{Points: 100, ExpiresAt: now.AddDate(0, 0, 30)},
			{Points: 50, ExpiresAt: now.AddDate(0, 0, 60)},
		},
		Transactions: []loyalty.Transaction{
			{
				ID:          uuid.New().String(),
				Type:        loyalty.TransactionEarned,
				Points:      200,
				Description: "earned on purchase",
				CreatedAt:   now,
			},
			{
				ID:          uuid.New().String(),
				Type:        loyalty.TransactionRedeemed,
				Points:      -50,
				Description: "redeemed",
				CreatedAt:   now.Add(time.Minute),
			},
		},
	}
	require.NoError(t, repo.Save(ctx, account))

	got, err := repo.Get(ctx, "it-cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.Balance)
	assert.Equal(t, int64(200), got.LifetimeEarned)
	assert.Equal(t, "gold", got.Tier)
	require.Len(t, got.Lots, 2)
	assert.Equal(t, int64(100), got.Lots[0].Points)
	require.Len(t, got.Transactions, 2)
	// Transactions come back newest-first.
	assert.Equal(t, loyalty.TransactionRedeemed, got.Transactions[0].Type)
}

func TestLoyaltyRepository_SaveReplacesLots(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLoyaltyRepository(pool)

	now := time.Now().UTC()
	account := &loyalty.Account{
		CustomerID: "it-cust-2",
		Balance:    100,
		Lots: []loyalty.Lot{
			{Points: 100, ExpiresAt: now.AddDate(0, 0, 30)},
		},
	}
	require.NoError(t, repo.Save(ctx, account))

	account.Lots = nil
	account.Balance = 0
	require.NoError(t, repo.Save(ctx, account))

	got, err := repo.Get(ctx, "it-cust-2")
	require.NoError(t, err)
	assert.Empty(t, got.Lots)
	assert.Equal(t, int64(0), got.Balance)
}

func TestLoyaltyRepository_MissingAccount(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLoyaltyRepository(pool)

	_, err := repo.Get(ctx, "it-nobody")
	assert.True(t, errors.Is(err, loyalty.ErrAccountNotFound))
}

func TestLedger_AgainstPostgres(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLoyaltyRepository(pool)
	ledger := loyalty.NewLedger(repo, loyalty.Config{
		PointsPerDollar:   dec("1"),
		DollarsPerPoint:   dec("0.01"),
		MinimumRedemption: 100,
		ExpirationDays:    365,
	})

	earned, err := ledger.Accrue(ctx, "it-cust-3", dec("250"))
	require.NoError(t, err)
	assert.Equal(t, int64(250), earned)

	value, err := ledger.Redeem(ctx, "it-cust-3", 100)
	require.NoError(t, err)
	assert.True(t, value.Equal(dec("1.00")), "got %s", value)

	got, err := repo.Get(ctx, "it-cust-3")
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.Balance)
	require.Len(t, got.Lots, 1)
	require.Len(t, got.Transactions, 2)
}
