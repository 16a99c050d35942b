package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/apipat2499/omni-sales-sub006/internal/domain/auth"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/coupon"
	"github.com/apipat2499/omni-sales-sub006/internal/domain/tax"
	"github.com/apipat2499/omni-sales-sub006/internal/repository"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or PRICER_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PRICER_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PRICER_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PRICER_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PRICER_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedTaxConfigs(ctx, repository.NewTaxConfigRepository(pool)); err != nil {
		return errors.Wrap(err, "seed tax configs")
	}

	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding starter coupons")

	coupons := []coupon.Coupon{
		{
			Code:        "WELCOME10",
			Archetype:   coupon.ArchetypePercentage,
			Value:       decimal.NewFromInt(10),
			Description: "Welcome: 10% off entire order",
			IsActive:    true,
			IsStackable: true,
		},
		{
			Code:          "FIVEBUCKS",
			Archetype:     coupon.ArchetypeFixed,
			Value:         decimal.NewFromInt(5),
			Description:   "$5 off orders over $25",
			MinOrderValue: decimal.NewFromInt(25),
			IsActive:      true,
			IsStackable:   true,
		},
		{
			Code:        "BOGOFRIES",
			Archetype:   coupon.ArchetypeBOGO,
			Description: "Buy one get one free",
			BuyQuantity: 1,
			GetQuantity: 1,
			IsActive:    true,
		},
	}

	for i := range coupons {
		if violations := coupon.CheckConfig(&coupons[i]); len(violations) > 0 {
			return errors.Errorf("invalid seed coupon %s: %v", coupons[i].Code, violations)
		}
		if err := repo.Save(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}

		slog.Info("upserted coupon",
			slog.String("code", coupons[i].Code),
			slog.String("description", coupons[i].Description),
		)
	}

	return nil
}

func seedTaxConfigs(ctx context.Context, repo *repository.TaxConfigRepository) error {
	slog.Info("seeding tax configs")

	configs := []tax.Config{
		{
			ID:       "vat-standard",
			Name:     "Standard VAT",
			Type:     tax.TypeVAT,
			Rate:     decimal.NewFromInt(7),
			IsActive: true,
		},
		{
			ID:       "service-fee",
			Name:     "Service fee",
			Type:     tax.TypeFlatFee,
			Rate:     decimal.RequireFromString("0.50"),
			IsActive: false,
		},
	}

	for i := range configs {
		if violations := tax.CheckConfig(&configs[i]); len(violations) > 0 {
			return errors.Errorf("invalid seed tax config %s: %v", configs[i].ID, violations)
		}
		if err := repo.Save(ctx, &configs[i]); err != nil {
			return errors.Wrapf(err, "upsert tax config %s", configs[i].ID)
		}

		slog.Info("upserted tax config",
			slog.String("id", configs[i].ID),
			slog.String("name", configs[i].Name),
		)
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Save(ctx, &auth.KeyInfo{
		ID:      "default",
		KeyHash: keyHash,
		Name:    "Default test key",
		Scopes:  []string{"pricing"},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default test key"))

	return nil
}
