package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (PRICER_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (PRICER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (PRICER_API_KEY_PEPPER)" flag:"api-key-pepper"`
	TaxInclusive bool   `default:"false" usage:"Treat tax as included in displayed prices by default" flag:"tax-inclusive"`
	Loyalty      LoyaltyConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// LoyaltyConfig controls the loyalty points program.
type LoyaltyConfig struct {
	PointsPerDollar   float64 `default:"1"    usage:"Points earned per dollar charged" flag:"points-per-dollar"`
	DollarsPerPoint   float64 `default:"0.01" usage:"Monetary value of one point at redemption" flag:"dollars-per-point"`
	MinimumRedemption int64   `default:"100"  usage:"Smallest number of points a customer may redeem" flag:"minimum-redemption"`
	ExpirationDays    int     `default:"365"  usage:"Lifetime of earned points in days, 0 disables expiry" flag:"expiration-days"`
	VIPMultiplier     float64 `default:"2"    usage:"Accrual multiplier for the vip tier" flag:"vip-multiplier"`
	GoldMultiplier    float64 `default:"1.5"  usage:"Accrual multiplier for the gold tier" flag:"gold-multiplier"`
	SilverMultiplier  float64 `default:"1.25" usage:"Accrual multiplier for the silver tier" flag:"silver-multiplier"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRICER",
		Files:     []string{"config.yaml", "/etc/pricer/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set PRICER_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's PRICER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// tierMultipliers builds the per-tier accrual table from the flat config.
func (c *LoyaltyConfig) tierMultipliers() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"vip":    decimal.NewFromFloat(c.VIPMultiplier),
		"gold":   decimal.NewFromFloat(c.GoldMultiplier),
		"silver": decimal.NewFromFloat(c.SilverMultiplier),
	}
}
