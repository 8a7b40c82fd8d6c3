// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Payment rail
	StripeSecretKey string // Stripe secret key; empty enables the fake rail

	// Fee schedule
	FlatFeePence int64 // Flat booking fee in pence
	PlatformBps  int64 // Percentage fee in basis points

	// Background workers
	OfferExpiry       time.Duration // How long a pending offer lives
	SweepInterval     time.Duration // How often the expiry sweep runs
	ReconcileInterval time.Duration // How often in-transit payouts are polled

	// Security
	AdminSecret  string // Shared secret for /v1/admin routes
	RateLimitRPM int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing
}

// Defaults
const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultFlatFeePence  = 100  // £1.00
	DefaultPlatformBps   = 1000 // 10%
	DefaultRateLimitRPM  = 120
	DefaultOfferExpiry   = 12 * time.Hour
	DefaultSweepInterval = 2 * time.Minute
	DefaultReconcile     = 5 * time.Minute
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		StripeSecretKey:   os.Getenv("STRIPE_SECRET_KEY"),
		FlatFeePence:      getEnvInt64("FLAT_FEE_PENCE", DefaultFlatFeePence),
		PlatformBps:       getEnvInt64("PLATFORM_FEE_BPS", DefaultPlatformBps),
		OfferExpiry:       getEnvDuration("OFFER_EXPIRY", DefaultOfferExpiry),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", DefaultReconcile),
		AdminSecret:       os.Getenv("ADMIN_SECRET"),
		RateLimitRPM:      int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.FlatFeePence < 0 {
		return fmt.Errorf("FLAT_FEE_PENCE cannot be negative")
	}
	if c.PlatformBps < 0 || c.PlatformBps > 10000 {
		return fmt.Errorf("PLATFORM_FEE_BPS must be between 0 and 10000")
	}
	if c.OfferExpiry <= 0 {
		return fmt.Errorf("OFFER_EXPIRY must be positive")
	}
	if c.IsProduction() {
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
		if c.AdminSecret == "" {
			return fmt.Errorf("ADMIN_SECRET is required in production")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
