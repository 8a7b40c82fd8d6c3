package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %q, want %q", cfg.Port, DefaultPort)
	}
	if cfg.FlatFeePence != DefaultFlatFeePence {
		t.Errorf("FlatFeePence = %d, want %d", cfg.FlatFeePence, DefaultFlatFeePence)
	}
	if cfg.PlatformBps != DefaultPlatformBps {
		t.Errorf("PlatformBps = %d, want %d", cfg.PlatformBps, DefaultPlatformBps)
	}
	if cfg.OfferExpiry != DefaultOfferExpiry {
		t.Errorf("OfferExpiry = %v, want %v", cfg.OfferExpiry, DefaultOfferExpiry)
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FLAT_FEE_PENCE", "150")
	t.Setenv("PLATFORM_FEE_BPS", "1250")
	t.Setenv("OFFER_EXPIRY", "6h")
	t.Setenv("SWEEP_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.FlatFeePence != 150 {
		t.Errorf("FlatFeePence = %d, want 150", cfg.FlatFeePence)
	}
	if cfg.PlatformBps != 1250 {
		t.Errorf("PlatformBps = %d, want 1250", cfg.PlatformBps)
	}
	if cfg.OfferExpiry != 6*time.Hour {
		t.Errorf("OfferExpiry = %v, want 6h", cfg.OfferExpiry)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}
}

func TestLoadInvalidNumberFallsBack(t *testing.T) {
	t.Setenv("PLATFORM_FEE_BPS", "ten percent")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlatformBps != DefaultPlatformBps {
		t.Errorf("PlatformBps = %d, want default %d", cfg.PlatformBps, DefaultPlatformBps)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"negative flat fee", func(c *Config) { c.FlatFeePence = -1 }, true},
		{"bps over 100%", func(c *Config) { c.PlatformBps = 10001 }, true},
		{"zero expiry", func(c *Config) { c.OfferExpiry = 0 }, true},
		{"production missing stripe key", func(c *Config) { c.Env = "production" }, true},
		{
			"production fully configured",
			func(c *Config) {
				c.Env = "production"
				c.StripeSecretKey = "sk_live_x"
				c.AdminSecret = "s3cret"
				c.DatabaseURL = "postgres://localhost/reuni"
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Env:          DefaultEnv,
				FlatFeePence: DefaultFlatFeePence,
				PlatformBps:  DefaultPlatformBps,
				OfferExpiry:  DefaultOfferExpiry,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
