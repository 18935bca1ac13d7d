package config

import (
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TRADERSSQUARE_APP_ENV", "dev")
	t.Setenv("TRADERSSQUARE_APP_PORT", "8080")
	t.Setenv("TRADERSSQUARE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TRADERSSQUARE_JWT_SECRET", "secret")
	t.Setenv("TRADERSSQUARE_JWT_ISSUER", "traderssquare")
}

func TestLoadAssemblesDSNFromLegacyVars(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TRADERSSQUARE_DB_HOST", "db.internal")
	t.Setenv("TRADERSSQUARE_DB_USER", "store")
	t.Setenv("TRADERSSQUARE_DB_PASSWORD", "pw")
	t.Setenv("TRADERSSQUARE_DB_NAME", "storefront")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !strings.HasPrefix(cfg.DB.DSN, "postgres://store:pw@db.internal:5432/storefront") {
		t.Fatalf("unexpected DSN %q", cfg.DB.DSN)
	}
	if !strings.Contains(cfg.DB.DSN, "sslmode=disable") {
		t.Fatalf("expected sslmode in DSN, got %q", cfg.DB.DSN)
	}
}

func TestLoadPrefersExplicitDSN(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TRADERSSQUARE_DB_DSN", "postgres://u@h:5432/d")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DB.DSN != "postgres://u@h:5432/d" {
		t.Fatalf("explicit DSN overwritten: %q", cfg.DB.DSN)
	}
}

func TestLoadFailsWithoutDatabaseConfig(t *testing.T) {
	setBaseEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when neither DSN nor legacy vars are set")
	}
}

func TestStripeConfigDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TRADERSSQUARE_DB_DSN", "postgres://u@h:5432/d")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Stripe.AppID != "traderssquare" {
		t.Fatalf("expected default app id, got %q", cfg.Stripe.AppID)
	}
	if cfg.Stripe.Environment() != "test" {
		t.Fatalf("expected test environment, got %q", cfg.Stripe.Environment())
	}
}
