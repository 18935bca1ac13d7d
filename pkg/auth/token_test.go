package auth

import (
	"testing"

	"github.com/google/uuid"

	"github.com/traderssquare/storefront-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "traderssquare",
		ExpirationMinutes: 5,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	raw, err := NewAccessToken(cfg, userID, "buyer@example.com")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, raw)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user id %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "buyer@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	raw, err := NewAccessToken(cfg, uuid.New(), "")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, raw); err == nil {
		t.Fatal("expected signature verification failure")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	raw, err := NewAccessToken(cfg, uuid.New(), "")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, raw); err == nil {
		t.Fatal("expected issuer verification failure")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ExpirationMinutes = -5

	raw, err := NewAccessToken(cfg, uuid.New(), "")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, raw); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
