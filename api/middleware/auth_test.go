package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	pkgauth "github.com/traderssquare/storefront-backend/pkg/auth"
	"github.com/traderssquare/storefront-backend/pkg/config"
	"github.com/traderssquare/storefront-backend/pkg/logger"
)

func authTestConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "traderssquare-test",
		ExpirationMinutes: 5,
	}
}

func TestAuth_ValidTokenSeedsContext(t *testing.T) {
	cfg := authTestConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	userID := uuid.New()

	token, err := pkgauth.NewAccessToken(cfg, userID, "member@example.com")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var gotUserID uuid.UUID
	handler := Auth(cfg, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/membership", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUserID != userID {
		t.Fatalf("expected user id %s in context, got %s", userID, gotUserID)
	}
}

func TestAuth_Rejections(t *testing.T) {
	cfg := authTestConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	otherCfg := cfg
	otherCfg.Secret = "wrong-secret"
	forged, err := pkgauth.NewAccessToken(otherCfg, uuid.New(), "")
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.token"},
		{"wrong signature", "Bearer " + forged},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := Auth(cfg, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("handler must not run for %s", tc.name)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/membership", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}
