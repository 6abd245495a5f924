package auth

import (
	"testing"

	"github.com/argus-core/backend/internal/config"
	"github.com/argus-core/backend/internal/model"
)

func newService(t *testing.T) *AuthService {
	t.Helper()
	svc, err := NewAuthService(nil, config.AuthConfig{
		JWTSecret:     "unit-test-secret",
		JWTAccessTTL:  "15m",
		JWTRefreshTTL: "720h",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestNewAuthServiceRequiresJWTSecret(t *testing.T) {
	_, err := NewAuthService(nil, config.AuthConfig{JWTAccessTTL: "15m", JWTRefreshTTL: "720h"})
	if err == nil {
		t.Fatal("expected missing JWT_SECRET to error")
	}
}

func TestNewAuthServiceRejectsSameSiteNoneWithoutSecure(t *testing.T) {
	_, err := NewAuthService(nil, config.AuthConfig{
		JWTSecret:      "secret",
		JWTAccessTTL:   "15m",
		JWTRefreshTTL:  "720h",
		CookieSameSite: "none",
		CookieSecure:   "false",
	})
	if err == nil {
		t.Fatal("expected SameSite=None without Secure to error")
	}
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	svc := newService(t)

	user := &model.User{ID: 42, LoginID: "operator-1"}
	token, expiresIn, err := svc.generateAccessToken(user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn <= 0 {
		t.Fatalf("expected positive expires_in, got %d", expiresIn)
	}

	parsed, err := svc.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("unexpected error parsing token: %v", err)
	}
	if parsed.ID != 42 || parsed.LoginID != "operator-1" {
		t.Fatalf("unexpected claims: %+v", parsed)
	}
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc := newService(t)
	if _, err := svc.ParseAccessToken("not-a-jwt"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}

func TestValidateCredentials(t *testing.T) {
	cases := []struct {
		loginID, password string
		wantErr           bool
	}{
		{"ab", "longenoughpassword", true},       // login too short
		{"operator", "short", true},               // password too short
		{"operator", "longenoughpassword", false}, // valid
		{"  operator  ", "  longenoughpassword  ", false}, // trims whitespace
	}
	for _, tc := range cases {
		err := validateCredentials(tc.loginID, tc.password)
		if tc.wantErr && err == nil {
			t.Errorf("validateCredentials(%q, ...): expected error", tc.loginID)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("validateCredentials(%q, ...): unexpected error %v", tc.loginID, err)
		}
	}
}

func TestParseSameSite(t *testing.T) {
	cases := map[string]bool{
		"":       false,
		"lax":    false,
		"strict": false,
		"none":   false,
		"bogus":  true,
	}
	for value, wantErr := range cases {
		_, err := parseSameSite(value)
		if wantErr && err == nil {
			t.Errorf("parseSameSite(%q): expected error", value)
		}
		if !wantErr && err != nil {
			t.Errorf("parseSameSite(%q): unexpected error %v", value, err)
		}
	}
}
