package auth

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("acc-1", "maya@example.com", "buyer", ScopeFor("buyer"), testSecret, time.Minute)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	claims, err := Parse(tok, testSecret)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if claims.Sub != "acc-1" {
		t.Errorf("Sub = %q", claims.Sub)
	}
	if claims.Email != "maya@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Role != "buyer" {
		t.Errorf("Role = %q", claims.Role)
	}
	if !strings.Contains(claims.Scope, "orders:read:self") {
		t.Errorf("Scope = %q", claims.Scope)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("acc-1", "maya@example.com", "buyer", "", testSecret, time.Minute)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	if _, err := Parse(tok, "other-secret"); err == nil {
		t.Error("token signed with a different secret should not parse")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	tok, err := NewAccessToken("acc-1", "maya@example.com", "buyer", "", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	if _, err := Parse(tok, testSecret); err == nil {
		t.Error("expired token should not parse")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not-a-jwt", testSecret); err == nil {
		t.Error("garbage should not parse")
	}
}

func TestRefreshTokenCarriesRefreshRole(t *testing.T) {
	tok, err := NewRefreshToken("acc-1", "maya@example.com", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}

	claims, err := Parse(tok, testSecret)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Role != "refresh" {
		t.Errorf("Role = %q, want refresh", claims.Role)
	}
}

func TestScopeFor(t *testing.T) {
	if s := ScopeFor("admin"); !strings.Contains(s, "admin:write") {
		t.Errorf("admin scope = %q", s)
	}
	if s := ScopeFor("seller"); !strings.Contains(s, "catalog:write") {
		t.Errorf("seller scope = %q", s)
	}
	if s := ScopeFor("unknown"); s != "" {
		t.Errorf("unknown role scope = %q, want empty", s)
	}
}
