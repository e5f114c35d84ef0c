package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/artpar/datagate/adapters/identity"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := identity.NewTokenService("test-secret", time.Hour)

	token, expiresAt, err := svc.GenerateToken("alice", "alice@example.com", []string{"editors"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) < 55*time.Minute {
		t.Errorf("expiresAt = %v, want ~1h out", expiresAt)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "alice" || claims.Email != "alice@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Groups) != 1 || claims.Groups[0] != "editors" {
		t.Errorf("groups = %v", claims.Groups)
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issuer := identity.NewTokenService("secret-a", time.Hour)
	verifier := identity.NewTokenService("secret-b", time.Hour)

	token, _, err := issuer.GenerateToken("alice", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("token signed with another secret must not validate")
	}
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc := identity.NewTokenService("test-secret", -time.Minute)

	token, _, err := svc.GenerateToken("alice", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expired token must not validate")
	}
}

func newResolver(t *testing.T, keys []identity.APIKey) (*identity.Resolver, *identity.TokenService) {
	t.Helper()
	tokens := identity.NewTokenService("test-secret", time.Hour)
	resolver := identity.NewResolver(tokens, identity.ResolverConfig{
		CookieName: "dg_session",
		KeyHeader:  "X-API-Key",
		Keys:       func() []identity.APIKey { return keys },
	})
	return resolver, tokens
}

func TestResolver_NoCredentials(t *testing.T) {
	resolver, _ := newResolver(t, nil)

	req := httptest.NewRequest("GET", "/data/post/p1", nil)
	sess, err := resolver.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !sess.IsAnonymous() {
		t.Errorf("sess = %+v, want anonymous", sess)
	}
}

func TestResolver_Cookie(t *testing.T) {
	resolver, tokens := newResolver(t, nil)

	token, _, err := tokens.GenerateToken("alice", "alice@example.com", []string{"editors"})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/data/post/p1", nil)
	req.AddCookie(&http.Cookie{Name: "dg_session", Value: token})

	sess, err := resolver.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !sess.Authenticated || sess.ViaAPIKey {
		t.Errorf("sess = %+v", sess)
	}
	if sess.Subject != "alice" || !sess.InGroup("editors") {
		t.Errorf("sess = %+v", sess)
	}
}

func TestResolver_TamperedCookieIsAnonymous(t *testing.T) {
	resolver, _ := newResolver(t, nil)

	req := httptest.NewRequest("GET", "/data/post/p1", nil)
	req.AddCookie(&http.Cookie{Name: "dg_session", Value: "garbage"})

	sess, err := resolver.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !sess.IsAnonymous() {
		t.Error("tampered cookie should resolve anonymous, not error")
	}
}

func TestResolver_APIKey(t *testing.T) {
	raw := "dg_live_0a1b2c3d4e5f6789"
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	resolver, _ := newResolver(t, []identity.APIKey{
		{Subject: "ci-bot", Prefix: raw[:12], Hash: hash},
	})

	req := httptest.NewRequest("GET", "/data/post/p1", nil)
	req.Header.Set("X-API-Key", raw)

	sess, err := resolver.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !sess.ViaAPIKey || !sess.Authenticated {
		t.Errorf("sess = %+v, want API-key session", sess)
	}
	if sess.Subject != "ci-bot" {
		t.Errorf("subject = %q", sess.Subject)
	}
}

func TestResolver_APIKey_WrongKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("dg_live_0a1b2c3d4e5f6789"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	resolver, _ := newResolver(t, []identity.APIKey{
		{Subject: "ci-bot", Prefix: "dg_live_0a1b", Hash: hash},
	})

	tests := []struct {
		name string
		key  string
	}{
		{"prefix match, wrong suffix", "dg_live_0a1bWRONGWRONG"},
		{"unknown prefix", "dg_live_zzzz2c3d4e5f6789"},
		{"too short", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/data/post/p1", nil)
			req.Header.Set("X-API-Key", tt.key)

			sess, err := resolver.Resolve(context.Background(), req)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !sess.IsAnonymous() {
				t.Errorf("sess = %+v, want anonymous", sess)
			}
		})
	}
}
