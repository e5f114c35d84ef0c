package bootstrap

import (
	"testing"

	"github.com/artpar/datagate/app"
	"github.com/artpar/datagate/config"
)

func TestRouteRules(t *testing.T) {
	routes := []config.RouteConfig{
		{Prefix: "/admin", Class: "protected"},
		{Prefix: "/login", Class: "auth_only"},
		{Prefix: "/", Class: "public"},
	}

	rules := routeRules(routes)
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}

	if rules[0].Prefix != "/admin" || rules[0].Class != app.RouteProtected {
		t.Errorf("rule 0 = %+v, want /admin protected", rules[0])
	}
	if rules[1].Class != app.RouteAuthOnly {
		t.Errorf("rule 1 class = %q, want auth_only", rules[1].Class)
	}
	if rules[2].Class != app.RoutePublic {
		t.Errorf("rule 2 class = %q, want public", rules[2].Class)
	}
}

func TestRouteRules_Empty(t *testing.T) {
	rules := routeRules(nil)
	if len(rules) != 0 {
		t.Errorf("expected no rules, got %d", len(rules))
	}
}

func TestAPIKeys(t *testing.T) {
	keys := apiKeys([]config.APIKeyConfig{
		{Subject: "ci-bot", Prefix: "dg_aaaabbbb", Hash: "$2a$10$hash"},
	})

	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
	if keys[0].Subject != "ci-bot" {
		t.Errorf("subject = %q, want ci-bot", keys[0].Subject)
	}
	if keys[0].Prefix != "dg_aaaabbbb" {
		t.Errorf("prefix = %q", keys[0].Prefix)
	}
	if string(keys[0].Hash) != "$2a$10$hash" {
		t.Errorf("hash = %q", keys[0].Hash)
	}
}

func TestSetupLogger_BadLevelFallsBack(t *testing.T) {
	// Should not panic on an unparseable level.
	logger := setupLogger(config.LoggingConfig{Level: "nonsense", Format: "json"})
	logger.Info().Msg("ok")
}
