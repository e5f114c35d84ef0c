package app_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/artpar/datagate/app"
	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/query"
	"github.com/artpar/datagate/domain/record"
	"github.com/rs/zerolog"
)

func newAccess(t *testing.T) *app.Access {
	t.Helper()
	reg, err := registry.Build(schema.Definitions{
		Models: []schema.Model{{
			Name: "post",
			Fields: map[string]schema.Field{
				"title":     {Type: schema.FieldTypeString, Required: true},
				"published": {Type: schema.FieldTypeBool, Default: false},
				"views":     {Type: schema.FieldTypeInt},
			},
			Rules: []schema.Rule{
				{Allow: schema.ActorOwner},
				{
					Allow:      schema.ActorAuthenticated,
					Operations: []schema.Op{schema.OpRead},
					When:       &schema.Condition{Field: "published", Equals: true},
				},
			},
			Indexes: []schema.Index{
				{Name: "byPublished", PartitionKey: "published", SortKey: "created_at"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return app.NewAccess(reg, zerolog.Nop(), nil)
}

func TestAccess_Authorize(t *testing.T) {
	access := newAccess(t)
	rec := record.Record{ID: "p1", Owner: "alice", Fields: map[string]any{"published": false}}

	if err := access.Authorize(authed("alice"), "post", schema.OpUpdate, &rec); err != nil {
		t.Errorf("owner update: %v", err)
	}

	err := access.Authorize(authed("bob"), "post", schema.OpUpdate, &rec)
	var aerr *app.AuthorizationError
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %v, want *AuthorizationError", err)
	}
	if aerr.Target != "post" || aerr.Op != schema.OpUpdate {
		t.Errorf("error detail = %+v", aerr)
	}
}

func TestAccess_Authorize_UnknownModel(t *testing.T) {
	access := newAccess(t)
	err := access.Authorize(authed("alice"), "ghost", schema.OpRead, nil)
	if !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAccess_PlanQuery(t *testing.T) {
	access := newAccess(t)

	plan, err := access.PlanQuery("post", query.Predicate{
		Equals: map[string]any{"published": true},
	})
	if err != nil {
		t.Fatalf("PlanQuery: %v", err)
	}
	if plan.IndexName != "byPublished" {
		t.Errorf("index = %q", plan.IndexName)
	}

	_, err = access.PlanQuery("post", query.Predicate{
		Equals: map[string]any{"title": "x"},
	})
	if !errors.Is(err, query.ErrNoPlan) {
		t.Errorf("err = %v, want ErrNoPlan", err)
	}
}

func TestAccess_ValidateRecord_Create(t *testing.T) {
	access := newAccess(t)

	out, err := access.ValidateRecord("post", map[string]any{"title": "hello"}, true)
	if err != nil {
		t.Fatalf("ValidateRecord: %v", err)
	}
	if out["title"] != "hello" {
		t.Errorf("title = %v", out["title"])
	}
	// Default applied on create.
	if out["published"] != false {
		t.Errorf("published = %v, want default false", out["published"])
	}
}

func TestAccess_ValidateRecord_Issues(t *testing.T) {
	access := newAccess(t)

	tests := []struct {
		name    string
		fields  map[string]any
		create  bool
		wantAny string
	}{
		{"missing required on create", map[string]any{}, true, "missing required field"},
		{"unknown field", map[string]any{"title": "x", "ghost": 1}, true, "unknown field"},
		{"type mismatch", map[string]any{"title": 42}, true, "expected string"},
		{"partial update skips required", map[string]any{"ghost": 1}, false, "unknown field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := access.ValidateRecord("post", tt.fields, tt.create)
			var verr *app.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if !strings.Contains(verr.Error(), tt.wantAny) {
				t.Errorf("issues = %v, want containing %q", verr.Issues, tt.wantAny)
			}
		})
	}
}

func TestAccess_ValidateRecord_UpdateOmitsDefaults(t *testing.T) {
	access := newAccess(t)

	out, err := access.ValidateRecord("post", map[string]any{"views": 10}, false)
	if err != nil {
		t.Fatalf("ValidateRecord: %v", err)
	}
	if _, present := out["published"]; present {
		t.Error("defaults must not apply on update")
	}
	if _, present := out["title"]; present {
		t.Error("omitted fields stay omitted on update")
	}
}

func TestAccess_ValidateRecord_StableIssueOrder(t *testing.T) {
	access := newAccess(t)

	var first []string
	for i := 0; i < 20; i++ {
		_, err := access.ValidateRecord("post", map[string]any{
			"zz": 1, "aa": 2, "mm": 3,
		}, false)
		var verr *app.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v", err)
		}
		if first == nil {
			first = verr.Issues
			continue
		}
		if len(verr.Issues) != len(first) {
			t.Fatalf("issue count varies")
		}
		for j := range first {
			if verr.Issues[j] != first[j] {
				t.Fatalf("issue order varies between runs")
			}
		}
	}
}
