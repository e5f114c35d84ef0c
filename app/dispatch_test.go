package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/artpar/datagate/adapters/memory"
	"github.com/artpar/datagate/app"
	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/session"
	"github.com/artpar/datagate/ports"
	"github.com/rs/zerolog"
)

// recorder captures metric events for assertions.
type recorder struct {
	mu         sync.Mutex
	dispatches map[string][]string
	authz      int
	redirects  int
}

func newRecorder() *recorder {
	return &recorder{dispatches: make(map[string][]string)}
}

func (r *recorder) AuthzDecision(string, schema.Op, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authz++
}

func (r *recorder) Dispatch(operation, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches[operation] = append(r.dispatches[operation], state)
}

func (r *recorder) GuardRedirect(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects++
}

func (r *recorder) states(operation string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatches[operation]
}

func dispatchDefs() schema.Definitions {
	return schema.Definitions{
		Models: []schema.Model{{
			Name: "post",
			Fields: map[string]schema.Field{
				"title": {Type: schema.FieldTypeString},
			},
		}},
		Types: []schema.CustomType{{
			Name: "publishResult",
			Fields: map[string]schema.Field{
				"url":      {Type: schema.FieldTypeString},
				"notified": {Type: schema.FieldTypeBool},
			},
		}},
		Operations: []schema.Operation{
			{
				Name: "publishPost",
				Kind: schema.OperationMutation,
				Arguments: []schema.Argument{
					{Name: "postId", Field: schema.Field{Type: schema.FieldTypeID, Required: true}},
					{Name: "notify", Field: schema.Field{Type: schema.FieldTypeBool, Default: true}},
				},
				Returns: schema.TypeRef{Name: "publishResult"},
				Handler: "posts.publish",
				Rules:   []schema.Rule{{Allow: schema.ActorAuthenticated}},
			},
			{
				Name:    "listTitles",
				Kind:    schema.OperationQuery,
				Returns: schema.TypeRef{Name: "post", Array: true},
				Handler: "posts.titles",
				Rules:   []schema.Rule{{Allow: schema.ActorAuthenticated, Operations: []schema.Op{schema.OpRead}}},
			},
		},
	}
}

func newDispatcher(t *testing.T, handlers *memory.HandlerRegistry, metrics app.Metrics) *app.Dispatcher {
	t.Helper()
	reg, err := registry.Build(dispatchDefs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return app.NewDispatcher(reg, handlers, zerolog.Nop(), metrics)
}

func authed(subject string) session.Session {
	return session.Session{Subject: subject, Authenticated: true}
}

func TestDispatcher_Completes(t *testing.T) {
	handlers := memory.NewHandlerRegistry()
	var gotArgs map[string]any
	handlers.Register("posts.publish", ports.HandlerFunc(
		func(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
			gotArgs = args
			return map[string]any{"url": "/p/1", "notified": true}, nil
		}))

	rec := newRecorder()
	d := newDispatcher(t, handlers, rec)

	result, err := d.Invoke(context.Background(), "publishPost",
		map[string]any{"postId": "p1"}, authed("alice"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	obj, ok := result.(map[string]any)
	if !ok || obj["url"] != "/p/1" {
		t.Errorf("result = %+v", result)
	}

	// Declared default applied for the omitted argument.
	if gotArgs["notify"] != true {
		t.Errorf("notify = %v, want default true", gotArgs["notify"])
	}
	if gotArgs["postId"] != "p1" {
		t.Errorf("postId = %v", gotArgs["postId"])
	}

	if states := rec.states("publishPost"); len(states) != 1 || states[0] != "completed" {
		t.Errorf("states = %v", states)
	}
}

func TestDispatcher_UnknownOperation(t *testing.T) {
	d := newDispatcher(t, memory.NewHandlerRegistry(), nil)

	_, err := d.Invoke(context.Background(), "ghost", nil, authed("alice"))
	if !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDispatcher_InvalidArguments(t *testing.T) {
	called := false
	handlers := memory.NewHandlerRegistry()
	handlers.Register("posts.publish", ports.HandlerFunc(
		func(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
			called = true
			return nil, nil
		}))
	d := newDispatcher(t, handlers, nil)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing required", map[string]any{}},
		{"wrong type", map[string]any{"postId": 42}},
		{"unknown argument", map[string]any{"postId": "p1", "force": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Invoke(context.Background(), "publishPost", tt.args, authed("alice"))
			var verr *app.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want *ValidationError", err)
			}
		})
	}

	if called {
		t.Error("handler must not run on invalid arguments")
	}
}

func TestDispatcher_DenyShortCircuits(t *testing.T) {
	invoked := 0
	handlers := memory.NewHandlerRegistry()
	handlers.Register("posts.publish", ports.HandlerFunc(
		func(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
			invoked++
			return map[string]any{"url": "/p/1"}, nil
		}))

	rec := newRecorder()
	d := newDispatcher(t, handlers, rec)

	_, err := d.Invoke(context.Background(), "publishPost",
		map[string]any{"postId": "p1"}, session.Anonymous())

	var aerr *app.AuthorizationError
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %v, want *AuthorizationError", err)
	}
	if invoked != 0 {
		t.Errorf("handler invoked %d times on denied invocation", invoked)
	}
	if states := rec.states("publishPost"); len(states) != 1 || states[0] != "denied" {
		t.Errorf("states = %v", states)
	}
}

func TestDispatcher_MissingHandler(t *testing.T) {
	d := newDispatcher(t, memory.NewHandlerRegistry(), nil)

	_, err := d.Invoke(context.Background(), "publishPost",
		map[string]any{"postId": "p1"}, authed("alice"))

	var herr *app.HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("err = %v, want *HandlerError", err)
	}
}

func TestDispatcher_HandlerFailureWrapped(t *testing.T) {
	cause := fmt.Errorf("upstream unavailable")
	handlers := memory.NewHandlerRegistry()
	handlers.Register("posts.publish", ports.HandlerFunc(
		func(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
			return nil, cause
		}))
	d := newDispatcher(t, handlers, nil)

	_, err := d.Invoke(context.Background(), "publishPost",
		map[string]any{"postId": "p1"}, authed("alice"))

	var herr *app.HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("err = %v, want *HandlerError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be wrapped for operator logs")
	}
	// The client-facing message carries no handler detail.
	if herr.Error() != `operation "publishPost": handler failed` {
		t.Errorf("message leaks detail: %q", herr.Error())
	}
}

func TestDispatcher_CancellationDiscardsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handlers := memory.NewHandlerRegistry()
	handlers.Register("posts.publish", ports.HandlerFunc(
		func(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
			cancel()
			return map[string]any{"url": "/p/1"}, nil
		}))

	rec := newRecorder()
	d := newDispatcher(t, handlers, rec)

	result, err := d.Invoke(ctx, "publishPost",
		map[string]any{"postId": "p1"}, authed("alice"))
	if !errors.Is(err, app.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if result != nil {
		t.Error("cancelled invocation must discard its result")
	}
	if states := rec.states("publishPost"); len(states) != 1 || states[0] != "cancelled" {
		t.Errorf("states = %v", states)
	}
}

func TestDispatcher_ShapeCheck(t *testing.T) {
	tests := []struct {
		name    string
		result  any
		wantErr bool
	}{
		{"declared fields", map[string]any{"url": "/p/1", "notified": false}, false},
		{"subset of fields", map[string]any{"url": "/p/1"}, false},
		{"nil result", nil, false},
		{"undeclared field", map[string]any{"url": "/p/1", "secret": "x"}, true},
		{"not an object", "just a string", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := memory.NewHandlerRegistry()
			handlers.Register("posts.publish", ports.HandlerFunc(
				func(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
					return tt.result, nil
				}))
			d := newDispatcher(t, handlers, nil)

			_, err := d.Invoke(context.Background(), "publishPost",
				map[string]any{"postId": "p1"}, authed("alice"))

			var herr *app.HandlerError
			if tt.wantErr != errors.As(err, &herr) {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDispatcher_ArrayReturnShape(t *testing.T) {
	handlers := memory.NewHandlerRegistry()
	handlers.Register("posts.titles", ports.HandlerFunc(
		func(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
			return []any{
				map[string]any{"title": "first", "id": "p1"},
				map[string]any{"title": "second"},
			}, nil
		}))
	d := newDispatcher(t, handlers, nil)

	result, err := d.Invoke(context.Background(), "listTitles", nil, authed("alice"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	items, ok := result.([]any)
	if !ok || len(items) != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestDispatcher_QueryAuthorizesAsRead(t *testing.T) {
	// listTitles grants read only; a session matching no rule is denied.
	handlers := memory.NewHandlerRegistry()
	handlers.Register("posts.titles", ports.HandlerFunc(
		func(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
			return []any{}, nil
		}))
	d := newDispatcher(t, handlers, nil)

	if _, err := d.Invoke(context.Background(), "listTitles", nil, authed("alice")); err != nil {
		t.Errorf("query should authorize under read: %v", err)
	}

	if _, err := d.Invoke(context.Background(), "listTitles", nil, session.Anonymous()); err == nil {
		t.Error("anonymous invocation should be denied")
	}
}
