// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/artpar/datagate/domain/query"
	"github.com/artpar/datagate/domain/record"
	"github.com/artpar/datagate/domain/session"
)

// ErrRecordNotFound is returned by record stores for missing records.
var ErrRecordNotFound = errors.New("record not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Collaborator Ports
// -----------------------------------------------------------------------------

// Identity resolves the per-request session from whatever transport the
// surrounding framework uses (cookie, API key header). It returns the
// anonymous session, never an error, for unauthenticated requests;
// errors are reserved for verifier failures.
type Identity interface {
	Resolve(ctx context.Context, r *http.Request) (session.Session, error)
}

// Handler is the external collaborator behind one custom operation.
// It receives validated arguments and the session, and returns a value
// shape-compatible with the operation's declared return type.
type Handler interface {
	Invoke(ctx context.Context, args map[string]any, sess session.Session) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, args map[string]any, sess session.Session) (any, error)

// Invoke calls the function.
func (f HandlerFunc) Invoke(ctx context.Context, args map[string]any, sess session.Session) (any, error) {
	return f(ctx, args, sess)
}

// HandlerRegistry resolves a handler reference from an operation
// definition to a registered handler.
type HandlerRegistry interface {
	Handler(ref string) (Handler, bool)
}

// RecordStore is the storage collaborator. It owns record persistence;
// the engine only decides authorization and index selection and never
// performs record I/O itself.
type RecordStore interface {
	// Get retrieves a record by primary id.
	Get(ctx context.Context, model, id string) (record.Record, error)

	// Put stores a record (create or replace).
	Put(ctx context.Context, model string, rec record.Record) error

	// Delete removes a record by primary id.
	Delete(ctx context.Context, model, id string) error

	// Query reads records through a planned access path.
	Query(ctx context.Context, model string, plan query.Plan, limit int) ([]record.Record, error)
}
