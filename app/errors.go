package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/datagate/core/schema"
)

// ErrCancelled reports that the ambient request was cancelled or timed
// out while an invocation was in flight. The result, if any, is
// discarded and never retried.
var ErrCancelled = errors.New("cancelled")

// ValidationError reports argument or payload problems. Client error;
// nothing was executed.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Issues, "\n  - "))
}

// AuthorizationError reports a Deny decision. Client error; the handler
// or store was never invoked.
type AuthorizationError struct {
	Target string
	Op     schema.Op
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s on %q denied (%s)", e.Op, e.Target, e.Reason)
}

// HandlerError reports a failure inside an external handler. The
// wrapped cause is for operator logs; clients only see that the
// operation failed.
type HandlerError struct {
	Operation string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("operation %q: handler failed", e.Operation)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
