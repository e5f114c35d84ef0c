package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates an unknown model, type, or operation name.
var ErrNotFound = errors.New("not found")

// SchemaError reports every inconsistency found while building the
// registry. Schema errors are fatal: the process must not serve
// requests against a registry that failed to build.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema errors:\n  - %s", strings.Join(e.Problems, "\n  - "))
}
