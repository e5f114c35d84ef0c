// Package idgen provides IDGenerator implementations. Every record gets
// its id from one of these at create time; ids are opaque strings and
// the primary key in every store.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/datagate/ports"
	"github.com/google/uuid"
)

// UUID issues random UUIDv4 record ids.
type UUID struct{}

// New returns a fresh UUID string.
func (UUID) New() string {
	return uuid.NewString()
}

// Sequential issues prefix1, prefix2, ... so tests can predict the ids
// handlers assign.
type Sequential struct {
	prefix string
	n      atomic.Uint64
}

// NewSequential creates a sequential generator with the given prefix.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next id in sequence. Safe for concurrent use.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.n.Add(1), 10)
}

// Reset restarts the sequence.
func (s *Sequential) Reset() {
	s.n.Store(0)
}

var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
