// Package record provides the record value type: a model instance's
// declared fields plus system fields. This package has NO dependencies
// on I/O or external packages.
package record

import "time"

// Record is one instance of a model (immutable value type). The engine
// never creates or destroys records itself; the storage collaborator
// owns persistence, and the engine only decides whether an operation
// may proceed.
type Record struct {
	ID        string
	Owner     string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Fields holds the declared schema fields.
	Fields map[string]any
}

// Get returns a declared field value.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// WithField returns a copy of the record with one field replaced.
// The receiver is not modified.
func (r Record) WithField(name string, value any) Record {
	fields := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields[name] = value
	r.Fields = fields
	return r
}
