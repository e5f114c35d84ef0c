// Package memory provides in-memory implementations of storage ports,
// used in tests and as the default development store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/query"
	"github.com/artpar/datagate/domain/record"
	"github.com/artpar/datagate/ports"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = ports.ErrRecordNotFound

// RecordStore is an in-memory implementation of ports.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]record.Record // model -> id -> record
}

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]map[string]record.Record),
	}
}

// Get retrieves a record by primary id.
func (s *RecordStore) Get(ctx context.Context, model, id string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[model][id]
	if !ok {
		return record.Record{}, ErrNotFound
	}
	return rec, nil
}

// Put stores a record.
func (s *RecordStore) Put(ctx context.Context, model string, rec record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[model] == nil {
		s.records[model] = make(map[string]record.Record)
	}
	s.records[model][rec.ID] = rec
	return nil
}

// Delete removes a record.
func (s *RecordStore) Delete(ctx context.Context, model, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[model][id]; !ok {
		return ErrNotFound
	}
	delete(s.records[model], id)
	return nil
}

// Query reads records through a planned access path. Results come back
// in sort-key order when the plan uses one, otherwise in id order.
func (s *RecordStore) Query(ctx context.Context, model string, plan query.Plan, limit int) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []record.Record
	for _, rec := range s.records[model] {
		if matchesPlan(rec, plan) {
			out = append(out, rec)
		}
	}

	if plan.UsesSort() {
		sort.Slice(out, func(i, j int) bool {
			return lessValues(keyValue(out[i], plan.SortKey), keyValue(out[j], plan.SortKey))
		})
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesPlan(rec record.Record, plan query.Plan) bool {
	if !equalValues(keyValue(rec, plan.PartitionKey), plan.PartitionValue) {
		return false
	}

	if plan.SortKey == "" {
		return true
	}
	sv := keyValue(rec, plan.SortKey)
	if plan.SortRange != nil {
		return rangeHolds(sv, *plan.SortRange)
	}
	return equalValues(sv, plan.SortValue)
}

func rangeHolds(v any, r query.Range) bool {
	switch r.Op {
	case query.RangeGT:
		return lessValues(r.Value, v)
	case query.RangeGTE:
		return !lessValues(v, r.Value)
	case query.RangeLT:
		return lessValues(v, r.Value)
	case query.RangeLTE:
		return !lessValues(r.Value, v)
	case query.RangeBetween:
		return !lessValues(v, r.Value) && !lessValues(r.Upper, v)
	case query.RangeBegins:
		s, ok := v.(string)
		prefix, pok := r.Value.(string)
		return ok && pok && strings.HasPrefix(s, prefix)
	}
	return false
}

// keyValue reads a key field, falling back to system fields.
func keyValue(rec record.Record, field string) any {
	switch field {
	case schema.SystemFieldID:
		return rec.ID
	case schema.SystemFieldOwner:
		return rec.Owner
	case schema.SystemFieldCreatedAt:
		return rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z")
	case schema.SystemFieldUpdatedAt:
		return rec.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	v, _ := rec.Get(field)
	return v
}

func equalValues(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func lessValues(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		return bok && af < bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as < bs
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
