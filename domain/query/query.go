// Package query provides predicate value types and the pure secondary
// index planner. This package has NO dependencies on I/O or external
// packages.
package query

import (
	"errors"
	"fmt"

	"github.com/artpar/datagate/core/schema"
)

// ErrNoPlan indicates no index (or the primary key) can serve the
// predicate shape. The caller decides scan-versus-reject; the planner
// never silently falls back to a scan.
var ErrNoPlan = errors.New("no index satisfies query")

// RangeOp is a range comparison operator over a sort key.
type RangeOp string

const (
	RangeGT      RangeOp = "gt"
	RangeGTE     RangeOp = "gte"
	RangeLT      RangeOp = "lt"
	RangeLTE     RangeOp = "lte"
	RangeBetween RangeOp = "between"
	RangeBegins  RangeOp = "begins_with"
)

// Range is a single range constraint.
type Range struct {
	Field string
	Op    RangeOp

	// Value is the comparison operand. For between, Value is the low
	// bound and Upper the high bound.
	Value any
	Upper any
}

// Predicate is a query shape: equality constraints plus at most one
// range constraint.
type Predicate struct {
	Equals map[string]any
	Range  *Range
}

// Validate checks the predicate shape.
func (p Predicate) Validate() error {
	if len(p.Equals) == 0 && p.Range == nil {
		return fmt.Errorf("predicate constrains nothing")
	}

	if p.Range != nil {
		switch p.Range.Op {
		case RangeGT, RangeGTE, RangeLT, RangeLTE, RangeBegins:
			if p.Range.Value == nil {
				return fmt.Errorf("range on %q: missing value", p.Range.Field)
			}
		case RangeBetween:
			if p.Range.Value == nil || p.Range.Upper == nil {
				return fmt.Errorf("range on %q: between requires two bounds", p.Range.Field)
			}
		default:
			return fmt.Errorf("range on %q: unknown operator %q", p.Range.Field, p.Range.Op)
		}

		if _, dup := p.Equals[p.Range.Field]; dup {
			return fmt.Errorf("field %q constrained by both equality and range", p.Range.Field)
		}
	}

	return nil
}

// Plan is a selected access path.
type Plan struct {
	// IndexName is the chosen secondary index, or empty for the
	// primary key.
	IndexName string

	// PartitionKey and PartitionValue drive the equality key condition.
	PartitionKey   string
	PartitionValue any

	// SortKey is set when the plan uses the index's sort key; the
	// constraint is either SortRange or an equality (SortValue).
	SortKey   string
	SortValue any
	SortRange *Range
}

// Primary reports whether the plan reads through the primary key.
func (p Plan) Primary() bool {
	return p.IndexName == ""
}

// UsesSort reports whether the plan constrains the index sort key.
func (p Plan) UsesSort() bool {
	return p.SortKey != ""
}

// PlanQuery selects the access path for a predicate against a model.
//
// An index qualifies when its partition key is equality-constrained.
// When several qualify, an index whose sort key is also constrained
// (more selective) wins over one matching only the partition key;
// remaining ties resolve by index name order, so the choice is
// deterministic for a given model and predicate shape. If no index
// qualifies, the primary key serves predicates that constrain only the
// record id; anything else is ErrNoPlan.
func PlanQuery(model schema.Model, pred Predicate) (Plan, error) {
	if err := pred.Validate(); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}

	var best *Plan
	bestSorted := false

	for _, ix := range model.SortedIndexes() {
		pv, ok := pred.Equals[ix.PartitionKey]
		if !ok {
			continue
		}

		plan := Plan{
			IndexName:      ix.Name,
			PartitionKey:   ix.PartitionKey,
			PartitionValue: pv,
		}

		sorted := false
		if ix.HasSortKey() {
			if pred.Range != nil && pred.Range.Field == ix.SortKey {
				plan.SortKey = ix.SortKey
				plan.SortRange = pred.Range
				sorted = true
			} else if sv, ok := pred.Equals[ix.SortKey]; ok {
				plan.SortKey = ix.SortKey
				plan.SortValue = sv
				sorted = true
			}
		}

		// A range on a field this index cannot order by would have to
		// be applied as a post-read filter; prefer an index that
		// serves it as a key condition.
		if sorted && !bestSorted {
			best = &plan
			bestSorted = true
		} else if best == nil {
			best = &plan
		}
	}

	if best != nil {
		return *best, nil
	}

	// Primary-key fallback: only when the predicate constrains nothing
	// but the record id.
	if pred.Range == nil && len(pred.Equals) == 1 {
		if id, ok := pred.Equals[schema.SystemFieldID]; ok {
			return Plan{
				PartitionKey:   schema.SystemFieldID,
				PartitionValue: id,
			}, nil
		}
	}

	return Plan{}, fmt.Errorf("model %q: %w", model.Name, ErrNoPlan)
}
