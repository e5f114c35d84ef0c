// Package registry builds the immutable definition registry from parsed
// schema definitions. The registry is constructed once at startup and is
// read-only thereafter: build failures are fatal, lookups never mutate.
package registry

import (
	"fmt"
	"sort"

	"github.com/artpar/datagate/core/schema"
)

// Registry holds resolved model, custom type, and operation definitions
// for the process lifetime. Safe for concurrent use: all state is
// written during Build and never after.
type Registry struct {
	models     map[string]schema.Model
	types      map[string]schema.CustomType
	operations map[string]schema.Operation
}

// Build constructs a registry from definitions, or fails with a
// *SchemaError listing every inconsistency found.
func Build(defs schema.Definitions) (*Registry, error) {
	r := &Registry{
		models:     make(map[string]schema.Model, len(defs.Models)),
		types:      make(map[string]schema.CustomType, len(defs.Types)),
		operations: make(map[string]schema.Operation, len(defs.Operations)),
	}

	var problems []string

	for _, m := range defs.Models {
		if err := schema.ValidateModel(m); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if _, exists := r.models[m.Name]; exists {
			problems = append(problems, fmt.Sprintf("duplicate model %q", m.Name))
			continue
		}
		r.models[m.Name] = m
	}

	for _, ct := range defs.Types {
		if _, exists := r.types[ct.Name]; exists {
			problems = append(problems, fmt.Sprintf("duplicate custom type %q", ct.Name))
			continue
		}
		if _, exists := r.models[ct.Name]; exists {
			problems = append(problems, fmt.Sprintf("custom type %q collides with a model name", ct.Name))
			continue
		}
		r.types[ct.Name] = ct
	}

	for _, op := range defs.Operations {
		if _, exists := r.operations[op.Name]; exists {
			problems = append(problems, fmt.Sprintf("duplicate operation %q", op.Name))
			continue
		}

		ref := op.Returns.Name
		if _, isModel := r.models[ref]; !isModel {
			if _, isType := r.types[ref]; !isType {
				problems = append(problems, fmt.Sprintf("operation %q: unresolved return type %q", op.Name, ref))
				continue
			}
		}

		r.operations[op.Name] = op
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &SchemaError{Problems: problems}
	}

	return r, nil
}

// Model returns the named model definition.
func (r *Registry) Model(name string) (schema.Model, error) {
	m, ok := r.models[name]
	if !ok {
		return schema.Model{}, fmt.Errorf("model %q: %w", name, ErrNotFound)
	}
	return m, nil
}

// Operation returns the named operation definition.
func (r *Registry) Operation(name string) (schema.Operation, error) {
	op, ok := r.operations[name]
	if !ok {
		return schema.Operation{}, fmt.Errorf("operation %q: %w", name, ErrNotFound)
	}
	return op, nil
}

// Type returns the named custom type definition.
func (r *Registry) Type(name string) (schema.CustomType, error) {
	ct, ok := r.types[name]
	if !ok {
		return schema.CustomType{}, fmt.Errorf("custom type %q: %w", name, ErrNotFound)
	}
	return ct, nil
}

// ReturnShape resolves an operation's return type to its field set.
// A model's shape includes its declared fields; system fields are
// implied and not listed.
func (r *Registry) ReturnShape(ref schema.TypeRef) (map[string]schema.Field, error) {
	if m, ok := r.models[ref.Name]; ok {
		return m.Fields, nil
	}
	if ct, ok := r.types[ref.Name]; ok {
		return ct.Fields, nil
	}
	return nil, fmt.Errorf("return type %q: %w", ref.Name, ErrNotFound)
}

// Models returns all model definitions in name order.
func (r *Registry) Models() []schema.Model {
	models := make([]schema.Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}

// Operations returns all operation definitions in name order.
func (r *Registry) Operations() []schema.Operation {
	ops := make([]schema.Operation, 0, len(r.operations))
	for _, op := range r.operations {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops
}
