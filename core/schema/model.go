// Package schema defines the core types for declarative model definitions.
// A model owns its data fields, authorization rules, and secondary indexes.
package schema

import "sort"

// Model is the root definition for a declarative data model.
type Model struct {
	// Name is the singular name of the model (e.g., "post", "profile").
	Name string `yaml:"model"`

	// Fields defines the data fields owned by this model.
	Fields map[string]Field `yaml:"fields"`

	// Rules defines who may perform which operations on records of
	// this model. An empty rule set denies everything.
	Rules []Rule `yaml:"rules,omitempty"`

	// Indexes defines secondary query paths beyond the primary key.
	Indexes []Index `yaml:"indexes,omitempty"`
}

// System field names present on every record, outside the declared schema.
const (
	SystemFieldID        = "id"
	SystemFieldOwner     = "owner"
	SystemFieldCreatedAt = "created_at"
	SystemFieldUpdatedAt = "updated_at"
)

// FieldNames returns the model's field names in sorted order.
func (m Model) FieldNames() []string {
	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexByName returns the named index, if defined.
func (m Model) IndexByName(name string) (Index, bool) {
	for _, ix := range m.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return Index{}, false
}

// SortedIndexes returns the model's indexes in name order. Planner
// iteration uses this so index choice never depends on declaration order.
func (m Model) SortedIndexes() []Index {
	indexes := make([]Index, len(m.Indexes))
	copy(indexes, m.Indexes)
	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].Name < indexes[j].Name
	})
	return indexes
}
