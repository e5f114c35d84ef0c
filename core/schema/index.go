package schema

import "fmt"

// Index defines a secondary access path for a model: a partition key
// and an optional sort key, in the style of a global secondary index.
type Index struct {
	// Name identifies the index, unique per model.
	Name string `yaml:"name"`

	// PartitionKey is the schema field queried by equality.
	PartitionKey string `yaml:"partition_key"`

	// SortKey is the optional schema field queried by range.
	SortKey string `yaml:"sort_key,omitempty"`
}

// HasSortKey returns whether the index declares a sort key.
func (ix Index) HasSortKey() bool {
	return ix.SortKey != ""
}

// validateIndex checks an index definition against the owning schema.
func validateIndex(ix Index, fields map[string]Field) error {
	if ix.Name == "" {
		return fmt.Errorf("index requires a name")
	}

	if !isValidIdentifier(ix.Name) {
		return fmt.Errorf("index name %q is not a valid identifier", ix.Name)
	}

	if ix.PartitionKey == "" {
		return fmt.Errorf("index %q: partition key is required", ix.Name)
	}

	// System fields (owner, created_at, ...) are valid keys too.
	if _, ok := fields[ix.PartitionKey]; !ok && !isSystemField(ix.PartitionKey) {
		return fmt.Errorf("index %q: partition key references unknown field %q", ix.Name, ix.PartitionKey)
	}

	if ix.SortKey != "" {
		if _, ok := fields[ix.SortKey]; !ok && !isSystemField(ix.SortKey) {
			return fmt.Errorf("index %q: sort key references unknown field %q", ix.Name, ix.SortKey)
		}
	}

	return nil
}
