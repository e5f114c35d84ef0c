package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions is the full declarative surface loaded at startup:
// models, custom types, and custom operations.
type Definitions struct {
	Models     []Model
	Types      []CustomType
	Operations []Operation
}

// Merge appends another definition set.
func (d *Definitions) Merge(other Definitions) {
	d.Models = append(d.Models, other.Models...)
	d.Types = append(d.Types, other.Types...)
	d.Operations = append(d.Operations, other.Operations...)
}

// Parse parses a single definition from YAML bytes. The top-level key
// determines the definition kind: model, type, or operation.
func Parse(data []byte) (Definitions, error) {
	var sniff struct {
		Model     string `yaml:"model"`
		Type      string `yaml:"type"`
		Operation string `yaml:"operation"`
	}
	if err := yaml.Unmarshal(data, &sniff); err != nil {
		return Definitions{}, fmt.Errorf("parse yaml: %w", err)
	}

	switch {
	case sniff.Model != "":
		var m Model
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Definitions{}, fmt.Errorf("parse model: %w", err)
		}
		if err := ValidateModel(m); err != nil {
			return Definitions{}, fmt.Errorf("validate model %q: %w", m.Name, err)
		}
		return Definitions{Models: []Model{m}}, nil

	case sniff.Operation != "":
		var op Operation
		if err := yaml.Unmarshal(data, &op); err != nil {
			return Definitions{}, fmt.Errorf("parse operation: %w", err)
		}
		if err := validateOperation(op); err != nil {
			return Definitions{}, fmt.Errorf("validate operation %q: %w", op.Name, err)
		}
		return Definitions{Operations: []Operation{op}}, nil

	case sniff.Type != "":
		var ct CustomType
		if err := yaml.Unmarshal(data, &ct); err != nil {
			return Definitions{}, fmt.Errorf("parse custom type: %w", err)
		}
		if err := validateCustomType(ct); err != nil {
			return Definitions{}, fmt.Errorf("validate custom type %q: %w", ct.Name, err)
		}
		return Definitions{Types: []CustomType{ct}}, nil
	}

	return Definitions{}, errors.New("definition must declare model, type, or operation")
}

// ParseFile parses a definition from a YAML file.
func ParseFile(path string) (Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("read file %s: %w", path, err)
	}

	defs, err := Parse(data)
	if err != nil {
		return Definitions{}, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseDir parses all definitions from a directory, including subdirectories.
func ParseDir(dir string) (Definitions, error) {
	var defs Definitions

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Definitions{}, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return Definitions{}, err
			}
			defs.Merge(sub)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		fileDefs, err := ParseFile(path)
		if err != nil {
			return Definitions{}, err
		}
		defs.Merge(fileDefs)
	}

	return defs, nil
}

// ValidateModel validates a model definition in isolation.
// Cross-definition checks (duplicates, type references) happen at
// registry build.
func ValidateModel(m Model) error {
	var errs []string

	if m.Name == "" {
		errs = append(errs, "model name is required")
	} else if !isValidIdentifier(m.Name) {
		errs = append(errs, fmt.Sprintf("model name %q is not a valid identifier", m.Name))
	}

	if len(m.Fields) == 0 {
		errs = append(errs, "model must have at least one field")
	}

	for name, field := range m.Fields {
		if !isValidIdentifier(name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", name))
		}
		if isSystemField(name) {
			errs = append(errs, fmt.Sprintf("field name %q collides with a system field", name))
		}
		if err := validateField(name, field); err != nil {
			errs = append(errs, err.Error())
		}
	}

	for _, rule := range m.Rules {
		if err := validateRule(rule, m.Fields); err != nil {
			errs = append(errs, err.Error())
		}
	}

	seen := make(map[string]bool)
	for _, ix := range m.Indexes {
		if seen[ix.Name] {
			errs = append(errs, fmt.Sprintf("duplicate index %q", ix.Name))
		}
		seen[ix.Name] = true

		if err := validateIndex(ix, m.Fields); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return joinErrs(errs)
}

func isSystemField(name string) bool {
	switch name {
	case SystemFieldID, SystemFieldOwner, SystemFieldCreatedAt, SystemFieldUpdatedAt:
		return true
	}
	return false
}

// isValidIdentifier checks if a name is a valid identifier:
// starts with a letter, contains only letters, digits, and underscores.
func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		if i == 0 {
			if !isLetter(r) {
				return false
			}
			continue
		}
		if !isLetter(r) && !isDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
}
