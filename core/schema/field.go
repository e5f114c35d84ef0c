package schema

import (
	"fmt"
	"time"
)

// Field defines a data field in a model's schema.
type Field struct {
	// Type is the field type. See FieldType constants.
	Type FieldType `yaml:"type"`

	// Array indicates the field holds a list of Type values.
	Array bool `yaml:"array,omitempty"`

	// Required indicates this field must be provided on create.
	Required bool `yaml:"required,omitempty"`

	// Default value applied when the field is omitted.
	Default any `yaml:"default,omitempty"`

	// Values lists valid values for enum type fields.
	Values []string `yaml:"values,omitempty"`
}

// FieldType represents the type of a schema field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeID        FieldType = "id"

	// FieldTypeEnum requires Values.
	FieldTypeEnum FieldType = "enum"
)

// validTypes is the set of recognized field types.
var validTypes = map[FieldType]bool{
	FieldTypeString:    true,
	FieldTypeInt:       true,
	FieldTypeFloat:     true,
	FieldTypeBool:      true,
	FieldTypeTimestamp: true,
	FieldTypeID:        true,
	FieldTypeEnum:      true,
}

// HasDefault returns whether the field declares a default value.
func (f Field) HasDefault() bool {
	return f.Default != nil
}

// CheckValue validates a value against the field's declared type.
// Array fields accept a slice whose elements each satisfy the element type.
func (f Field) CheckValue(name string, v any) error {
	if v == nil {
		return nil
	}

	if f.Array {
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("field %q: expected array of %s", name, f.Type)
		}
		elem := Field{Type: f.Type, Values: f.Values}
		for i, item := range items {
			if err := elem.CheckValue(fmt.Sprintf("%s[%d]", name, i), item); err != nil {
				return err
			}
		}
		return nil
	}

	switch f.Type {
	case FieldTypeString, FieldTypeID:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("field %q: expected %s, got %T", name, f.Type, v)
		}
	case FieldTypeInt:
		switch v.(type) {
		case int, int32, int64:
		case float64:
			// JSON numbers arrive as float64; accept whole numbers.
			if v.(float64) != float64(int64(v.(float64))) {
				return fmt.Errorf("field %q: expected int, got fractional number", name)
			}
		default:
			return fmt.Errorf("field %q: expected int, got %T", name, v)
		}
	case FieldTypeFloat:
		switch v.(type) {
		case float32, float64, int, int64:
		default:
			return fmt.Errorf("field %q: expected float, got %T", name, v)
		}
	case FieldTypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("field %q: expected bool, got %T", name, v)
		}
	case FieldTypeTimestamp:
		switch t := v.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, t); err != nil {
				return fmt.Errorf("field %q: expected RFC3339 timestamp: %v", name, err)
			}
		default:
			return fmt.Errorf("field %q: expected timestamp, got %T", name, v)
		}
	case FieldTypeEnum:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("field %q: expected enum value, got %T", name, v)
		}
		for _, allowed := range f.Values {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("field %q: value %q not in enum %v", name, s, f.Values)
	default:
		return fmt.Errorf("field %q: unknown type %q", name, f.Type)
	}

	return nil
}

// validateField checks a field definition for internal consistency.
func validateField(name string, f Field) error {
	if !validTypes[f.Type] {
		return fmt.Errorf("field %q: unknown type %q", name, f.Type)
	}

	if f.Type == FieldTypeEnum && len(f.Values) == 0 {
		return fmt.Errorf("field %q: enum type requires values", name)
	}

	if len(f.Values) > 0 && f.Type != FieldTypeEnum {
		return fmt.Errorf("field %q: values only valid for enum type", name)
	}

	if f.Default != nil {
		if err := f.CheckValue(name, f.Default); err != nil {
			return fmt.Errorf("default value: %w", err)
		}
	}

	return nil
}
