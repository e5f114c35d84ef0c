package schema

import "fmt"

// OperationKind distinguishes queries from mutations.
type OperationKind string

const (
	OperationQuery    OperationKind = "query"
	OperationMutation OperationKind = "mutation"
)

// CustomType describes a named return shape for custom operations.
// Custom types are never persisted; they only describe handler results.
type CustomType struct {
	// Name identifies the type.
	Name string `yaml:"type"`

	// Fields defines the shape.
	Fields map[string]Field `yaml:"fields"`
}

// TypeRef names a model or custom type as an operation's return type.
type TypeRef struct {
	// Name of a model or custom type.
	Name string `yaml:"name"`

	// Array indicates the operation returns a list.
	Array bool `yaml:"array,omitempty"`
}

// Argument declares one input to a custom operation. Required and
// default semantics are identical to Field.
type Argument struct {
	Name  string `yaml:"name"`
	Field Field  `yaml:",inline"`
}

// Operation defines a custom query or mutation routed to an external
// handler. Operations are authorized under the same rule contract as
// CRUD, before the handler ever runs.
type Operation struct {
	// Name identifies the operation, unique across the registry.
	Name string `yaml:"operation"`

	// Kind is query or mutation.
	Kind OperationKind `yaml:"kind"`

	// Arguments is the ordered argument schema.
	Arguments []Argument `yaml:"arguments,omitempty"`

	// Returns names the declared return type.
	Returns TypeRef `yaml:"returns"`

	// Handler is the opaque identifier resolved by the handler
	// collaborator at startup.
	Handler string `yaml:"handler"`

	// Rules gate invocation. Operations carry no ambient record, so
	// owner rules and conditional rules never match here.
	Rules []Rule `yaml:"rules,omitempty"`
}

// ArgumentByName returns the named argument, if declared.
func (op Operation) ArgumentByName(name string) (Argument, bool) {
	for _, arg := range op.Arguments {
		if arg.Name == name {
			return arg, true
		}
	}
	return Argument{}, false
}

// validateOperation checks an operation definition in isolation.
// Return type resolution happens at registry build, where the full
// definition set is known.
func validateOperation(op Operation) error {
	var errs []string

	if op.Name == "" {
		errs = append(errs, "operation name is required")
	} else if !isValidIdentifier(op.Name) {
		errs = append(errs, fmt.Sprintf("operation name %q is not a valid identifier", op.Name))
	}

	switch op.Kind {
	case OperationQuery, OperationMutation:
	default:
		errs = append(errs, fmt.Sprintf("operation kind %q must be query or mutation", op.Kind))
	}

	if op.Returns.Name == "" {
		errs = append(errs, "return type is required")
	}

	if op.Handler == "" {
		errs = append(errs, "handler reference is required")
	}

	seen := make(map[string]bool)
	for _, arg := range op.Arguments {
		if !isValidIdentifier(arg.Name) {
			errs = append(errs, fmt.Sprintf("argument name %q is not a valid identifier", arg.Name))
		}
		if seen[arg.Name] {
			errs = append(errs, fmt.Sprintf("duplicate argument %q", arg.Name))
		}
		seen[arg.Name] = true

		if err := validateField(arg.Name, arg.Field); err != nil {
			errs = append(errs, err.Error())
		}
	}

	for _, rule := range op.Rules {
		if err := validateRule(rule, nil); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return joinErrs(errs)
}

// validateCustomType checks a custom type definition.
func validateCustomType(ct CustomType) error {
	var errs []string

	if ct.Name == "" {
		errs = append(errs, "custom type name is required")
	} else if !isValidIdentifier(ct.Name) {
		errs = append(errs, fmt.Sprintf("custom type name %q is not a valid identifier", ct.Name))
	}

	if len(ct.Fields) == 0 {
		errs = append(errs, fmt.Sprintf("custom type %q must have at least one field", ct.Name))
	}

	for name, field := range ct.Fields {
		if !isValidIdentifier(name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", name))
		}
		if err := validateField(name, field); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return joinErrs(errs)
}
