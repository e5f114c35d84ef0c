package schema

import "fmt"

// Op identifies a data operation gated by authorization rules.
type Op string

const (
	OpCreate Op = "create"
	OpRead   Op = "read"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// AllOps lists every operation, in canonical order.
func AllOps() []Op {
	return []Op{OpCreate, OpRead, OpUpdate, OpDelete}
}

// Actor classifies the kind of requester an authorization rule applies to.
type Actor string

const (
	// ActorOwner matches when the session subject is the record's owner.
	ActorOwner Actor = "owner"

	// ActorAuthenticated matches any non-anonymous session.
	ActorAuthenticated Actor = "authenticated"

	// ActorGroup matches sessions carrying the rule's named group.
	ActorGroup Actor = "group"

	// ActorPublicKey matches requests authenticated via API key.
	ActorPublicKey Actor = "public_key"
)

// Rule grants a set of operations to a class of actors, optionally
// conditioned on the candidate record's fields. Rules combine by
// logical OR: any matching rule is independently sufficient.
type Rule struct {
	// Allow is the actor classifier. See Actor constants.
	Allow Actor `yaml:"allow"`

	// Group names the required group for group rules.
	Group string `yaml:"group,omitempty"`

	// Operations lists the operations this rule grants.
	// Empty means all of create, read, update, delete.
	Operations []Op `yaml:"operations,omitempty"`

	// When restricts the rule to records satisfying a field predicate.
	// Rules with a condition never match create (no record exists yet).
	When *Condition `yaml:"when,omitempty"`
}

// Condition is an equality predicate over a record field.
type Condition struct {
	Field  string `yaml:"field"`
	Equals any    `yaml:"equals"`
}

// Ops returns the rule's granted operation set, expanding the
// empty-means-all shorthand.
func (r Rule) Ops() []Op {
	if len(r.Operations) == 0 {
		return AllOps()
	}
	return r.Operations
}

// Grants reports whether the rule's operation set includes op.
func (r Rule) Grants(op Op) bool {
	for _, o := range r.Ops() {
		if o == op {
			return true
		}
	}
	return false
}

// validateRule checks a rule definition against the owning schema.
// fields is nil for operation rules, which have no ambient record.
func validateRule(r Rule, fields map[string]Field) error {
	switch r.Allow {
	case ActorOwner, ActorAuthenticated, ActorPublicKey:
		if r.Group != "" {
			return fmt.Errorf("rule %q: group only valid for group rules", r.Allow)
		}
	case ActorGroup:
		if r.Group == "" {
			return fmt.Errorf("group rule requires a group name")
		}
	default:
		return fmt.Errorf("unknown actor classifier %q", r.Allow)
	}

	for _, op := range r.Operations {
		switch op {
		case OpCreate, OpRead, OpUpdate, OpDelete:
		default:
			return fmt.Errorf("rule %q: unknown operation %q", r.Allow, op)
		}
	}

	if r.When != nil {
		if r.When.Field == "" {
			return fmt.Errorf("rule %q: condition requires a field", r.Allow)
		}
		if fields != nil {
			if _, ok := fields[r.When.Field]; !ok {
				return fmt.Errorf("rule %q: condition references unknown field %q", r.Allow, r.When.Field)
			}
		}
	}

	return nil
}
