// Package authz evaluates authorization rules against a session and an
// optional candidate record. This package has NO dependencies on I/O or
// external packages: evaluation is pure and deterministic, so identical
// inputs always yield identical decisions.
package authz

import (
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/record"
	"github.com/artpar/datagate/domain/session"
)

// Decision is the outcome of evaluating a rule set (value type).
type Decision struct {
	Allowed bool
	Reason  string
}

// Deny reasons.
const (
	ReasonAllowed = ""
	ReasonNoRules = "no_rules_defined"
	ReasonNoMatch = "no_rule_matched"
)

// Allow is the decision granting access.
var Allow = Decision{Allowed: true}

// Evaluate decides whether the session may perform op on the target
// guarded by rules. rec is the candidate record, or nil when none
// exists (create, and custom-operation invocation).
//
// Rules combine by logical OR: the result is Allow if any rule matches.
// The rule set is stored as a list, but evaluation is order-independent;
// no rule takes priority over another. An empty rule set denies.
func Evaluate(rules []schema.Rule, sess session.Session, op schema.Op, rec *record.Record) Decision {
	if len(rules) == 0 {
		return Decision{Reason: ReasonNoRules}
	}

	matched := false
	for _, rule := range rules {
		if ruleMatches(rule, sess, op, rec) {
			matched = true
		}
	}

	if !matched {
		return Decision{Reason: ReasonNoMatch}
	}
	return Allow
}

// ruleMatches checks one rule: the actor classifier must match the
// session, the operation must be in the rule's granted set, and the
// condition (if any) must hold against the record.
func ruleMatches(rule schema.Rule, sess session.Session, op schema.Op, rec *record.Record) bool {
	if !rule.Grants(op) {
		return false
	}

	// Conditions require a record; no record exists yet on create,
	// so conditional rules never gate create.
	if rule.When != nil {
		if op == schema.OpCreate || rec == nil {
			return false
		}
		if !conditionHolds(*rule.When, *rec) {
			return false
		}
	}

	switch rule.Allow {
	case schema.ActorOwner:
		if sess.IsAnonymous() || sess.ViaAPIKey {
			return false
		}
		if op == schema.OpCreate {
			// The creator becomes the owner; any authenticated
			// session may create under an owner rule.
			return true
		}
		return rec != nil && rec.Owner != "" && rec.Owner == sess.Subject

	case schema.ActorAuthenticated:
		return sess.Authenticated && !sess.ViaAPIKey

	case schema.ActorGroup:
		return sess.Authenticated && !sess.ViaAPIKey && sess.InGroup(rule.Group)

	case schema.ActorPublicKey:
		return sess.ViaAPIKey
	}

	return false
}

// conditionHolds evaluates an equality condition against a record.
// A missing field never satisfies the condition.
func conditionHolds(cond schema.Condition, rec record.Record) bool {
	v, ok := rec.Get(cond.Field)
	if !ok {
		return false
	}
	return equalValues(v, cond.Equals)
}

// equalValues compares a record value with a condition literal.
// Numeric values compare by magnitude so that int/float representation
// differences (YAML vs JSON decoding) don't affect the outcome.
func equalValues(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
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
