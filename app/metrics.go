package app

import "github.com/artpar/datagate/core/schema"

// Metrics receives engine events for export. Implementations live in
// core/exporter; services fall back to a no-op when none is wired.
type Metrics interface {
	// AuthzDecision records one rule evaluation outcome.
	AuthzDecision(target string, op schema.Op, allowed bool)

	// Dispatch records a custom-operation invocation reaching a
	// terminal state ("completed", "failed", "cancelled", "denied",
	// "invalid", "unknown").
	Dispatch(operation, state string)

	// GuardRedirect records a route-guard redirect by class.
	GuardRedirect(class string)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) AuthzDecision(string, schema.Op, bool) {}
func (NopMetrics) Dispatch(string, string)               {}
func (NopMetrics) GuardRedirect(string)                  {}
