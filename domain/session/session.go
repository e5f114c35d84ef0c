// Package session provides the per-request identity value type.
// This package has NO dependencies on I/O or external packages.
package session

// Session is the identity context for one request (immutable value type).
// It is created by the identity collaborator from whatever transport the
// surrounding framework uses, lives for the request, and is never shared
// across requests.
type Session struct {
	// Subject is the stable identity of the requester.
	Subject string

	// Email at the time the session was issued, if known.
	Email string

	// Groups the subject belongs to.
	Groups []string

	// Authenticated is true for any non-anonymous session.
	Authenticated bool

	// ViaAPIKey is true when the request authenticated with an API key
	// rather than a user session. Only such requests match public-key
	// authorization rules.
	ViaAPIKey bool
}

// Anonymous returns the session used for unauthenticated requests.
func Anonymous() Session {
	return Session{}
}

// IsAnonymous returns true if the session carries no identity.
func (s Session) IsAnonymous() bool {
	return !s.Authenticated
}

// InGroup returns true if the session carries the named group.
func (s Session) InGroup(group string) bool {
	for _, g := range s.Groups {
		if g == group {
			return true
		}
	}
	return false
}
