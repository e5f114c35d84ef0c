package identity

import (
	"context"
	"net/http"

	"github.com/artpar/datagate/domain/session"
	"golang.org/x/crypto/bcrypt"
)

// APIKey is one accepted API key: a bcrypt hash of the raw key, its
// lookup prefix, and the subject it authenticates as.
type APIKey struct {
	Subject string
	Prefix  string // first 12 chars of the raw key
	Hash    []byte
}

// Resolver resolves sessions from requests. Cookie sessions carry a
// signed token; API-key requests match against configured key hashes
// and yield sessions that only public-key rules accept.
type Resolver struct {
	tokens     *TokenService
	cookieName string
	keyHeader  string
	keys       func() []APIKey
}

// ResolverConfig configures the resolver.
type ResolverConfig struct {
	CookieName string // default: datagate_session
	KeyHeader  string // default: X-API-Key

	// Keys returns the currently accepted API keys. Bind to the config
	// holder so key changes hot reload.
	Keys func() []APIKey
}

// NewResolver creates a resolver.
func NewResolver(tokens *TokenService, cfg ResolverConfig) *Resolver {
	if cfg.CookieName == "" {
		cfg.CookieName = "datagate_session"
	}
	if cfg.KeyHeader == "" {
		cfg.KeyHeader = "X-API-Key"
	}
	if cfg.Keys == nil {
		cfg.Keys = func() []APIKey { return nil }
	}
	return &Resolver{
		tokens:     tokens,
		cookieName: cfg.CookieName,
		keyHeader:  cfg.KeyHeader,
		keys:       cfg.Keys,
	}
}

// Resolve returns the request's session. Unauthenticated requests get
// the anonymous session; errors are reserved for verifier failures.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (session.Session, error) {
	if raw := req.Header.Get(r.keyHeader); raw != "" {
		return r.resolveAPIKey(raw), nil
	}

	cookie, err := req.Cookie(r.cookieName)
	if err != nil {
		return session.Anonymous(), nil
	}

	claims, err := r.tokens.ValidateToken(cookie.Value)
	if err != nil {
		// Expired or tampered cookie: treat as anonymous.
		return session.Anonymous(), nil
	}

	return session.Session{
		Subject:       claims.Subject,
		Email:         claims.Email,
		Groups:        claims.Groups,
		Authenticated: true,
	}, nil
}

// resolveAPIKey matches the raw key against configured hashes by
// prefix, then verifies with bcrypt.
func (r *Resolver) resolveAPIKey(raw string) session.Session {
	if len(raw) < 12 {
		return session.Anonymous()
	}
	prefix := raw[:12]

	for _, k := range r.keys() {
		if k.Prefix != prefix {
			continue
		}
		if bcrypt.CompareHashAndPassword(k.Hash, []byte(raw)) == nil {
			return session.Session{
				Subject:       k.Subject,
				Authenticated: true,
				ViaAPIKey:     true,
			}
		}
	}

	return session.Anonymous()
}
