package app

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/artpar/datagate/domain/session"
	"github.com/artpar/datagate/ports"
	"github.com/rs/zerolog"
)

// RouteClass classifies a request path for the session guard.
type RouteClass string

const (
	// RoutePublic paths pass through regardless of session state.
	RoutePublic RouteClass = "public"

	// RouteProtected paths require a session; anonymous requests are
	// redirected to the auth surface with a resume parameter.
	RouteProtected RouteClass = "protected"

	// RouteAuthOnly paths are the login/signup surface; authenticated
	// requests are redirected to the default destination.
	RouteAuthOnly RouteClass = "auth_only"
)

// RouteRule marks a path prefix with a class. The classification table
// is supplied externally via configuration.
type RouteRule struct {
	Prefix string
	Class  RouteClass
}

// GuardDecision is the outcome of classifying one request.
type GuardDecision struct {
	Redirect bool
	Location string
}

var passThrough = GuardDecision{}

// Classify returns the class for a path. The longest matching prefix
// wins; unmatched paths are public.
func Classify(rules []RouteRule, path string) RouteClass {
	best := RoutePublic
	bestLen := -1

	for _, rule := range rules {
		if strings.HasPrefix(path, rule.Prefix) && len(rule.Prefix) > bestLen {
			best = rule.Class
			bestLen = len(rule.Prefix)
		}
	}

	return best
}

// Decide is the pure guard function: given a path's class and whether a
// session is present, it either passes the request through or names the
// redirect target. Protected paths carry the original path in the
// "next" parameter so login can resume it.
func Decide(class RouteClass, authenticated bool, path, loginPath, homePath string) GuardDecision {
	switch class {
	case RouteProtected:
		if !authenticated {
			return GuardDecision{
				Redirect: true,
				Location: loginPath + "?next=" + url.QueryEscape(path),
			}
		}
	case RouteAuthOnly:
		if authenticated {
			return GuardDecision{Redirect: true, Location: homePath}
		}
	}
	return passThrough
}

// Guard is the request-scoped middleware gate: it resolves the session
// once per request, classifies the path, and redirects or passes
// through. This is a page-level gate, independent of the record-level
// rule evaluator.
type Guard struct {
	identity ports.Identity
	rules    func() []RouteRule
	logger   zerolog.Logger
	metrics  Metrics

	loginPath string
	homePath  string
}

// GuardConfig configures the guard.
type GuardConfig struct {
	// Rules returns the current route classification table. Callers
	// typically bind this to the config holder so the table hot
	// reloads.
	Rules func() []RouteRule

	// LoginPath is the auth surface to redirect anonymous protected
	// requests to. Defaults to "/login".
	LoginPath string

	// HomePath is the default authenticated destination. Defaults
	// to "/".
	HomePath string
}

// NewGuard creates a guard.
func NewGuard(identity ports.Identity, cfg GuardConfig, logger zerolog.Logger, metrics Metrics) *Guard {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	if cfg.Rules == nil {
		cfg.Rules = func() []RouteRule { return nil }
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Guard{
		identity:  identity,
		rules:     cfg.Rules,
		logger:    logger.With().Str("service", "guard").Logger(),
		metrics:   metrics,
		loginPath: cfg.LoginPath,
		homePath:  cfg.HomePath,
	}
}

// Middleware resolves the session, stores it in the request context,
// and enforces the route classification.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.identity.Resolve(r.Context(), r)
		if err != nil {
			g.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("identity resolution failed")
			sess = session.Anonymous()
		}

		class := Classify(g.rules(), r.URL.Path)
		decision := Decide(class, sess.Authenticated, r.URL.Path, g.loginPath, g.homePath)
		if decision.Redirect {
			g.metrics.GuardRedirect(string(class))
			http.Redirect(w, r, decision.Location, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// SortRules returns the table sorted by prefix for stable logging.
func SortRules(rules []RouteRule) []RouteRule {
	sorted := make([]RouteRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Prefix < sorted[j].Prefix })
	return sorted
}

type sessionCtxKey struct{}

// WithSession stores the session in the context.
func WithSession(ctx context.Context, sess session.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// SessionFrom returns the request session, or the anonymous session if
// the guard never ran.
func SessionFrom(ctx context.Context) session.Session {
	if sess, ok := ctx.Value(sessionCtxKey{}).(session.Session); ok {
		return sess
	}
	return session.Anonymous()
}
