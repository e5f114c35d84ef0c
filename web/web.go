// Package web provides the JSON API surface: data endpoints gated by
// the rule evaluator, custom-operation dispatch, and health/metrics.
// Stateless design - no server-side session storage.
package web

import (
	"net/http"
	"time"

	"github.com/artpar/datagate/app"
	"github.com/artpar/datagate/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handler provides the API endpoints.
type Handler struct {
	access     *app.Access
	dispatcher *app.Dispatcher
	guard      *app.Guard
	store      ports.RecordStore
	clock      ports.Clock
	ids        ports.IDGenerator
	metrics    http.Handler // nil disables /metrics
	logger     zerolog.Logger
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Access     *app.Access
	Dispatcher *app.Dispatcher
	Guard      *app.Guard
	Store      ports.RecordStore
	Clock      ports.Clock
	IDs        ports.IDGenerator
	Metrics    http.Handler
	Logger     zerolog.Logger
}

// New creates a web handler.
func New(deps Deps) *Handler {
	return &Handler{
		access:     deps.Access,
		dispatcher: deps.Dispatcher,
		guard:      deps.Guard,
		store:      deps.Store,
		clock:      deps.Clock,
		ids:        deps.IDs,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With().Str("component", "web").Logger(),
	}
}

// Router builds the HTTP routes. The guard middleware runs first on
// every request; the rule evaluator then gates each data operation.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(h.guard.Middleware)

	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/data/{model}", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Post("/query", h.handleQuery)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
	})

	r.Post("/operations/{name}", h.handleInvoke)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// requestLogger logs one line per request.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
