// Package bootstrap wires all dependencies and starts the engine:
// configuration, schema registry, record store, identity, guard, and
// the HTTP surface.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"

	"github.com/artpar/datagate/adapters/clock"
	"github.com/artpar/datagate/adapters/dynamo"
	"github.com/artpar/datagate/adapters/identity"
	"github.com/artpar/datagate/adapters/idgen"
	"github.com/artpar/datagate/adapters/memory"
	"github.com/artpar/datagate/adapters/sqlite"
	"github.com/artpar/datagate/app"
	"github.com/artpar/datagate/config"
	"github.com/artpar/datagate/core/exporter"
	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/ports"
	"github.com/artpar/datagate/web"
)

// App represents the running application.
type App struct {
	Logger   zerolog.Logger
	Config   *config.Holder
	Registry *registry.Registry
	Handlers *memory.HandlerRegistry

	httpServer *http.Server
	db         *sqlite.DB
}

// Options configures application initialization.
type Options struct {
	// ConfigPath is the configuration file to load.
	ConfigPath string

	// HotReload watches the config file and SIGHUP for reloadable
	// fields (routes, API keys). Schema and store changes always
	// require a restart.
	HotReload bool

	// Handlers holds the external collaborators behind custom
	// operations. Optional; an empty registry means every declared
	// operation fails with a handler error until one is registered.
	Handlers *memory.HandlerRegistry
}

// New creates and initializes the application. Schema problems are
// fatal here: the registry either builds completely or the process
// refuses to start.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing datagate")

	holder, err := config.NewHolder(opts.ConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("config holder: %w", err)
	}

	if opts.HotReload {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
	}

	a := &App{
		Logger:   logger,
		Config:   holder,
		Handlers: opts.Handlers,
	}
	if a.Handlers == nil {
		a.Handlers = memory.NewHandlerRegistry()
	}

	defs, err := schema.ParseDir(cfg.Schema.Dir)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}

	reg, err := registry.Build(defs)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	a.Registry = reg
	logger.Info().
		Int("models", len(reg.Models())).
		Int("operations", len(reg.Operations())).
		Msg("schema registry built")

	store, err := a.buildStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if err := a.initHTTPServer(cfg, store); err != nil {
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return a, nil
}

// buildStore selects the record store collaborator by driver.
func (a *App) buildStore(cfg config.StoreConfig) (ports.RecordStore, error) {
	switch cfg.Driver {
	case "memory":
		a.Logger.Info().Msg("using in-memory record store")
		return memory.NewRecordStore(), nil

	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db

		store := sqlite.NewRecordStore(db)
		if err := store.Migrate(a.Registry); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Logger.Info().Str("dsn", cfg.DSN).Msg("sqlite record store initialized")
		return store, nil

	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		a.Logger.Info().
			Str("table_prefix", cfg.Table).
			Str("region", cfg.Region).
			Msg("dynamodb record store initialized")
		return dynamo.NewRecordStore(client, cfg.Table), nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func (a *App) initHTTPServer(cfg *config.Config, store ports.RecordStore) error {
	var metrics app.Metrics = app.NopMetrics{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		prom := exporter.NewPrometheus(exporter.PrometheusConfig{})
		metrics = prom
		metricsHandler = prom.Handler()
		a.Logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	tokens := identity.NewTokenService(cfg.Auth.SessionSecret, 0)
	resolver := identity.NewResolver(tokens, identity.ResolverConfig{
		CookieName: cfg.Auth.CookieName,
		KeyHeader:  cfg.Auth.KeyHeader,
		Keys:       func() []identity.APIKey { return apiKeys(a.Config.Get().Auth.Keys) },
	})

	guard := app.NewGuard(resolver, app.GuardConfig{
		Rules:     func() []app.RouteRule { return routeRules(a.Config.Get().Routes) },
		LoginPath: cfg.Auth.LoginPath,
		HomePath:  cfg.Auth.HomePath,
	}, a.Logger, metrics)

	access := app.NewAccess(a.Registry, a.Logger, metrics)
	dispatcher := app.NewDispatcher(a.Registry, a.Handlers, a.Logger, metrics)

	handler := web.New(web.Deps{
		Access:     access,
		Dispatcher: dispatcher,
		Guard:      guard,
		Store:      store,
		Clock:      clock.Real{},
		IDs:        idgen.UUID{},
		Metrics:    metricsHandler,
		Logger:     a.Logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.httpServer.Addr).Msg("starting http server")
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. In-flight requests get a
// grace period; new requests are refused immediately.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.Config.Stop()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// routeRules converts configured route entries into guard rules.
func routeRules(routes []config.RouteConfig) []app.RouteRule {
	rules := make([]app.RouteRule, 0, len(routes))
	for _, r := range routes {
		rules = append(rules, app.RouteRule{
			Prefix: r.Prefix,
			Class:  app.RouteClass(r.Class),
		})
	}
	return rules
}

// apiKeys converts configured key entries into resolver keys.
func apiKeys(keys []config.APIKeyConfig) []identity.APIKey {
	out := make([]identity.APIKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, identity.APIKey{
			Subject: k.Subject,
			Prefix:  k.Prefix,
			Hash:    []byte(k.Hash),
		})
	}
	return out
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
