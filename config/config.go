// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Schema  SchemaConfig  `yaml:"schema"`
	Auth    AuthConfig    `yaml:"auth"`
	Routes  []RouteConfig `yaml:"routes"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SchemaConfig locates the declarative definitions. Definitions are
// loaded once at startup; changing them requires a restart.
type SchemaConfig struct {
	Dir string `yaml:"dir"`
}

// AuthConfig configures the identity surface.
type AuthConfig struct {
	// LoginPath is the auth surface anonymous protected requests are
	// redirected to (default: /login).
	LoginPath string `yaml:"login_path"`

	// HomePath is the default authenticated destination (default: /).
	HomePath string `yaml:"home_path"`

	// CookieName is the session cookie (default: datagate_session).
	CookieName string `yaml:"cookie_name"`

	// SessionSecret signs session cookies. Set via ${DATAGATE_SESSION_SECRET}.
	SessionSecret string `yaml:"session_secret,omitempty"`

	// KeyHeader is the API key header name (default: X-API-Key).
	KeyHeader string `yaml:"key_header"`

	// Keys lists accepted API keys as bcrypt hashes with an attached
	// subject. API-key requests match public-key rules only.
	Keys []APIKeyConfig `yaml:"keys,omitempty"`
}

// APIKeyConfig is one accepted API key.
type APIKeyConfig struct {
	Subject string `yaml:"subject"`
	Prefix  string `yaml:"prefix"` // first 12 chars of the raw key, for lookup
	Hash    string `yaml:"hash"`   // bcrypt hash of the full raw key
}

// RouteConfig marks a path prefix for the session guard.
type RouteConfig struct {
	Prefix string `yaml:"prefix"`
	Class  string `yaml:"class"` // "protected", "auth_only", or "public"
}

// StoreConfig configures the record store collaborator.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "memory", "sqlite", or "dynamo"
	DSN    string `yaml:"dsn"`    // sqlite path
	Table  string `yaml:"table"`  // dynamo table name prefix, one table per model
	Region string `yaml:"region"` // dynamo region
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand ${VAR} references. Bare $ stays literal so bcrypt hashes
	// ($2a$10$...) survive expansion.
	data = []byte(expandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// applyEnvOverrides applies DATAGATE_* environment variables.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATAGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DATAGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATAGATE_SCHEMA_DIR"); v != "" {
		cfg.Schema.Dir = v
	}
	if v := os.Getenv("DATAGATE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("DATAGATE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("DATAGATE_SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv("DATAGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DATAGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Schema.Dir == "" {
		cfg.Schema.Dir = "schemas"
	}
	if cfg.Auth.LoginPath == "" {
		cfg.Auth.LoginPath = "/login"
	}
	if cfg.Auth.HomePath == "" {
		cfg.Auth.HomePath = "/"
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "datagate_session"
	}
	if cfg.Auth.KeyHeader == "" {
		cfg.Auth.KeyHeader = "X-API-Key"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = "datagate.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}

	switch cfg.Store.Driver {
	case "memory", "sqlite", "dynamo":
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.Driver == "dynamo" && cfg.Store.Table == "" {
		return fmt.Errorf("dynamo store requires a table name")
	}

	for _, r := range cfg.Routes {
		if r.Prefix == "" {
			return fmt.Errorf("route rule requires a prefix")
		}
		switch r.Class {
		case "protected", "auth_only", "public":
		default:
			return fmt.Errorf("route %q: unknown class %q", r.Prefix, r.Class)
		}
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}

	return nil
}
