package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder hands out the current configuration and swaps it atomically on
// reload. The guard and identity resolver read through Get on every
// request, so route rules and API keys take effect without a restart.
// Schema definitions, the store driver, and the listen address are read
// once at boot; changing those requires a restart.
type Holder struct {
	path   string
	logger zerolog.Logger

	mu        sync.RWMutex
	current   *Config
	listeners []func(*Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewHolder loads the initial configuration from path.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	return &Holder{
		path:    abs,
		logger:  logger.With().Str("component", "config").Logger(),
		current: cfg,
		done:    make(chan struct{}),
	}, nil
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnChange registers a listener called after each successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload re-reads the file and swaps the configuration in. A file that
// fails to load leaves the old configuration in place.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("reload failed, keeping current config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	listeners := h.listeners
	h.mu.Unlock()

	h.logger.Info().
		Int("routes", len(next.Routes)).
		Int("api_keys", len(next.Auth.Keys)).
		Bool("routes_changed", len(prev.Routes) != len(next.Routes)).
		Msg("configuration reloaded")

	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// WatchFile reloads whenever the config file is written. The watch
// covers the directory, not the file, so editors that save atomically
// (write temp, rename over) still trigger.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = w

	go func() {
		name := filepath.Base(h.path)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					h.logger.Debug().Str("op", ev.Op.String()).Msg("config file changed")
					h.Reload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				h.logger.Error().Err(err).Msg("config watcher error")
			case <-h.done:
				return
			}
		}
	}()

	h.logger.Info().Str("path", h.path).Msg("watching config file")
	return nil
}

// WatchSignals reloads on SIGHUP.
func (h *Holder) WatchSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigs:
				h.logger.Info().Msg("SIGHUP received")
				h.Reload()
			case <-h.done:
				signal.Stop(sigs)
				return
			}
		}
	}()
}

// Stop ends watching. The holder keeps serving its last configuration.
func (h *Holder) Stop() {
	close(h.done)
	if h.watcher != nil {
		h.watcher.Close()
	}
}
