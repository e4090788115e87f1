// Package app wires the console client together: credential store, session
// manager, query cache, realtime connection and metrics.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aussiebroadwan/pulsarconsole/internal/credstore"
	"github.com/aussiebroadwan/pulsarconsole/internal/credstore/drivers/memory"
	"github.com/aussiebroadwan/pulsarconsole/internal/credstore/drivers/redis"
	"github.com/aussiebroadwan/pulsarconsole/internal/credstore/drivers/sqlite"
	"github.com/aussiebroadwan/pulsarconsole/internal/metrics"
	"github.com/aussiebroadwan/pulsarconsole/internal/querycache"
	"github.com/aussiebroadwan/pulsarconsole/internal/realtime"
	"github.com/aussiebroadwan/pulsarconsole/internal/session"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns every client component and the session event wiring
// between them.
type Application struct {
	cfg    Config
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	store    credstore.KV
	session  *session.Manager
	cache    *querycache.Cache
	realtime *realtime.Conn
	monitor  *session.ExpiryMonitor

	// live is set while the caller wants the realtime connection kept up.
	live    atomic.Bool
	started atomic.Bool

	mu       sync.RWMutex
	onEvent  func(realtime.Event, []querycache.Key)
	onState  func(realtime.State)
	unsub    func()
	stopHTTP context.CancelFunc
}

// Option customises New beyond what Config reads from the environment.
type Option func(*options)

type options struct {
	logOutput io.Writer
	transport http.RoundTripper
	store     credstore.KV
}

// WithLogOutput sends logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithTransport sets the innermost HTTP round tripper of the API client.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithStore uses kv instead of opening the configured credential store.
func WithStore(kv credstore.KV) Option {
	return func(o *options) { o.store = kv }
}

// New creates a new Application instance with all dependencies initialized.
// It does not touch the network; call Start for that.
func New(ctx context.Context, cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "consolectl",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  o.logOutput,
		}),
		registry: prometheus.NewRegistry(),
	}
	app.metrics = metrics.New(app.registry)

	store := o.store
	if store == nil {
		var err error
		if store, err = app.openStore(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.MasterKey != "" {
		sealed, err := credstore.OpenSealed(ctx, store, cfg.MasterKey, session.SecretKeys...)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to open sealed credential store: %w", err)
		}
		store = sealed
	}
	app.store = store

	cache, err := querycache.New(cfg.CacheSize, app.logger, app.metrics)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	app.cache = cache

	app.session = session.NewManager(session.Options{
		BaseURL:   cfg.APIURL,
		Store:     store,
		Transport: o.transport,
		Timeout:   cfg.HTTPTimeout,
		Logger:    app.logger,
		Metrics:   app.metrics,
	})

	app.realtime = realtime.New(realtime.Options{
		URL:            cfg.WSURL,
		Token:          app.session.AccessToken,
		Cache:          cache,
		ReconnectDelay: cfg.ReconnectDelay,
		Logger:         app.logger,
		Metrics:        app.metrics,
		OnStateChange:  app.handleState,
		OnEvent:        app.handleEvent,
	})

	app.monitor = app.session.NewExpiryMonitor(cfg.ExpiryCheckInterval)
	app.unsub = app.session.Subscribe(app.handleSession)

	return app, nil
}

// openStore opens the configured credential store driver.
func (app *Application) openStore(ctx context.Context) (credstore.KV, error) {
	var store credstore.KV

	switch app.cfg.CredentialStore {
	case StoreSQLite:
		if dir := filepath.Dir(app.cfg.DatabaseFile); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create credential directory: %w", err)
			}
		}

		db, err := sqlite.NewStore(app.cfg.DatabaseFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply credential migrations: %w", err)
		}
		store = db

	case StoreRedis:
		client, err := redis.NewClient(app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		store = redis.NewStore(client, app.cfg.Profile)

	default:
		store = memory.New()
	}

	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("credential store unreachable: %w", err)
	}

	app.logger.Debug("credential store opened", "driver", app.cfg.CredentialStore)
	return store, nil
}

func (app *Application) Logger() *slog.Logger           { return app.logger }
func (app *Application) Session() *session.Manager      { return app.session }
func (app *Application) Cache() *querycache.Cache       { return app.cache }
func (app *Application) Realtime() *realtime.Conn       { return app.realtime }
func (app *Application) Registry() *prometheus.Registry { return app.registry }

// Start validates any stored session, starts the expiry monitor and, when
// configured, the metrics endpoint.
func (app *Application) Start(ctx context.Context) {
	if app.cfg.MetricsAddr != "" {
		mctx, cancel := context.WithCancel(context.Background())
		app.mu.Lock()
		app.stopHTTP = cancel
		app.mu.Unlock()

		go func() {
			if err := metrics.Serve(mctx, app.cfg.MetricsAddr, app.registry, app.logger); err != nil {
				app.logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	app.session.Init(ctx)
	if app.started.CompareAndSwap(false, true) {
		app.monitor.Start()
	}
}

// Watch keeps the realtime connection up for as long as a session exists.
// Either callback may be nil; both run on the realtime goroutine.
func (app *Application) Watch(onEvent func(realtime.Event, []querycache.Key), onState func(realtime.State)) {
	app.mu.Lock()
	app.onEvent = onEvent
	app.onState = onState
	app.mu.Unlock()

	app.live.Store(true)
	if app.session.State().IsAuthenticated() {
		app.realtime.Start()
	}
}

// Unwatch closes the realtime connection and stops reconnecting it on
// login.
func (app *Application) Unwatch() {
	app.live.Store(false)
	app.realtime.Stop()
}

func (app *Application) handleSession(e session.Event) {
	app.logger.Debug("session event", "event", e.String())

	switch e {
	case session.EventLoggedIn:
		if app.live.Load() {
			app.realtime.Start()
		}
	case session.EventRefreshed:
		// A connection that gave up on a missing token comes back once a
		// token exists again.
		if app.live.Load() && app.realtime.State() == realtime.Disconnected {
			app.realtime.Start()
		}
	case session.EventLoggedOut:
		app.realtime.Stop()
		app.cache.Purge()
	}
}

func (app *Application) handleEvent(ev realtime.Event, keys []querycache.Key) {
	app.mu.RLock()
	fn := app.onEvent
	app.mu.RUnlock()
	if fn != nil {
		fn(ev, keys)
	}
}

func (app *Application) handleState(s realtime.State) {
	app.mu.RLock()
	fn := app.onState
	app.mu.RUnlock()
	if fn != nil {
		fn(s)
	}
}

// Close stops background work and releases the credential store.
func (app *Application) Close() error {
	app.Unwatch()
	if app.started.Load() {
		app.monitor.Stop()
	}

	app.mu.Lock()
	if app.unsub != nil {
		app.unsub()
		app.unsub = nil
	}
	if app.stopHTTP != nil {
		app.stopHTTP()
		app.stopHTTP = nil
	}
	app.mu.Unlock()

	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing credential store", "err", err)
		return err
	}
	return nil
}
