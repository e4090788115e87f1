package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aussiebroadwan/pulsarconsole/internal/metrics"
	"github.com/aussiebroadwan/pulsarconsole/internal/mockapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
)

// MockApplication serves the in-process mock console backend.
type MockApplication struct {
	cfg    MockConfig
	logger *slog.Logger

	router      *mockapi.Router
	housekeeper *mockapi.Housekeeper
	server      *http.Server

	registry    *prometheus.Registry
	stopMetrics context.CancelFunc
}

// NewMock creates the mock backend with a fresh signing key.
func NewMock(cfg MockConfig) (*MockApplication, error) {
	app := &MockApplication{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "mockconsole",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		registry: prometheus.NewRegistry(),
	}

	router, err := mockapi.New(mockapi.Options{
		Issuer:       cfg.Issuer,
		AccessTTL:    cfg.AccessTTL,
		RefreshTTL:   cfg.RefreshTTL,
		AuthDisabled: cfg.AuthDisabled,
		Limits:       mockapi.Limits{Auth: cfg.AuthLimit, API: cfg.APILimit},
		Version:      BuildVersion,
		Logger:       app.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mock backend: %w", err)
	}
	app.router = router

	app.housekeeper = mockapi.NewHousekeeper(router.Service, app.logger, cfg.HousekeepingInterval)

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "pulsarconsole_mock",
			Name:      "ws_clients",
			Help:      "Realtime clients currently connected.",
		}, func() float64 { return float64(router.Hub.Clients()) }),
	)

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return app, nil
}

func (app *MockApplication) Router() *mockapi.Router { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *MockApplication) Run() error {
	app.housekeeper.Start()

	if app.cfg.MetricsAddr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		app.stopMetrics = cancel
		go func() {
			if err := metrics.Serve(ctx, app.cfg.MetricsAddr, app.registry, app.logger); err != nil {
				app.logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	app.logger.Info("mock console backend starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application. Websocket clients see a
// going-away close and reconnect elsewhere.
func (app *MockApplication) Shutdown() error {
	app.logger.Info("shutting down mock console backend...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Hijacked websocket connections are not tracked by the server.
	app.router.Hub.Close()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeper.Stop()

	if app.stopMetrics != nil {
		app.stopMetrics()
	}

	app.logger.Info("mock console backend stopped")
	return nil
}
