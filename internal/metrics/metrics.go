// Package metrics holds the Prometheus collectors of the console client.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulsarconsole"

// Metrics groups every collector. Build one per registry with New; a nil
// *Metrics is not valid, use Discard in tests.
type Metrics struct {
	// Session metrics
	RefreshTotal *prometheus.CounterVec
	RefreshWaits prometheus.Counter
	Replays      *prometheus.CounterVec
	Logouts      *prometheus.CounterVec

	// Realtime metrics
	RealtimeState      prometheus.Gauge
	RealtimeReconnects prometheus.Counter
	RealtimeEvents     *prometheus.CounterVec

	// Cache metrics
	CacheLookups  *prometheus.CounterVec
	Invalidations *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Refresh calls sent to the backend, by result.",
		}, []string{"result"}),
		RefreshWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_waits_total",
			Help:      "Callers that joined a refresh already in flight instead of starting one.",
		}),
		Replays: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_replays_total",
			Help:      "Requests replayed after an authorization failure, by reason.",
		}, []string{"reason"}),
		Logouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_logouts_total",
			Help:      "Sessions ended locally, by reason.",
		}, []string{"reason"}),

		RealtimeState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_state",
			Help:      "Realtime connection state: 0 disconnected, 1 connecting, 2 connected, 3 reconnecting.",
		}),
		RealtimeReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_reconnects_total",
			Help:      "Reconnect attempts scheduled after an abnormal close.",
		}),
		RealtimeEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Frames received over the realtime connection, by event type.",
		}, []string{"type"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Query cache lookups, by result (hit, miss, stale).",
		}, []string{"result"}),
		Invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Query cache invalidations, by key prefix.",
		}, []string{"prefix"}),
	}
}

// Discard returns collectors registered on a throwaway registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// Serve exposes g on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
