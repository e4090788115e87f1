package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/pulsarconsole/internal/metrics"
	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/cryptox"
)

// refreshFunc exchanges a refresh token for a new token pair.
type refreshFunc func(ctx context.Context, refreshToken string) (consoleapi.TokenResponse, error)

// refreshCall is one refresh in flight. done is closed exactly once, after
// token and err are set.
type refreshCall struct {
	done    chan struct{}
	token   string
	err     error
	waiters int
}

// Refresher guarantees at most one refresh call is in flight. Every caller
// that arrives while one is running waits for it and gets the same outcome.
type Refresher struct {
	creds    *Credentials
	notifier *Notifier
	exchange refreshFunc
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu   sync.Mutex
	call *refreshCall
}

func newRefresher(creds *Credentials, n *Notifier, exchange refreshFunc, log *slog.Logger, m *metrics.Metrics) *Refresher {
	return &Refresher{creds: creds, notifier: n, exchange: exchange, log: log, metrics: m}
}

// Refresh returns a fresh access token, starting a refresh or joining the
// one in flight. The network call is detached from ctx: a caller giving up
// does not abort the refresh for the others.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	r.mu.Lock()
	if c := r.call; c != nil {
		c.waiters++
		r.mu.Unlock()
		r.metrics.RefreshWaits.Inc()
		return r.wait(ctx, c)
	}

	c := &refreshCall{done: make(chan struct{})}
	r.call = c
	r.mu.Unlock()

	go r.run(context.WithoutCancel(ctx), c)
	return r.wait(ctx, c)
}

// InFlight reports whether a refresh is running.
func (r *Refresher) InFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.call != nil
}

func (r *Refresher) wait(ctx context.Context, c *refreshCall) (string, error) {
	select {
	case <-c.done:
		return c.token, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Refresher) run(ctx context.Context, c *refreshCall) {
	token, err := r.refresh(ctx)

	r.mu.Lock()
	c.token, c.err = token, err
	r.call = nil
	waiters := c.waiters
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("token refresh failed", "err", err, "waiters", waiters)
	} else {
		r.log.Debug("token refreshed", "token", cryptox.FingerprintToken(token), "waiters", waiters)
	}

	close(c.done)

	if err == nil {
		r.notifier.publish(EventRefreshed)
	}
}

// refresh does the exchange and, on any failure, ends the session before
// the outcome is handed to waiters.
func (r *Refresher) refresh(ctx context.Context) (string, error) {
	rt, err := r.creds.RefreshToken(ctx)
	if err != nil {
		r.expire(ctx, "storage_error")
		return "", err
	}
	if rt == "" {
		r.expire(ctx, "no_refresh_token")
		return "", ErrNoRefreshToken
	}

	tok, err := r.exchange(ctx, rt)
	if err != nil {
		r.metrics.RefreshTotal.WithLabelValues("failure").Inc()
		r.expire(ctx, "refresh_failed")

		var apiErr *consoleapi.APIError
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			return "", fmt.Errorf("%w: %s", ErrRefreshRejected, apiErr.Detail)
		}
		return "", fmt.Errorf("refresh token: %w", err)
	}

	if err := r.creds.Store(ctx, tok); err != nil {
		r.metrics.RefreshTotal.WithLabelValues("failure").Inc()
		r.expire(ctx, "storage_error")
		return "", err
	}

	r.metrics.RefreshTotal.WithLabelValues("success").Inc()
	return tok.AccessToken, nil
}

// expire clears stored credentials and broadcasts a logout if a session
// existed. Safe to call repeatedly.
func (r *Refresher) expire(ctx context.Context, reason string) {
	had, err := r.creds.Clear(ctx)
	if err != nil {
		r.log.Error("failed to clear credentials", "err", err)
	}
	if !had {
		return
	}

	r.log.Info("session ended", "reason", reason)
	r.metrics.Logouts.WithLabelValues(reason).Inc()
	r.notifier.publish(EventLoggedOut)
}
