package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultExpiryCheckInterval is how often the monitor re-evaluates expiry.
const DefaultExpiryCheckInterval = 60 * time.Second

// ExpiryMonitor proactively refreshes the access token while a session is
// authenticated. It shares the Refresher with the request path, so the two
// never race into parallel refresh calls.
type ExpiryMonitor struct {
	creds     *Credentials
	refresher *Refresher
	Logger    *slog.Logger
	Interval  time.Duration

	// Internal channels for lifecycle management
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewExpiryMonitor creates a monitor. If interval is 0 or negative it
// defaults to DefaultExpiryCheckInterval.
func (m *Manager) NewExpiryMonitor(interval time.Duration) *ExpiryMonitor {
	if interval <= 0 {
		interval = DefaultExpiryCheckInterval
	}

	return &ExpiryMonitor{
		creds:     m.creds,
		refresher: m.refresher,
		Logger:    m.log,
		Interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background loop. Call Stop to shut it down.
func (e *ExpiryMonitor) Start() {
	go e.run()
	e.Logger.Debug("expiry monitor started", "interval", e.Interval)
}

// Stop shuts the loop down and waits for an in-progress check to finish.
// Safe to call more than once.
func (e *ExpiryMonitor) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		<-e.doneCh
		e.Logger.Debug("expiry monitor stopped")
	})
}

func (e *ExpiryMonitor) run() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Check(context.Background())
		case <-e.stopCh:
			return
		}
	}
}

// Check runs one evaluation: refresh if authenticated and expired. It
// reports whether a refresh was attempted.
func (e *ExpiryMonitor) Check(ctx context.Context) bool {
	if !e.creds.IsAuthenticated(ctx) || !e.creds.IsExpired(ctx) {
		return false
	}

	if _, err := e.refresher.Refresh(ctx); err != nil {
		e.Logger.Warn("proactive refresh failed", "err", err)
	}
	return true
}
