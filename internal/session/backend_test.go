package session_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/internal/credstore/drivers/memory"
	"github.com/aussiebroadwan/pulsarconsole/internal/metrics"
	"github.com/aussiebroadwan/pulsarconsole/internal/session"
	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a scripted console backend. Access tokens are valid while
// present in access; refresh tokens rotate on every use.
type fakeBackend struct {
	srv *httptest.Server

	mu         sync.Mutex
	access     map[string]bool
	refresh    map[string]bool
	generation int
	sessionIDs []string
	dataTokens []string

	// refreshGate, when set, blocks the refresh handler until closed.
	refreshGate chan struct{}
	// refreshStatus, when non-zero, fails every refresh with that status.
	refreshStatus int
	// providersStatus, when non-zero, fails provider discovery.
	providersStatus int
	// rbacStatus, when non-zero, fails permission checks.
	rbacStatus int
	// onData runs before /data is answered, with the bearer token used.
	onData func(token string)

	refreshCalls  atomic.Int32
	callbackCalls atomic.Int32
	logoutCalls   atomic.Int32
	unauthorized  atomic.Int32
	always401     atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		access:  make(map[string]bool),
		refresh: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("GET /auth/me", b.authed(func(w http.ResponseWriter, r *http.Request, _ string) {
		httpx.WriteJSON(w, http.StatusOK, consoleapi.User{
			ID:    "u1",
			Email: "ops@example.com",
			Roles: []consoleapi.Role{{ID: "r1", Name: "operator"}},
		})
	}))
	mux.HandleFunc("GET /auth/providers", func(w http.ResponseWriter, r *http.Request) {
		if b.providersStatus != 0 {
			httpx.WriteDetail(w, b.providersStatus, "boom")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, consoleapi.ProvidersResponse{
			Providers:    []consoleapi.Provider{{ID: "global", Name: "Keycloak"}},
			AuthRequired: true,
		})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, consoleapi.LoginResponse{
			AuthorizationURL: "https://idp.example.com/authorize?state=state-xyz",
			State:            "state-xyz",
		})
	})
	mux.HandleFunc("POST /auth/callback", func(w http.ResponseWriter, r *http.Request) {
		b.callbackCalls.Add(1)
		httpx.WriteJSON(w, http.StatusOK, b.issue())
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.logoutCalls.Add(1)
		httpx.WriteJSON(w, http.StatusOK, consoleapi.MessageResponse{Message: "Logged out successfully"})
	})
	mux.HandleFunc("POST /rbac/check", b.authed(func(w http.ResponseWriter, r *http.Request, _ string) {
		if b.rbacStatus != 0 {
			httpx.WriteDetail(w, b.rbacStatus, "boom")
			return
		}
		var req consoleapi.PermissionCheckRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		httpx.WriteJSON(w, http.StatusOK, consoleapi.PermissionCheckResponse{Allowed: req.Action == "read"})
	}))
	mux.HandleFunc("GET /auth/sessions", b.authed(func(w http.ResponseWriter, r *http.Request, _ string) {
		httpx.WriteJSON(w, http.StatusOK, consoleapi.SessionsResponse{
			Sessions: []consoleapi.SessionInfo{{ID: "s1", IsCurrent: true}, {ID: "s2"}},
		})
	}))
	mux.HandleFunc("DELETE /auth/sessions", b.authed(func(w http.ResponseWriter, r *http.Request, _ string) {
		httpx.WriteJSON(w, http.StatusOK, consoleapi.RevokeSessionsResponse{RevokedCount: 1})
	}))
	mux.HandleFunc("GET /data", b.authed(func(w http.ResponseWriter, r *http.Request, token string) {
		b.mu.Lock()
		b.dataTokens = append(b.dataTokens, token)
		b.mu.Unlock()
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
	}))
	mux.HandleFunc("POST /echo", b.authed(func(w http.ResponseWriter, r *http.Request, _ string) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.Copy(w, r.Body)
	}))
	mux.HandleFunc("GET /always401", func(w http.ResponseWriter, r *http.Request) {
		b.always401.Add(1)
		httpx.WriteDetail(w, http.StatusUnauthorized, "Invalid or expired token")
	})

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.sessionIDs = append(b.sessionIDs, r.Header.Get(httpx.SessionIDHeader))
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)

	return b
}

// issue mints and registers a new token pair.
func (b *fakeBackend) issue() consoleapi.TokenResponse {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.generation++
	tok := consoleapi.TokenResponse{
		AccessToken:  fmt.Sprintf("access-%d", b.generation),
		RefreshToken: fmt.Sprintf("refresh-%d", b.generation),
		TokenType:    "bearer",
		ExpiresIn:    900,
	}
	b.access[tok.AccessToken] = true
	b.refresh[tok.RefreshToken] = true
	return tok
}

// grant registers a refresh token the client can later use.
func (b *fakeBackend) grant(refreshToken string) {
	b.mu.Lock()
	b.refresh[refreshToken] = true
	b.mu.Unlock()
}

func (b *fakeBackend) authed(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := httpx.BearerToken(r)

		if b.onData != nil && r.URL.Path == "/data" {
			b.onData(token)
		}

		b.mu.Lock()
		ok := b.access[token]
		b.mu.Unlock()

		if !ok {
			b.unauthorized.Add(1)
			httpx.WriteDetail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h(w, r, token)
	}
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	if b.refreshGate != nil {
		<-b.refreshGate
	}
	if b.refreshStatus != 0 {
		httpx.WriteDetail(w, b.refreshStatus, "Invalid refresh token")
		return
	}

	var req consoleapi.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, "bad body")
		return
	}

	b.mu.Lock()
	ok := b.refresh[req.RefreshToken]
	delete(b.refresh, req.RefreshToken)
	b.mu.Unlock()

	if !ok {
		httpx.WriteDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b.issue())
}

// testClock is a settable clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	backend *fakeBackend
	store   *memory.Store
	clock   *testClock
	metrics *metrics.Metrics
	mgr     *session.Manager

	mu     sync.Mutex
	events []session.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		backend: newFakeBackend(t),
		store:   memory.New(),
		clock:   newTestClock(),
		metrics: metrics.Discard(),
	}

	h.mgr = session.NewManager(session.Options{
		BaseURL: h.backend.srv.URL,
		Store:   h.store,
		Logger:  slogx.Discard(),
		Metrics: h.metrics,
		Now:     h.clock.Now,
		Timeout: 5 * time.Second,
	})

	h.mgr.Subscribe(func(e session.Event) {
		h.mu.Lock()
		h.events = append(h.events, e)
		h.mu.Unlock()
	})

	return h
}

func (h *harness) count(e session.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, got := range h.events {
		if got == e {
			n++
		}
	}
	return n
}

// seed stores tokens directly, bypassing the backend. A zero expiry stores
// none.
func (h *harness) seed(t *testing.T, access, refresh string, expiresAt time.Time) {
	t.Helper()
	ctx := t.Context()

	values := map[string]string{session.KeyAccessToken: access}
	if refresh != "" {
		values[session.KeyRefreshToken] = refresh
	}
	if !expiresAt.IsZero() {
		values[session.KeyExpiresAt] = fmt.Sprint(expiresAt.UnixMilli())
	}
	require.NoError(t, h.store.SetMany(ctx, values))
}

// login runs a full login round trip against the backend.
func (h *harness) login(t *testing.T) {
	t.Helper()
	ctx := t.Context()

	_, err := h.mgr.Login(ctx, "global", "http://localhost/callback")
	require.NoError(t, err)
	_, err = h.mgr.HandleCallback(ctx, "code-1", "state-xyz")
	require.NoError(t, err)
}
