// Package session keeps an authenticated session against the console
// backend: stored credentials, single-flight token refresh shared by every
// request, login and logout, and the in-memory session state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/internal/credstore"
	"github.com/aussiebroadwan/pulsarconsole/internal/metrics"
	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/cryptox"
)

const defaultTimeout = 30 * time.Second

// Options configures a Manager. Store and BaseURL are required.
type Options struct {
	BaseURL string
	Store   credstore.KV

	// Transport is the innermost round tripper; http.DefaultTransport if nil.
	Transport http.RoundTripper
	Timeout   time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Now is the clock used for expiry decisions; time.Now if nil.
	Now func() time.Time
}

// Manager owns the session. It is safe for concurrent use.
type Manager struct {
	creds     *Credentials
	client    *Client
	refresher *Refresher
	notifier  *Notifier
	log       *slog.Logger
	metrics   *metrics.Metrics

	mu    sync.RWMutex
	state State
}

func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "session")

	m := opts.Metrics
	if m == nil {
		m = metrics.Discard()
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	creds := NewCredentials(opts.Store, opts.Now, log)
	notifier := NewNotifier()
	client := &Client{BaseURL: trimBase(opts.BaseURL)}
	refresher := newRefresher(creds, notifier, client.Refresh, log, m)

	client.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &sessionIDTransport{
			creds: creds,
			next: &authTransport{
				creds:     creds,
				refresher: refresher,
				next:      base,
				log:       log,
				metrics:   m,
			},
		},
	}

	mgr := &Manager{
		creds:     creds,
		client:    client,
		refresher: refresher,
		notifier:  notifier,
		log:       log,
		metrics:   m,
		state:     State{IsLoading: true},
	}

	notifier.Subscribe(func(e Event) {
		if e == EventLoggedOut {
			mgr.setUser(nil)
		}
	})

	return mgr
}

func (m *Manager) Credentials() *Credentials { return m.creds }
func (m *Manager) Client() *Client           { return m.client }
func (m *Manager) Refresher() *Refresher     { return m.refresher }

// Subscribe registers fn for session events; see Notifier.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.notifier.Subscribe(fn)
}

// State returns a snapshot of the session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setUser(u *consoleapi.User) {
	m.mu.Lock()
	m.state.User = u
	m.mu.Unlock()
}

// Init loads login providers and validates any stored session. It never
// fails: provider discovery errors mean "no auth required" and any
// validation error clears the stored credentials.
func (m *Manager) Init(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.state.IsLoading = false
		m.mu.Unlock()
	}()

	providers, err := m.client.Providers(ctx)
	if err != nil {
		m.log.Warn("provider discovery failed, assuming auth not required", "err", err)
		providers = consoleapi.ProvidersResponse{}
	}

	m.mu.Lock()
	m.state.Providers = providers.Providers
	m.state.AuthRequired = providers.AuthRequired
	m.mu.Unlock()

	if !m.creds.IsAuthenticated(ctx) {
		return
	}

	if m.creds.IsExpired(ctx) {
		if _, err := m.refresher.Refresh(ctx); err != nil {
			m.log.Info("stored session could not be refreshed", "err", err)
			return
		}
	}

	user, err := m.client.Me(ctx)
	if err != nil {
		m.log.Info("stored session failed validation", "err", err)
		m.refresher.expire(ctx, "validation_failed")
		return
	}

	if err := m.creds.SetUser(ctx, &user); err != nil {
		m.log.Warn("failed to cache user profile", "err", err)
	}
	m.setUser(&user)
	m.notifier.publish(EventLoggedIn)
}

// Login asks the backend for the provider's authorization URL and keeps
// the returned state for the callback. The caller performs the redirect.
func (m *Manager) Login(ctx context.Context, providerID, redirectURI string) (string, error) {
	resp, err := m.client.Login(ctx, consoleapi.LoginRequest{
		EnvironmentID: providerID,
		RedirectURI:   redirectURI,
	})
	if err != nil {
		return "", fmt.Errorf("initiate login: %w", err)
	}
	if resp.State == "" || resp.AuthorizationURL == "" {
		return "", errors.New("initiate login: backend returned no state or authorization url")
	}

	if err := m.creds.setOAuthState(ctx, resp.State); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	return resp.AuthorizationURL, nil
}

// HandleCallback completes a login. The state must match the one stored by
// Login exactly; it is checked before any network call and consumed either
// way.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (*consoleapi.User, error) {
	stored, err := m.creds.takeOAuthState(ctx)
	if err != nil {
		return nil, err
	}
	if stored == "" {
		return nil, ErrMissingState
	}
	if !cryptox.EqualTokens(stored, state) {
		m.log.Warn("oauth state mismatch on callback")
		return nil, ErrStateMismatch
	}

	tok, err := m.client.Callback(ctx, consoleapi.CallbackRequest{Code: code, State: state})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := m.creds.Store(ctx, tok); err != nil {
		return nil, err
	}

	user, err := m.client.Me(ctx)
	if err != nil {
		m.refresher.expire(ctx, "validation_failed")
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := m.creds.SetUser(ctx, &user); err != nil {
		m.log.Warn("failed to cache user profile", "err", err)
	}

	m.setUser(&user)
	m.log.Info("logged in", "user_id", user.ID)
	m.notifier.publish(EventLoggedIn)

	return &user, nil
}

// Logout revokes the session on the backend (best effort) and always
// clears local credentials. An explicit logout also drops the session id.
// Calling it while logged out does nothing.
func (m *Manager) Logout(ctx context.Context) {
	authenticated := m.creds.IsAuthenticated(ctx)
	if authenticated {
		if err := m.client.Logout(ctx); err != nil {
			m.log.Debug("server-side logout failed", "err", err)
		}
	}

	m.refresher.expire(ctx, "logout")
	m.setUser(nil)

	if authenticated {
		if err := m.creds.ForgetSessionID(ctx); err != nil {
			m.log.Warn("failed to forget session id", "err", err)
		}
	}
}

// AccessToken returns a usable access token, refreshing first when the
// stored one is within the expiry margin.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	tok, err := m.creds.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", ErrNotAuthenticated
	}
	if !m.creds.IsExpired(ctx) {
		return tok, nil
	}
	return m.refresher.Refresh(ctx)
}

// CheckPermission asks the backend whether the current user may perform
// action on the resource. Any error counts as denied.
func (m *Manager) CheckPermission(ctx context.Context, action, level, path string) bool {
	allowed, err := m.client.CheckPermission(ctx, consoleapi.PermissionCheckRequest{
		Action:        action,
		ResourceLevel: level,
		ResourcePath:  path,
	})
	if err != nil {
		m.log.Warn("permission check failed, denying", "action", action, "level", level, "path", path, "err", err)
		return false
	}
	return allowed
}

func (m *Manager) requireAuth(ctx context.Context) error {
	if !m.creds.IsAuthenticated(ctx) {
		return ErrNotAuthenticated
	}
	return nil
}

// ListSessions returns every backend session of the current user.
func (m *Manager) ListSessions(ctx context.Context) ([]consoleapi.SessionInfo, error) {
	if err := m.requireAuth(ctx); err != nil {
		return nil, err
	}
	return m.client.Sessions(ctx)
}

// RevokeSession ends one backend session of the current user.
func (m *Manager) RevokeSession(ctx context.Context, id string) error {
	if err := m.requireAuth(ctx); err != nil {
		return err
	}
	return m.client.RevokeSession(ctx, id)
}

// RevokeOtherSessions ends every session except the current one.
func (m *Manager) RevokeOtherSessions(ctx context.Context) (int, error) {
	if err := m.requireAuth(ctx); err != nil {
		return 0, err
	}
	return m.client.RevokeOtherSessions(ctx)
}
