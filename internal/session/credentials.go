package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/internal/credstore"
	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/idx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
)

// Storage keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyExpiresAt    = "token_expires_at"
	KeyUser         = "user"
	KeySessionID    = "session_id"
	KeyOAuthState   = "oauth_state"
)

// ExpiryMargin is how long before the recorded expiry a token already counts
// as expired, so it is refreshed before requests in flight start failing.
const ExpiryMargin = 60 * time.Second

// SecretKeys are the keys worth sealing at rest.
var SecretKeys = []string{KeyAccessToken, KeyRefreshToken, KeyOAuthState}

// Credentials reads and writes the session's stored fields. It holds no
// token state of its own; the KV is the single source of truth.
type Credentials struct {
	kv  credstore.KV
	now func() time.Time
	log *slog.Logger

	// sessionID is cached once loaded; it never changes for a profile.
	sidMu     sync.Mutex
	sessionID string
}

func NewCredentials(kv credstore.KV, now func() time.Time, log *slog.Logger) *Credentials {
	if now == nil {
		now = time.Now
	}
	return &Credentials{kv: kv, now: now, log: log}
}

func (c *Credentials) get(ctx context.Context, key string) (string, error) {
	v, err := c.kv.Get(ctx, key)
	if errors.Is(err, credstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

// AccessToken returns "" when not authenticated.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {
	return c.get(ctx, KeyAccessToken)
}

// RefreshToken returns "" when none is stored.
func (c *Credentials) RefreshToken(ctx context.Context) (string, error) {
	return c.get(ctx, KeyRefreshToken)
}

// ExpiresAt reports the recorded access token expiry.
func (c *Credentials) ExpiresAt(ctx context.Context) (time.Time, bool, error) {
	raw, err := c.get(ctx, KeyExpiresAt)
	if err != nil || raw == "" {
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", KeyExpiresAt, err)
	}
	return time.UnixMilli(ms), true, nil
}

// IsExpired is true when no expiry is recorded, the expiry cannot be read,
// or now >= expiry - ExpiryMargin.
func (c *Credentials) IsExpired(ctx context.Context) bool {
	exp, ok, err := c.ExpiresAt(ctx)
	if err != nil || !ok {
		return true
	}
	return !c.now().Before(exp.Add(-ExpiryMargin))
}

// IsAuthenticated reports whether an access token is stored.
func (c *Credentials) IsAuthenticated(ctx context.Context) bool {
	tok, err := c.AccessToken(ctx)
	return err == nil && tok != ""
}

// Store persists a token pair and its absolute expiry in one write. When the
// backend omits expires_in the access token's exp claim is used.
func (c *Credentials) Store(ctx context.Context, tok consoleapi.TokenResponse) error {
	if tok.AccessToken == "" {
		return errors.New("session: empty access token")
	}

	values := map[string]string{
		KeyAccessToken:  tok.AccessToken,
		KeyRefreshToken: tok.RefreshToken,
	}

	switch {
	case tok.ExpiresIn > 0:
		exp := c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
		values[KeyExpiresAt] = strconv.FormatInt(exp.UnixMilli(), 10)
	default:
		exp, err := jwtx.PeekExpiry(tok.AccessToken)
		if err == nil {
			values[KeyExpiresAt] = strconv.FormatInt(exp.UnixMilli(), 10)
			break
		}
		// No expiry recorded means IsExpired stays true and the next check
		// refreshes.
		c.log.Warn("token response carries no usable expiry", "err", err)
		if err := c.kv.Delete(ctx, KeyExpiresAt); err != nil {
			return fmt.Errorf("store credentials: %w", err)
		}
	}

	if tok.RefreshToken == "" {
		delete(values, KeyRefreshToken)
	}

	if err := c.kv.SetMany(ctx, values); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

// Clear removes tokens, expiry, the cached user and any pending login state.
// The session identifier is kept; see ForgetSessionID. It reports whether a
// token was present.
func (c *Credentials) Clear(ctx context.Context) (bool, error) {
	access, _ := c.AccessToken(ctx)
	refresh, _ := c.RefreshToken(ctx)

	err := c.kv.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyExpiresAt, KeyUser, KeyOAuthState)
	if err != nil {
		return access != "" || refresh != "", fmt.Errorf("clear credentials: %w", err)
	}
	return access != "" || refresh != "", nil
}

// User returns the cached profile, or nil when none is cached.
func (c *Credentials) User(ctx context.Context) (*consoleapi.User, error) {
	raw, err := c.get(ctx, KeyUser)
	if err != nil || raw == "" {
		return nil, err
	}

	var u consoleapi.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &u, nil
}

func (c *Credentials) SetUser(ctx context.Context, u *consoleapi.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, KeyUser, string(raw))
}

// SessionID returns the stable per-profile identifier, creating and
// persisting it on first use.
func (c *Credentials) SessionID(ctx context.Context) (string, error) {
	c.sidMu.Lock()
	defer c.sidMu.Unlock()

	if c.sessionID != "" {
		return c.sessionID, nil
	}

	sid, err := c.get(ctx, KeySessionID)
	if err != nil {
		return "", err
	}
	if sid == "" {
		sid = idx.New().String()
		if err := c.kv.Set(ctx, KeySessionID, sid); err != nil {
			return "", fmt.Errorf("store session id: %w", err)
		}
	}

	c.sessionID = sid
	return sid, nil
}

// ForgetSessionID deletes the stored session identifier so the next call
// to SessionID mints a fresh one.
func (c *Credentials) ForgetSessionID(ctx context.Context) error {
	c.sidMu.Lock()
	defer c.sidMu.Unlock()

	c.sessionID = ""
	if err := c.kv.Delete(ctx, KeySessionID); err != nil {
		return fmt.Errorf("forget session id: %w", err)
	}
	return nil
}

func (c *Credentials) setOAuthState(ctx context.Context, state string) error {
	return c.kv.Set(ctx, KeyOAuthState, state)
}

// takeOAuthState returns the stored state and deletes it.
func (c *Credentials) takeOAuthState(ctx context.Context) (string, error) {
	state, err := c.get(ctx, KeyOAuthState)
	if err != nil {
		return "", err
	}
	if err := c.kv.Delete(ctx, KeyOAuthState); err != nil {
		return "", fmt.Errorf("consume oauth state: %w", err)
	}
	return state, nil
}
