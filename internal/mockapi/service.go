// Package mockapi is an in-process console backend for development and
// tests. It implements every endpoint the session and realtime layers
// consume, issues EdDSA access tokens and rotates refresh tokens on use.
package mockapi

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/cryptox"
	"github.com/aussiebroadwan/pulsarconsole/pkg/idx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrInvalidCode     = errors.New("invalid or expired authorization code")
	ErrStateMismatch   = errors.New("state mismatch")
	ErrInvalidRefresh  = errors.New("invalid refresh token")
	ErrSessionNotFound = errors.New("session not found")
)

const defaultCodeTTL = 5 * time.Minute

// Identity is a user the mock IdP logs in when its provider is chosen.
type Identity struct {
	Provider consoleapi.Provider
	User     consoleapi.User
}

// DefaultIdentities are a global admin and a read-only viewer.
func DefaultIdentities() []Identity {
	return []Identity{
		{
			Provider: consoleapi.Provider{ID: "global", Name: "Mock SSO (admin)", IssuerURL: "http://mock-idp/admin"},
			User: consoleapi.User{
				ID:            "user-admin",
				Email:         "admin@example.com",
				DisplayName:   "Admin",
				IsActive:      true,
				IsGlobalAdmin: true,
			},
		},
		{
			Provider: consoleapi.Provider{ID: "viewer", Name: "Mock SSO (viewer)", IssuerURL: "http://mock-idp/viewer"},
			User: consoleapi.User{
				ID:          "user-viewer",
				Email:       "viewer@example.com",
				DisplayName: "Viewer",
				IsActive:    true,
				Roles:       []consoleapi.Role{{ID: "role-viewer", Name: "viewer"}},
			},
		},
	}
}

type pendingLogin struct {
	state     string
	userID    string
	expiresAt time.Time
}

type refreshRecord struct {
	sessionID string
	expiresAt time.Time
}

type sessionRecord struct {
	info      consoleapi.SessionInfo
	userID    string
	createdAt time.Time
	expiresAt time.Time
}

// Service holds the mock backend's state. Opaque secrets (codes, refresh
// tokens) are kept only as fingerprints.
type Service struct {
	Signer    *jwtx.EdDSASigner
	Issuer    string
	AccessTTL time.Duration
	// RefreshTTL bounds a session's lifetime; rotation does not extend it.
	RefreshTTL   time.Duration
	CodeTTL      time.Duration
	AuthRequired bool
	Now          func() time.Time

	mu         sync.Mutex
	identities []Identity
	pending    map[string]pendingLogin
	refresh    map[string]refreshRecord
	sessions   map[string]*sessionRecord
}

func NewService(signer *jwtx.EdDSASigner, issuer string, identities []Identity) *Service {
	if len(identities) == 0 {
		identities = DefaultIdentities()
	}
	return &Service{
		Signer:       signer,
		Issuer:       issuer,
		AccessTTL:    jwtx.DefaultAccessTokenTTL,
		RefreshTTL:   jwtx.DefaultRefreshTokenTTL,
		CodeTTL:      defaultCodeTTL,
		AuthRequired: true,
		Now:          time.Now,
		identities:   identities,
		pending:      make(map[string]pendingLogin),
		refresh:      make(map[string]refreshRecord),
		sessions:     make(map[string]*sessionRecord),
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) Providers() consoleapi.ProvidersResponse {
	out := consoleapi.ProvidersResponse{AuthRequired: s.AuthRequired}
	for _, id := range s.identities {
		out.Providers = append(out.Providers, id.Provider)
	}
	return out
}

func (s *Service) identity(providerID string) (Identity, bool) {
	for _, id := range s.identities {
		if id.Provider.ID == providerID {
			return id, true
		}
	}
	return Identity{}, false
}

func (s *Service) userByID(userID string) (consoleapi.User, bool) {
	for _, id := range s.identities {
		if id.User.ID == userID {
			return id.User, true
		}
	}
	return consoleapi.User{}, false
}

// StartLogin mints a state and an authorization code. The mock IdP approves
// immediately, so the returned URL is the redirect URI carrying both.
func (s *Service) StartLogin(providerID, redirectURI string) (consoleapi.LoginResponse, error) {
	ident, ok := s.identity(providerID)
	if !ok {
		return consoleapi.LoginResponse{}, ErrUnknownProvider
	}

	target, err := url.Parse(redirectURI)
	if err != nil || redirectURI == "" {
		return consoleapi.LoginResponse{}, fmt.Errorf("invalid redirect uri %q", redirectURI)
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return consoleapi.LoginResponse{}, err
	}
	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return consoleapi.LoginResponse{}, err
	}

	s.mu.Lock()
	s.pending[cryptox.FingerprintToken(code)] = pendingLogin{
		state:     state,
		userID:    ident.User.ID,
		expiresAt: s.now().Add(s.CodeTTL),
	}
	s.mu.Unlock()

	q := target.Query()
	q.Set("code", code)
	q.Set("state", state)
	target.RawQuery = q.Encode()

	return consoleapi.LoginResponse{AuthorizationURL: target.String(), State: state}, nil
}

// ExchangeCode redeems an authorization code once and opens a session.
func (s *Service) ExchangeCode(code, state, ip, userAgent string) (consoleapi.TokenResponse, error) {
	fp := cryptox.FingerprintToken(code)

	s.mu.Lock()
	p, ok := s.pending[fp]
	delete(s.pending, fp)
	s.mu.Unlock()

	if !ok || !s.now().Before(p.expiresAt) {
		return consoleapi.TokenResponse{}, ErrInvalidCode
	}
	if !cryptox.EqualTokens(p.state, state) {
		return consoleapi.TokenResponse{}, ErrStateMismatch
	}

	now := s.now()
	sess := &sessionRecord{
		info: consoleapi.SessionInfo{
			ID:        idx.NewAt(now).String(),
			IPAddress: ip,
			UserAgent: userAgent,
			CreatedAt: now.UTC().Format(time.RFC3339),
			ExpiresAt: now.Add(s.RefreshTTL).UTC().Format(time.RFC3339),
		},
		userID:    p.userID,
		createdAt: now,
		expiresAt: now.Add(s.RefreshTTL),
	}

	s.mu.Lock()
	s.sessions[sess.info.ID] = sess
	s.mu.Unlock()

	return s.issue(sess)
}

// Refresh rotates a refresh token: the presented one is spent whether or
// not the exchange succeeds.
func (s *Service) Refresh(refreshToken string) (consoleapi.TokenResponse, error) {
	fp := cryptox.FingerprintToken(refreshToken)

	s.mu.Lock()
	rec, ok := s.refresh[fp]
	delete(s.refresh, fp)
	sess := s.sessions[rec.sessionID]
	s.mu.Unlock()

	if !ok || sess == nil || !s.now().Before(rec.expiresAt) {
		return consoleapi.TokenResponse{}, ErrInvalidRefresh
	}
	return s.issue(sess)
}

func (s *Service) issue(sess *sessionRecord) (consoleapi.TokenResponse, error) {
	user, ok := s.userByID(sess.userID)
	if !ok {
		return consoleapi.TokenResponse{}, fmt.Errorf("unknown user %q", sess.userID)
	}

	now := s.now()
	claims := jwtx.NewAccessClaims(user.ID, sess.info.ID, user.Email, s.Issuer, user.IsGlobalAdmin, s.AccessTTL, now)
	access, err := s.Signer.Sign(claims)
	if err != nil {
		return consoleapi.TokenResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return consoleapi.TokenResponse{}, err
	}

	s.mu.Lock()
	s.refresh[cryptox.FingerprintToken(refresh)] = refreshRecord{
		sessionID: sess.info.ID,
		expiresAt: sess.expiresAt,
	}
	s.mu.Unlock()

	return consoleapi.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.AccessTTL.Seconds()),
	}, nil
}

// SessionActive reports whether sid names a live session.
func (s *Service) SessionActive(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	return ok && s.now().Before(sess.expiresAt)
}

// Me returns the user behind verified claims.
func (s *Service) Me(c jwtx.Claims) (consoleapi.User, bool) {
	return s.userByID(c.Subject)
}

// EndSession removes a session and every refresh token bound to it.
func (s *Service) EndSession(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endSessionLocked(sid)
}

func (s *Service) endSessionLocked(sid string) bool {
	if _, ok := s.sessions[sid]; !ok {
		return false
	}
	delete(s.sessions, sid)
	for fp, rec := range s.refresh {
		if rec.sessionID == sid {
			delete(s.refresh, fp)
		}
	}
	return true
}

// Sessions lists the user's sessions, oldest first.
func (s *Service) Sessions(userID, currentSID string) []consoleapi.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []consoleapi.SessionInfo
	for _, sess := range s.sessions {
		if sess.userID != userID {
			continue
		}
		info := sess.info
		info.IsCurrent = info.ID == currentSID
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b consoleapi.SessionInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// RevokeSession ends one of the user's sessions.
func (s *Service) RevokeSession(userID, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok || sess.userID != userID {
		return ErrSessionNotFound
	}
	s.endSessionLocked(sid)
	return nil
}

// RevokeOtherSessions ends every session of the user except keepSID and
// returns the revoked ids.
func (s *Service) RevokeOtherSessions(userID, keepSID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var revoked []string
	for sid, sess := range s.sessions {
		if sess.userID == userID && sid != keepSID {
			revoked = append(revoked, sid)
		}
	}
	for _, sid := range revoked {
		s.endSessionLocked(sid)
	}
	return revoked
}

// Check answers a permission query. Global admins may do anything; other
// users with a role may only read.
func (s *Service) Check(c jwtx.Claims, req consoleapi.PermissionCheckRequest) bool {
	if c.GlobalAdmin {
		return true
	}
	user, ok := s.userByID(c.Subject)
	if !ok || len(user.Roles) == 0 {
		return false
	}
	return req.Action == "read"
}

// Sweep drops expired codes, refresh tokens and sessions. It returns how
// many records were removed.
func (s *Service) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for fp, p := range s.pending {
		if !now.Before(p.expiresAt) {
			delete(s.pending, fp)
			n++
		}
	}
	for fp, rec := range s.refresh {
		if !now.Before(rec.expiresAt) {
			delete(s.refresh, fp)
			n++
		}
	}
	for sid, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, sid)
			n++
		}
	}
	return n
}
