package consoleapi

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is returned by POST /auth/callback and POST /auth/refresh.
type TokenResponse struct {
	// AccessToken is the short-lived JWT attached to every request
	AccessToken string `json:"access_token"`

	// RefreshToken is exchanged for a new token pair; it rotates on every use
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int `json:"expires_in"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ============================================================================
// Login Types
// ============================================================================

// Provider is an OIDC provider the user can log in with.
type Provider struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IssuerURL string `json:"issuer_url"`
	LoginURL  string `json:"login_url,omitempty"`
}

// ProvidersResponse is returned by GET /auth/providers.
type ProvidersResponse struct {
	Providers    []Provider `json:"providers"`
	AuthRequired bool       `json:"auth_required"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	// EnvironmentID selects the provider, "global" for the global OIDC config
	EnvironmentID string `json:"environment_id"`
	RedirectURI   string `json:"redirect_uri"`
}

// LoginResponse carries the redirect target and the round-trip state value.
type LoginResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// CallbackRequest is the body of POST /auth/callback.
type CallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// ============================================================================
// User Types
// ============================================================================

// Role is a role assigned to a user.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is returned by GET /auth/me.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	IsActive      bool   `json:"is_active"`
	IsGlobalAdmin bool   `json:"is_global_admin"`
	Roles         []Role `json:"roles"`
}

// HasRole reports whether the user holds a role with the given name.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// ============================================================================
// Session Types
// ============================================================================

// SessionInfo describes one backend session of the current user.
type SessionInfo struct {
	ID        string `json:"id"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
	IsCurrent bool   `json:"is_current"`
}

// SessionsResponse is returned by GET /auth/sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// RevokeSessionsResponse is returned by DELETE /auth/sessions.
type RevokeSessionsResponse struct {
	Message      string `json:"message"`
	RevokedCount int    `json:"revoked_count"`
}

// MessageResponse is the generic {"message": ...} acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// RBAC Types
// ============================================================================

// Resource levels understood by POST /rbac/check.
const (
	LevelCluster   = "cluster"
	LevelTenant    = "tenant"
	LevelNamespace = "namespace"
	LevelTopic     = "topic"
)

// PermissionCheckRequest is the body of POST /rbac/check.
type PermissionCheckRequest struct {
	Action        string `json:"action"`
	ResourceLevel string `json:"resource_level"`
	ResourcePath  string `json:"resource_path,omitempty"`
}

// PermissionCheckResponse is returned by POST /rbac/check.
type PermissionCheckResponse struct {
	Allowed bool `json:"allowed"`
}

// ============================================================================
// Catalog Types
// ============================================================================

// NameList is returned by the read-only listing endpoints (tenants,
// namespaces, topics, brokers).
type NameList struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

// EventPublishResponse is returned by POST /dev/events on the mock backend.
type EventPublishResponse struct {
	Delivered int `json:"delivered"`
}
