package session

import "github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"

// State is the in-memory view of the session.
type State struct {
	User         *consoleapi.User
	IsLoading    bool
	AuthRequired bool
	Providers    []consoleapi.Provider
}

// IsAuthenticated reports whether a validated user is loaded.
func (s State) IsAuthenticated() bool { return s.User != nil }

// HasAccess is true when the backend does not require authentication, or
// the user is a global admin or holds at least one role.
func (s State) HasAccess() bool {
	if !s.AuthRequired {
		return true
	}
	return s.User != nil && (s.User.IsGlobalAdmin || len(s.User.Roles) > 0)
}
