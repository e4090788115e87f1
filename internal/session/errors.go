package session

import "errors"

var (
	// ErrNotAuthenticated is returned by calls that need a stored access token.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrNoRefreshToken means a refresh was needed but none is stored. The
	// session has been cleared.
	ErrNoRefreshToken = errors.New("session: no refresh token")

	// ErrRefreshRejected means the backend refused the refresh token. The
	// session has been cleared.
	ErrRefreshRejected = errors.New("session: refresh token rejected")

	// ErrStateMismatch is a callback whose state differs from the one stored
	// at login. It is fatal and must not be retried.
	ErrStateMismatch = errors.New("session: oauth state mismatch")

	// ErrMissingState is a callback without a login in progress.
	ErrMissingState = errors.New("session: no login in progress")
)
