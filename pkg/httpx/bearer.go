package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
)

// BearerToken extracts the token from an "Authorization: Bearer" header.
// Returns "" when the header is missing or uses another scheme.
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
}

// BearerAuth rejects requests without a valid access token and stores the
// verified claims in the request context.
func BearerAuth(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				writeBearerError(w, "Not authenticated")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("bearer token rejected", "err", err)
				writeBearerError(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireGlobalAdmin must run after BearerAuth.
func RequireGlobalAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := ClaimsFromContext(r.Context())
			if !ok || !c.GlobalAdmin {
				WriteDetail(w, http.StatusForbidden, "Global admin required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RFC 6750 style challenge with the backend's {"detail": ...} body.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	WriteDetail(w, http.StatusUnauthorized, desc)
}
