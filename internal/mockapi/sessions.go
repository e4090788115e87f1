package mockapi

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
)

// SessionsHandler serves /auth/sessions.
type SessionsHandler struct {
	Service *Service
	Hub     *Hub
}

// HandleList serves GET /auth/sessions.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	sessions := h.Service.Sessions(claims.Subject, claims.SID)
	if sessions == nil {
		sessions = []consoleapi.SessionInfo{}
	}
	httpx.WriteJSON(w, http.StatusOK, consoleapi.SessionsResponse{Sessions: sessions})
}

// HandleRevokeOthers serves DELETE /auth/sessions.
func (h *SessionsHandler) HandleRevokeOthers(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	revoked := h.Service.RevokeOtherSessions(claims.Subject, claims.SID)
	for _, sid := range revoked {
		h.Hub.Disconnect(sid)
	}

	httpx.WriteJSON(w, http.StatusOK, consoleapi.RevokeSessionsResponse{
		Message:      "Other sessions revoked",
		RevokedCount: len(revoked),
	})
}

// HandleRevoke serves DELETE /auth/sessions/{id}.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())
	sid := r.PathValue("id")

	if err := h.Service.RevokeSession(claims.Subject, sid); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			httpx.WriteDetail(w, http.StatusNotFound, "Session not found")
			return
		}
		httpx.WriteDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Hub.Disconnect(sid)

	httpx.WriteJSON(w, http.StatusOK, consoleapi.MessageResponse{Message: "Session revoked"})
}
