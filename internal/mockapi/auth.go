package mockapi

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	Service *Service
	Hub     *Hub
}

// HandleProviders serves GET /auth/providers.
func (h *AuthHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Service.Providers())
}

// HandleLogin serves POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req consoleapi.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp, err := h.Service.StartLogin(req.EnvironmentID, req.RedirectURI)
	switch {
	case errors.Is(err, ErrUnknownProvider):
		httpx.WriteDetail(w, http.StatusNotFound, "Provider not found")
		return
	case err != nil:
		httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleCallback serves POST /auth/callback.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req consoleapi.CallbackRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tok, err := h.Service.ExchangeCode(req.Code, req.State, httpx.IPKeyExtractor(r), r.UserAgent())
	switch {
	case errors.Is(err, ErrInvalidCode):
		httpx.WriteDetail(w, http.StatusBadRequest, "Invalid authorization code")
		return
	case errors.Is(err, ErrStateMismatch):
		log.Warn("callback state mismatch")
		httpx.WriteDetail(w, http.StatusBadRequest, "State mismatch")
		return
	case err != nil:
		log.Error("code exchange failed", "err", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "Login failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tok)
}

// HandleRefresh serves POST /auth/refresh.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req consoleapi.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tok, err := h.Service.Refresh(req.RefreshToken)
	if err != nil {
		slogx.FromContext(r.Context()).Info("refresh rejected", "err", err)
		httpx.WriteDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tok)
}

// HandleMe serves GET /auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	user, ok := h.Service.Me(claims)
	if !ok {
		httpx.WriteDetail(w, http.StatusUnauthorized, "User not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

// HandleLogout serves POST /auth/logout. It ends the session behind the
// token and drops its websockets.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	h.Service.EndSession(claims.SID)
	h.Hub.Disconnect(claims.SID)

	httpx.WriteJSON(w, http.StatusOK, consoleapi.MessageResponse{Message: "Logged out successfully"})
}
