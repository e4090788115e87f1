package mockapi

import (
	"net/http"

	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
)

// CheckHandler serves POST /rbac/check.
type CheckHandler struct {
	Service *Service
}

func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	var req consoleapi.PermissionCheckRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Action == "" || req.ResourceLevel == "" {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, "action and resource_level are required")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, consoleapi.PermissionCheckResponse{
		Allowed: h.Service.Check(claims, req),
	})
}
