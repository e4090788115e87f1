package mockapi

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
)

// HealthResponse is returned by /livez.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
	Clients int    `json:"websocket_clients"`
}

// LivezHandler always answers 200 while the process is serving.
func LivezHandler(startTime time.Time, version string, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Clients: hub.Clients(),
		})
	}
}
