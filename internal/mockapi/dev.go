package mockapi

import (
	"net/http"

	"github.com/aussiebroadwan/pulsarconsole/internal/realtime"
	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
)

// EventsHandler serves POST /dev/events: the body is broadcast as-is to
// every websocket. A TOPICS_UPDATED event naming a full topic with action
// "created" also adds it to the catalog.
type EventsHandler struct {
	Hub     *Hub
	Catalog *Catalog
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var ev realtime.Event
	if err := httpx.DecodeJSON(w, r, &ev); err != nil {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if ev.Type == "" {
		httpx.WriteDetail(w, http.StatusUnprocessableEntity, "type is required")
		return
	}

	d := ev.Data
	if ev.Type == realtime.TopicsUpdated && d.Action == "created" && d.Tenant != "" && d.Namespace != "" && d.Topic != "" {
		h.Catalog.AddTopic(d.Tenant, d.Namespace, d.Topic)
	}

	n := h.Hub.Broadcast(ev)
	slogx.FromContext(r.Context()).Info("event published", "type", ev.Type, "delivered", n)

	httpx.WriteJSON(w, http.StatusAccepted, consoleapi.EventPublishResponse{Delivered: n})
}
