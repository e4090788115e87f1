package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/pulsarconsole/internal/querycache"
)

// Event types pushed by the backend.
const (
	TenantsUpdated       = "TENANTS_UPDATED"
	NamespacesUpdated    = "NAMESPACES_UPDATED"
	TopicsUpdated        = "TOPICS_UPDATED"
	AuditLogsUpdated     = "AUDIT_LOGS_UPDATED"
	NotificationsUpdated = "NOTIFICATIONS_UPDATED"
	BrokersUpdated       = "BROKERS_UPDATED"
)

// Event is one server-pushed change notification.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`

	// Message is only set on ERROR frames.
	Message string `json:"message,omitempty"`
}

// EventData scopes an event. Empty fields mean "unscoped".
type EventData struct {
	Tenant    string `json:"tenant,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Action    string `json:"action,omitempty"`
}

// Invalidator marks cached queries stale.
type Invalidator interface {
	Invalidate(prefix querycache.Key) int
}

// ParseEvent decodes a text frame. Frames without a type are rejected.
func ParseEvent(frame []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return ev, nil
}

// Keys returns the cache prefixes an event makes stale. Unknown types
// return nil.
func Keys(ev Event) []querycache.Key {
	d := ev.Data

	switch ev.Type {
	case TenantsUpdated:
		keys := []querycache.Key{querycache.TenantList(), querycache.DashboardStats()}
		if d.Tenant != "" {
			keys = append(keys, querycache.Tenant(d.Tenant))
		}
		return keys

	case NamespacesUpdated:
		ns := querycache.AllNamespaces()
		if d.Tenant != "" {
			ns = querycache.Namespaces(d.Tenant)
		}
		return []querycache.Key{ns, querycache.DashboardStats()}

	case TopicsUpdated:
		var topics querycache.Key
		switch {
		case d.Tenant != "" && d.Namespace != "":
			topics = querycache.Topics(d.Tenant, d.Namespace)
		case d.Tenant != "":
			topics = querycache.TenantTopics(d.Tenant)
		default:
			topics = querycache.AllTopics()
		}
		keys := []querycache.Key{topics}
		if d.Topic != "" {
			keys = append(keys, querycache.Topic(d.Tenant, d.Namespace, d.Topic))
		}
		return append(keys, querycache.DashboardStats())

	case AuditLogsUpdated:
		return []querycache.Key{querycache.Audit()}

	case NotificationsUpdated:
		return []querycache.Key{querycache.Notifications()}

	case BrokersUpdated:
		return []querycache.Key{querycache.Brokers()}
	}

	return nil
}

// Apply invalidates every key ev maps to and returns them.
func Apply(ev Event, inv Invalidator) []querycache.Key {
	keys := Keys(ev)
	if inv == nil {
		return keys
	}
	for _, k := range keys {
		inv.Invalidate(k)
	}
	return keys
}
