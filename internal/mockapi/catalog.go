package mockapi

import (
	"net/http"
	"slices"
	"sync"

	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
)

// Catalog is the cluster view behind the catalog listing endpoints.
type Catalog struct {
	mu      sync.RWMutex
	topics  map[string]map[string][]string // tenant -> namespace -> topics
	brokers []string
}

func DefaultCatalog() *Catalog {
	return &Catalog{
		topics: map[string]map[string][]string{
			"public": {
				"default": {"orders", "payments"},
				"ops":     {"alerts"},
			},
			"acme": {
				"billing": {"invoices"},
			},
		},
		brokers: []string{"broker-0:8080", "broker-1:8080"},
	}
}

// AddTopic registers a topic, creating its tenant and namespace as needed.
func (c *Catalog) AddTopic(tenant, namespace, topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.topics[tenant] == nil {
		c.topics[tenant] = make(map[string][]string)
	}
	if !slices.Contains(c.topics[tenant][namespace], topic) {
		c.topics[tenant][namespace] = append(c.topics[tenant][namespace], topic)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func writeNames(w http.ResponseWriter, names []string) {
	if names == nil {
		names = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, consoleapi.NameList{Items: names, Total: len(names)})
}

// HandleTenants serves GET /tenants.
func (c *Catalog) HandleTenants(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	writeNames(w, sortedKeys(c.topics))
}

// HandleNamespaces serves GET /tenants/{tenant}/namespaces.
func (c *Catalog) HandleNamespaces(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ns, ok := c.topics[r.PathValue("tenant")]
	if !ok {
		httpx.WriteDetail(w, http.StatusNotFound, "Tenant not found")
		return
	}
	writeNames(w, sortedKeys(ns))
}

// HandleTopics serves GET /tenants/{tenant}/namespaces/{namespace}/topics.
func (c *Catalog) HandleTopics(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	topics, ok := c.topics[r.PathValue("tenant")][r.PathValue("namespace")]
	if !ok {
		httpx.WriteDetail(w, http.StatusNotFound, "Namespace not found")
		return
	}
	out := slices.Clone(topics)
	slices.Sort(out)
	writeNames(w, out)
}

// HandleBrokers serves GET /brokers.
func (c *Catalog) HandleBrokers(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	writeNames(w, slices.Clone(c.brokers))
}
