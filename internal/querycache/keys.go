package querycache

import "strings"

// Key identifies a cached query as an ordered list of segments. A key
// matches every key it is a prefix of.
type Key []string

// String renders the key for logs.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether p is a segment-wise prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

// id is the lookup form; segments may contain '/' (topic names do).
func (k Key) id() string {
	return strings.Join(k, "\x00")
}

// Key builders for the console's queries.

func TenantList() Key                { return Key{"tenants", "list"} }
func Tenant(name string) Key         { return Key{"tenants", "detail", name} }
func AllNamespaces() Key             { return Key{"namespaces"} }
func Namespaces(tenant string) Key   { return Key{"namespaces", tenant} }
func AllTopics() Key                 { return Key{"topics"} }
func TenantTopics(tenant string) Key { return Key{"topics", tenant} }
func Topics(tenant, ns string) Key   { return Key{"topics", tenant, ns} }
func Topic(tenant, ns, t string) Key { return Key{"topic", tenant, ns, t} }
func DashboardStats() Key            { return Key{"dashboard", "stats"} }
func Audit() Key                     { return Key{"audit"} }
func Notifications() Key             { return Key{"notifications"} }
func Brokers() Key                   { return Key{"brokers"} }
