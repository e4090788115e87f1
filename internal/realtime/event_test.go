package realtime_test

import (
	"testing"

	"github.com/aussiebroadwan/pulsarconsole/internal/querycache"
	"github.com/aussiebroadwan/pulsarconsole/internal/realtime"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   realtime.Event
		want []querycache.Key
	}{
		{
			name: "tenants unscoped",
			ev:   realtime.Event{Type: realtime.TenantsUpdated},
			want: []querycache.Key{querycache.TenantList(), querycache.DashboardStats()},
		},
		{
			name: "tenants scoped",
			ev:   realtime.Event{Type: realtime.TenantsUpdated, Data: realtime.EventData{Tenant: "public"}},
			want: []querycache.Key{querycache.TenantList(), querycache.DashboardStats(), querycache.Tenant("public")},
		},
		{
			name: "namespaces unscoped",
			ev:   realtime.Event{Type: realtime.NamespacesUpdated},
			want: []querycache.Key{querycache.AllNamespaces(), querycache.DashboardStats()},
		},
		{
			name: "namespaces of tenant",
			ev:   realtime.Event{Type: realtime.NamespacesUpdated, Data: realtime.EventData{Tenant: "public"}},
			want: []querycache.Key{querycache.Namespaces("public"), querycache.DashboardStats()},
		},
		{
			name: "topics unscoped",
			ev:   realtime.Event{Type: realtime.TopicsUpdated},
			want: []querycache.Key{querycache.AllTopics(), querycache.DashboardStats()},
		},
		{
			name: "topics of tenant only",
			ev:   realtime.Event{Type: realtime.TopicsUpdated, Data: realtime.EventData{Tenant: "public"}},
			want: []querycache.Key{querycache.TenantTopics("public"), querycache.DashboardStats()},
		},
		{
			name: "topics of namespace",
			ev: realtime.Event{Type: realtime.TopicsUpdated, Data: realtime.EventData{
				Tenant: "public", Namespace: "default",
			}},
			want: []querycache.Key{querycache.Topics("public", "default"), querycache.DashboardStats()},
		},
		{
			name: "single topic",
			ev: realtime.Event{Type: realtime.TopicsUpdated, Data: realtime.EventData{
				Tenant: "public", Namespace: "default", Topic: "orders", Action: "deleted",
			}},
			want: []querycache.Key{
				querycache.Topics("public", "default"),
				querycache.Topic("public", "default", "orders"),
				querycache.DashboardStats(),
			},
		},
		{
			name: "audit",
			ev:   realtime.Event{Type: realtime.AuditLogsUpdated},
			want: []querycache.Key{querycache.Audit()},
		},
		{
			name: "notifications",
			ev:   realtime.Event{Type: realtime.NotificationsUpdated},
			want: []querycache.Key{querycache.Notifications()},
		},
		{
			name: "brokers",
			ev:   realtime.Event{Type: realtime.BrokersUpdated},
			want: []querycache.Key{querycache.Brokers()},
		},
		{
			name: "unknown",
			ev:   realtime.Event{Type: "SUBSCRIPTIONS_UPDATED"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, realtime.Keys(tt.ev))
		})
	}
}

func TestApplyMarksCacheStale(t *testing.T) {
	t.Parallel()

	cache, err := querycache.New(0, nil, nil)
	require.NoError(t, err)

	cache.Set(querycache.Topics("public", "default"), 1)
	cache.Set(querycache.Topics("public", "ops"), 2)
	cache.Set(querycache.DashboardStats(), 3)
	cache.Set(querycache.Brokers(), 4)

	realtime.Apply(realtime.Event{
		Type: realtime.TopicsUpdated,
		Data: realtime.EventData{Tenant: "public", Namespace: "default"},
	}, cache)

	stale := func(k querycache.Key) bool {
		_, ok, s := cache.Get(k)
		require.True(t, ok)
		return s
	}

	require.True(t, stale(querycache.Topics("public", "default")))
	require.True(t, stale(querycache.DashboardStats()))
	require.False(t, stale(querycache.Topics("public", "ops")))
	require.False(t, stale(querycache.Brokers()))
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	ev, err := realtime.ParseEvent([]byte(`{"type":"TOPICS_UPDATED","data":{"tenant":"public","namespace":"default","action":"created"}}`))
	require.NoError(t, err)
	require.Equal(t, realtime.TopicsUpdated, ev.Type)
	require.Equal(t, "created", ev.Data.Action)

	_, err = realtime.ParseEvent([]byte(`not json`))
	require.Error(t, err)

	_, err = realtime.ParseEvent([]byte(`{"data":{}}`))
	require.Error(t, err)
}
