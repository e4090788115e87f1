package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"CONSOLE_API_URL", "CONSOLE_WS_URL", "CONSOLE_CREDENTIAL_STORE",
		"CONSOLE_RECONNECT_DELAY", "CONSOLE_CACHE_SIZE", "CONSOLE_MASTER_KEY",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	require.Equal(t, "http://localhost:8000/api/v1", cfg.APIURL)
	require.Equal(t, "ws://localhost:8000/api/v1/ws", cfg.WSURL)
	require.Equal(t, StoreSQLite, cfg.CredentialStore)
	require.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	require.Equal(t, 512, cfg.CacheSize)
	require.Empty(t, cfg.MasterKey)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CONSOLE_API_URL", "https://console.example.com/api/v1/")
	t.Setenv("CONSOLE_WS_URL", "")
	t.Setenv("CONSOLE_CREDENTIAL_STORE", "redis")
	t.Setenv("CONSOLE_REDIS_DB", "3")
	t.Setenv("CONSOLE_EXPIRY_CHECK_INTERVAL", "15")
	t.Setenv("CONSOLE_RECONNECT_DELAY", "250ms")
	t.Setenv("CONSOLE_CACHE_SIZE", "not-a-number")

	cfg := LoadConfig()
	require.Equal(t, "https://console.example.com/api/v1", cfg.APIURL)
	require.Equal(t, "wss://console.example.com/api/v1/ws", cfg.WSURL)
	require.Equal(t, StoreRedis, cfg.CredentialStore)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, 15*time.Second, cfg.ExpiryCheckInterval)
	require.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
	require.Equal(t, 512, cfg.CacheSize)
}

func TestExplicitWSURLWins(t *testing.T) {
	t.Setenv("CONSOLE_WS_URL", "ws://events.internal:9000/stream")

	cfg := LoadConfig()
	require.Equal(t, "ws://events.internal:9000/stream", cfg.WSURL)
}

func TestDeriveWSURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		api  string
		want string
	}{
		{"http://localhost:8000/api/v1", "ws://localhost:8000/api/v1/ws"},
		{"https://console.example.com/api/v1/", "wss://console.example.com/api/v1/ws"},
		{"http://127.0.0.1:8000", "ws://127.0.0.1:8000/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.api, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, DeriveWSURL(tt.api))
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{APIURL: "http://x", CredentialStore: StoreMemory}, false},
		{"sqlite", Config{APIURL: "http://x", CredentialStore: StoreSQLite, DatabaseFile: "c.db"}, false},
		{"sqlite without file", Config{APIURL: "http://x", CredentialStore: StoreSQLite}, true},
		{"redis without addr", Config{APIURL: "http://x", CredentialStore: StoreRedis}, true},
		{"unknown store", Config{APIURL: "http://x", CredentialStore: "etcd"}, true},
		{"no api url", Config{CredentialStore: StoreMemory}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadMockConfig(t *testing.T) {
	t.Setenv("MOCK_PORT", "9100")
	t.Setenv("MOCK_AUTH_DISABLED", "true")
	t.Setenv("MOCK_ACCESS_TTL", "2m")
	t.Setenv("MOCK_RATE_LIMIT_AUTH_REQUESTS", "")

	cfg := LoadMockConfig()
	require.Equal(t, 9100, cfg.Port)
	require.True(t, cfg.AuthDisabled)
	require.Equal(t, 2*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	require.Positive(t, cfg.AuthLimit.RequestsPerWindow)
}
