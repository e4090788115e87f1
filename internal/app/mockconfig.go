package app

import (
	"time"

	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
)

type MockConfig struct {
	Port                 int           // HTTP port (default: 8000)
	Issuer               string        // Token issuer (default: pulsarconsole-mock)
	AccessTTL            time.Duration // Access token lifetime (default: 15m)
	RefreshTTL           time.Duration // Session lifetime (default: 7d)
	AuthDisabled         bool          // Report auth_required=false
	AuthLimit            httpx.RateLimitConfig
	APILimit             httpx.RateLimitConfig
	HousekeepingInterval time.Duration // Sweep period for expired records (default: 1h)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	MetricsAddr          string        // Optional: serve /metrics on this address

	Env       string
	LogLevel  string
	LogFormat string
}

func LoadMockConfig() MockConfig {
	return MockConfig{
		Port:                 getEnvIntOrDefault("MOCK_PORT", 8000),
		Issuer:               getEnvOrDefault("MOCK_ISSUER", "pulsarconsole-mock"),
		AccessTTL:            getEnvDurationOrDefault("MOCK_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:           getEnvDurationOrDefault("MOCK_REFRESH_TTL", 7*24*time.Hour),
		AuthDisabled:         getEnvBoolOrDefault("MOCK_AUTH_DISABLED", false),
		AuthLimit:            httpx.ParseRateLimitFromEnv("MOCK_RATE_LIMIT_AUTH", httpx.AuthLimit),
		APILimit:             httpx.ParseRateLimitFromEnv("MOCK_RATE_LIMIT_API", httpx.APILimit),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		MetricsAddr:          getEnvOrDefault("MOCK_METRICS_ADDR", ""),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
	}
}
