package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Credential store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	APIURL string // Console API base URL (default: http://localhost:8000/api/v1)
	WSURL  string // Websocket endpoint (default: derived from APIURL + /ws)

	CredentialStore string // sqlite, redis or memory (default: sqlite)
	DatabaseFile    string // SQLite file for the sqlite store (default: ~/.pulsarconsole/credentials.db)
	RedisAddr       string // Redis address for the redis store (default: localhost:6379)
	RedisPassword   string // Optional
	RedisDB         int    // Redis database number (default: 0)
	Profile         string // Namespace for stored credentials in shared stores (default: default)
	MasterKey       string // Optional: seals tokens at rest when set

	ExpiryCheckInterval time.Duration // Proactive refresh check period (default: 60s)
	ReconnectDelay      time.Duration // Realtime reconnect delay (default: 5s)
	HTTPTimeout         time.Duration // Per-request timeout (default: 30s)
	CacheSize           int           // Query cache entries (default: 512)
	MetricsAddr         string        // Optional: serve /metrics on this address

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	cfg := Config{
		APIURL:              strings.TrimRight(getEnvOrDefault("CONSOLE_API_URL", "http://localhost:8000/api/v1"), "/"),
		WSURL:               os.Getenv("CONSOLE_WS_URL"),
		CredentialStore:     getEnvOrDefault("CONSOLE_CREDENTIAL_STORE", StoreSQLite),
		DatabaseFile:        getEnvOrDefault("CONSOLE_DATABASE_FILE", defaultDatabaseFile()),
		RedisAddr:           getEnvOrDefault("CONSOLE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("CONSOLE_REDIS_PASSWORD"),
		RedisDB:             getEnvIntOrDefault("CONSOLE_REDIS_DB", 0),
		Profile:             getEnvOrDefault("CONSOLE_PROFILE", "default"),
		MasterKey:           os.Getenv("CONSOLE_MASTER_KEY"),
		ExpiryCheckInterval: getEnvDurationOrDefault("CONSOLE_EXPIRY_CHECK_INTERVAL", 60*time.Second),
		ReconnectDelay:      getEnvDurationOrDefault("CONSOLE_RECONNECT_DELAY", 5*time.Second),
		HTTPTimeout:         getEnvDurationOrDefault("HTTP_TIMEOUT", 30*time.Second),
		CacheSize:           getEnvIntOrDefault("CONSOLE_CACHE_SIZE", 512),
		MetricsAddr:         os.Getenv("CONSOLE_METRICS_ADDR"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
	}

	if cfg.WSURL == "" {
		cfg.WSURL = DeriveWSURL(cfg.APIURL)
	}

	return cfg
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	switch c.CredentialStore {
	case StoreSQLite:
		if c.DatabaseFile == "" {
			return fmt.Errorf("database file is required for the sqlite store")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown credential store %q (want sqlite, redis or memory)", c.CredentialStore)
	}
	return nil
}

// DeriveWSURL maps http(s)://host/base to ws(s)://host/base/ws.
func DeriveWSURL(apiURL string) string {
	u := strings.TrimRight(apiURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func defaultDatabaseFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.db"
	}
	return filepath.Join(home, ".pulsarconsole", "credentials.db")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
