// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Issuance IssuanceConfig
	Upload   UploadConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Journal  JournalConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// IssuanceConfig points at the external invoice issuance service.
type IssuanceConfig struct {
	// BaseURL of the issuance API. Required by serve and issue.
	BaseURL string `env:"ISSUANCE_BASE_URL" envAlt:"FACTURACION_URL"`

	// APIToken is sent as a bearer token when set.
	APIToken string `env:"ISSUANCE_API_TOKEN"`

	// Timeout per request; 0 leaves it to the transport.
	Timeout time.Duration `env:"ISSUANCE_TIMEOUT" default:"0s"`

	// MaxResponseBytes caps the response body read (default: 1MB)
	MaxResponseBytes int64 `env:"ISSUANCE_MAX_RESPONSE_BYTES" default:"1048576"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// AliasesFile is an optional YAML file with extra column aliases.
	AliasesFile string `env:"COLUMN_ALIASES_FILE"`
}

// SessionConfig controls import session lifetime.
type SessionConfig struct {
	// IdleTTL is how long an idle session survives (default: 2h)
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" default:"2h"`

	// SweepInterval is how often idle sessions are collected (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// MaxActiveBatches bounds concurrent background submissions (default: 8)
	MaxActiveBatches int `env:"SESSION_MAX_ACTIVE_BATCHES" default:"8"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for parse and submit endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// JournalConfig configures the optional PostgreSQL attempt journal.
type JournalConfig struct {
	// URL is the PostgreSQL connection string; empty disables the journal.
	URL string `env:"JOURNAL_DATABASE_URL"`

	MaxConns        int           `env:"JOURNAL_MAX_CONNS" default:"4"`
	MinConns        int           `env:"JOURNAL_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"JOURNAL_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"JOURNAL_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a journal database is configured.
func (c *JournalConfig) Enabled() bool { return c.URL != "" }

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
