package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads every section from the environment, applies tag defaults and
// validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), os.Getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct fills the fields of v tagged with `env`, recursing into
// section structs. `envAlt` names a fallback variable and `default` the
// value used when both are unset.
func loadStruct(v reflect.Value, getenv func(string) string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv, getenv); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		value := getenv(name)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = getenv(alt)
		}
		if value == "" {
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		parsed, err := parseValue(field.Type, value)
		if err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
		fv.Set(parsed)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// parseValue converts an environment string into a value of type typ.
// Slices are comma separated.
func parseValue(typ reflect.Type, value string) (reflect.Value, error) {
	if typ == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid duration: %w", err)
		}
		return reflect.ValueOf(d), nil
	}

	switch typ.Kind() {
	case reflect.String:
		return reflect.ValueOf(value).Convert(typ), nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid integer: %w", err)
		}
		return reflect.ValueOf(n).Convert(typ), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid boolean: %w", err)
		}
		return reflect.ValueOf(b), nil
	case reflect.Slice:
		if typ.Elem().Kind() != reflect.String {
			break
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		return reflect.ValueOf(items), nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported field type: %s", typ)
}

// ErrIssuanceNotConfigured is returned by RequireIssuance when no base URL is set.
var ErrIssuanceNotConfigured = errors.New("ISSUANCE_BASE_URL is required to submit invoices")

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Issuance validation
	if c.Issuance.BaseURL != "" {
		u, err := url.Parse(c.Issuance.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("ISSUANCE_BASE_URL (%q) must be an absolute http(s) URL", c.Issuance.BaseURL))
		}
	}
	if c.Issuance.Timeout < 0 {
		errs = append(errs, "ISSUANCE_TIMEOUT must be non-negative")
	}
	if c.Issuance.MaxResponseBytes <= 0 {
		errs = append(errs, "ISSUANCE_MAX_RESPONSE_BYTES must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}

	// Session validation
	if c.Session.IdleTTL <= 0 {
		errs = append(errs, "SESSION_IDLE_TTL must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, "SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.Session.MaxActiveBatches <= 0 {
		errs = append(errs, "SESSION_MAX_ACTIVE_BATCHES must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.UploadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
	}

	// Journal validation
	if c.Journal.Enabled() {
		if c.Journal.MaxConns <= 0 {
			errs = append(errs, "JOURNAL_MAX_CONNS must be positive")
		}
		if c.Journal.MinConns < 0 {
			errs = append(errs, "JOURNAL_MIN_CONNS must be non-negative")
		}
		if c.Journal.MaxConns < c.Journal.MinConns {
			errs = append(errs, fmt.Sprintf("JOURNAL_MAX_CONNS (%d) must be >= JOURNAL_MIN_CONNS (%d)",
				c.Journal.MaxConns, c.Journal.MinConns))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// RequireIssuance fails when the commands that submit invoices have no
// issuance service to talk to.
func (c *Config) RequireIssuance() error {
	if c.Issuance.BaseURL == "" {
		return ErrIssuanceNotConfigured
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// Tokens and database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Issuance: {BaseURL: %q, APIToken: %s, Timeout: %s}, ",
		c.Issuance.BaseURL, mask(c.Issuance.APIToken), c.Issuance.Timeout))
	b.WriteString(fmt.Sprintf("Upload: {MaxFileSize: %d, AliasesFile: %q}, ",
		c.Upload.MaxFileSize, c.Upload.AliasesFile))
	b.WriteString(fmt.Sprintf("Session: {IdleTTL: %s, MaxActiveBatches: %d}, ",
		c.Session.IdleTTL, c.Session.MaxActiveBatches))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Journal: {URL: %s, MaxConns: %d}, ",
		mask(c.Journal.URL), c.Journal.MaxConns))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}, ",
		c.Logging.Level, c.Logging.Format))
	b.WriteString(fmt.Sprintf("Metrics: {Enabled: %v}", c.Metrics.Enabled))
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
