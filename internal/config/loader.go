package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/dropzone/internal/core"
)

// LookupFunc resolves an environment variable name to its value.
type LookupFunc func(name string) string

// Load reads configuration from the process environment, applies defaults,
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom is Load with a custom variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct populates tagged fields of v, recursing into nested structs.
func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal, lookup); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := lookup(envName)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = lookup(alt)
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setField parses value into field according to its kind.
func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var result []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}

	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	// Upload endpoint
	if u, err := url.Parse(c.Upload.Endpoint); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("UPLOAD_ENDPOINT (%q) must be an absolute http(s) URL", c.Upload.Endpoint))
	}
	if strings.TrimSpace(c.Upload.FieldName) == "" {
		errs = append(errs, "UPLOAD_FIELD_NAME must not be empty")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}
	if c.Upload.MaxAttempts <= 0 {
		errs = append(errs, "UPLOAD_MAX_ATTEMPTS must be positive")
	}
	if c.Upload.RetryBaseDelay < 0 || c.Upload.RetryMaxDelay < 0 {
		errs = append(errs, "UPLOAD_RETRY_BASE_DELAY and UPLOAD_RETRY_MAX_DELAY must be non-negative")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}

	// Size policy
	if c.Limits.ImageMaxBytes <= 0 {
		errs = append(errs, "LIMIT_IMAGE_BYTES must be positive")
	}
	if c.Limits.PDFMaxBytes <= 0 {
		errs = append(errs, "LIMIT_PDF_BYTES must be positive")
	}
	if c.Limits.DocumentMaxBytes <= 0 {
		errs = append(errs, "LIMIT_DOCUMENT_BYTES must be positive")
	}
	for _, t := range c.Limits.AllowedImageTypes {
		if !strings.HasPrefix(strings.ToLower(t), "image/") {
			errs = append(errs, fmt.Sprintf("ALLOWED_IMAGE_TYPES entry %q is not an image/* type", t))
		}
	}

	// Ingest
	if c.Ingest.DropConcurrency <= 0 {
		errs = append(errs, "INGEST_DROP_CONCURRENCY must be positive")
	}
	if c.Ingest.StreamBuffer <= 0 {
		errs = append(errs, "INGEST_STREAM_BUFFER must be positive")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "SERVER_RATE_LIMIT must be non-negative")
	}
	if c.Server.MaxRequestBytes <= 0 {
		errs = append(errs, "SERVER_MAX_REQUEST_BYTES must be positive")
	}

	// Logging
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

// SizePolicy converts the limits section into the core policy.
func (c *Config) SizePolicy() core.SizePolicy {
	return core.SizePolicy{
		Image:    c.Limits.ImageMaxBytes,
		PDF:      c.Limits.PDFMaxBytes,
		Document: c.Limits.DocumentMaxBytes,
	}
}

// RetryPolicy converts the upload section into the core retry policy.
func (c *Config) RetryPolicy() core.RetryPolicy {
	p := core.DefaultRetryPolicy()
	p.MaxAttempts = c.Upload.MaxAttempts
	p.BaseDelay = c.Upload.RetryBaseDelay
	p.MaxDelay = c.Upload.RetryMaxDelay
	return p
}

// String returns a loggable summary. The endpoint's credentials and query are masked.
func (c *Config) String() string {
	endpoint := "[INVALID]"
	if u, err := url.Parse(c.Upload.Endpoint); err == nil {
		endpoint = u.Scheme + "://" + u.Host + u.Path
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Upload: {Endpoint: %q, Timeout: %s, MaxAttempts: %d, MaxConcurrent: %d}, ",
		endpoint, c.Upload.Timeout, c.Upload.MaxAttempts, c.Upload.MaxConcurrent)
	fmt.Fprintf(&b, "Limits: {Image: %d, PDF: %d, Document: %d, ImageTypes: %v}, ",
		c.Limits.ImageMaxBytes, c.Limits.PDFMaxBytes, c.Limits.DocumentMaxBytes, c.Limits.AllowedImageTypes)
	fmt.Fprintf(&b, "Ingest: {DropConcurrency: %d}, ", c.Ingest.DropConcurrency)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
