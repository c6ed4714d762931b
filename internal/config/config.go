// Package config loads application configuration from environment variables.
// Every setting has a default except the upload endpoint, and the whole
// configuration is validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Upload  UploadConfig
	Limits  LimitsConfig
	Ingest  IngestConfig
	Logging LoggingConfig
	Metrics MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing a response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including upload drain (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for API requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`

	// MaxRequestBytes caps a multipart request body (default: 256MB)
	MaxRequestBytes int64 `env:"SERVER_MAX_REQUEST_BYTES" default:"268435456"`

	// RateLimit is the requests per minute allowed per client IP; 0 disables (default: 600)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"600"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP/X-Forwarded-For are honored
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// UploadConfig holds settings for the remote upload endpoint.
type UploadConfig struct {
	// Endpoint is the URL files are POSTed to (required)
	Endpoint string `env:"UPLOAD_ENDPOINT" envAlt:"UPLOAD_URL" required:"true"`

	// FieldName is the multipart field carrying the file (default: file)
	FieldName string `env:"UPLOAD_FIELD_NAME" default:"file"`

	// Timeout bounds one upload attempt (default: 30s)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"30s"`

	// MaxAttempts is the total number of attempts per file (default: 3)
	MaxAttempts int `env:"UPLOAD_MAX_ATTEMPTS" default:"3"`

	// RetryBaseDelay is the first backoff delay (default: 500ms)
	RetryBaseDelay time.Duration `env:"UPLOAD_RETRY_BASE_DELAY" default:"500ms"`

	// RetryMaxDelay caps the backoff delay (default: 5s)
	RetryMaxDelay time.Duration `env:"UPLOAD_RETRY_MAX_DELAY" default:"5s"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a file waits for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// LimitsConfig holds the per-category size policy and the image allow-list.
type LimitsConfig struct {
	// ImageMaxBytes is the image size limit (default: 5MiB)
	ImageMaxBytes int64 `env:"LIMIT_IMAGE_BYTES" default:"5242880"`

	// PDFMaxBytes is the PDF size limit (default: 32MiB)
	PDFMaxBytes int64 `env:"LIMIT_PDF_BYTES" default:"33554432"`

	// DocumentMaxBytes is the document size limit (default: 100MiB)
	DocumentMaxBytes int64 `env:"LIMIT_DOCUMENT_BYTES" default:"104857600"`

	// AllowedImageTypes is a comma-separated list of accepted image media types
	AllowedImageTypes []string `env:"ALLOWED_IMAGE_TYPES" default:"image/png,image/jpeg,image/gif,image/webp"`
}

// IngestConfig holds batch processing settings.
type IngestConfig struct {
	// DropConcurrency is how many dropped files run at once; 1 keeps drop order (default: 1)
	DropConcurrency int `env:"INGEST_DROP_CONCURRENCY" default:"1"`

	// StreamBuffer is the per-subscriber event buffer (default: 64)
	StreamBuffer int `env:"INGEST_STREAM_BUFFER" default:"64"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics and records ingestion metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Namespace prefixes every metric name (default: dropzone)
	Namespace string `env:"METRICS_NAMESPACE" default:"dropzone"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
