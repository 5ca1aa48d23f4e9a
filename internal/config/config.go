package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Storage backend names accepted by STORAGE_BACKEND.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the environment driven configuration for the portal service.
type Config struct {
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"portal-api" json:"SERVICE_NAME"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development" json:"ENVIRONMENT" jsonschema:"enum=development,enum=staging,enum=production"`
	HTTPPort         int           `env:"HTTP_PORT" envDefault:"3000" json:"HTTP_PORT"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info" json:"LOG_LEVEL"`
	LogPII           string        `env:"LOG_PII" envDefault:"hashed" json:"LOG_PII" jsonschema:"enum=none,enum=hashed,enum=full"`
	EnableTracing    bool          `env:"ENABLE_TRACING" envDefault:"false" json:"ENABLE_TRACING"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"" json:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSampleRatio float64       `env:"TRACE_SAMPLE_RATIO" envDefault:"1" json:"TRACE_SAMPLE_RATIO"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" json:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000" json:"ALLOWED_ORIGINS"`
	MaxBodyBytes     int64         `env:"MAX_BODY_BYTES" envDefault:"102400" json:"MAX_BODY_BYTES"`

	StorageBackend       string        `env:"STORAGE_BACKEND" envDefault:"file" json:"STORAGE_BACKEND" jsonschema:"enum=file,enum=memory,enum=sqlite,enum=postgres"`
	StorageFilePath      string        `env:"STORAGE_FILE_PATH" envDefault:"data/portal.json" json:"STORAGE_FILE_PATH"`
	StorageRetryCooldown time.Duration `env:"STORAGE_RETRY_COOLDOWN" envDefault:"5s" json:"STORAGE_RETRY_COOLDOWN"`
	SQLitePath           string        `env:"SQLITE_PATH" envDefault:"data/portal.db" json:"SQLITE_PATH"`
	SQLitePoolSize       int           `env:"SQLITE_POOL_SIZE" envDefault:"4" json:"SQLITE_POOL_SIZE"`
	DatabaseURL          string        `env:"DB_POSTGRESQL_WRITE_DSN" envDefault:"" json:"DB_POSTGRESQL_WRITE_DSN"`
	DBMaxIdleConns       int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5" json:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns       int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15" json:"DB_MAX_OPEN_CONNS"`
	DBConnLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m" json:"DB_CONN_MAX_LIFETIME"`

	SessionSecret string        `env:"SESSION_SECRET" envDefault:"" json:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h" json:"SESSION_TTL"`
	SessionMax    int           `env:"SESSION_MAX_ENTRIES" envDefault:"10000" json:"SESSION_MAX_ENTRIES"`
	AuthTokenTTL  time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h" json:"AUTH_TOKEN_TTL"`
	CookieSecure  bool          `env:"COOKIE_SECURE" envDefault:"false" json:"COOKIE_SECURE"`
	RedisURL      string        `env:"REDIS_URL" envDefault:"" json:"REDIS_URL"`

	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10" json:"LOGIN_RATE_PER_MINUTE"`
	LoginRateBurst     int `env:"LOGIN_RATE_BURST" envDefault:"5" json:"LOGIN_RATE_BURST"`

	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"" json:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"" json:"ADMIN_PASSWORD"`

	AppointmentTimezone string `env:"APPOINTMENT_TIMEZONE" envDefault:"UTC" json:"APPOINTMENT_TIMEZONE"`

	SMTPHost         string        `env:"SMTP_HOST" envDefault:"" json:"SMTP_HOST"`
	SMTPPort         int           `env:"SMTP_PORT" envDefault:"587" json:"SMTP_PORT"`
	SMTPUser         string        `env:"SMTP_USER" envDefault:"" json:"SMTP_USER"`
	SMTPPass         string        `env:"SMTP_PASS" envDefault:"" json:"SMTP_PASS"`
	SMTPFrom         string        `env:"SMTP_FROM" envDefault:"" json:"SMTP_FROM"`
	NotifyEmail      string        `env:"NOTIFY_EMAIL" envDefault:"" json:"NOTIFY_EMAIL"`
	NotifyWebhookURL string        `env:"NOTIFY_WEBHOOK_URL" envDefault:"" json:"NOTIFY_WEBHOOK_URL"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s" json:"NOTIFY_TIMEOUT"`
}

// Load parses the process environment into Config.
//
// Configuration Loading Order (highest to lowest priority):
// 1. Environment variables (including anything loaded from .env)
// 2. YAML file named by CONFIG_FILE (flat map of env names to values)
// 3. Default values from struct tags
func Load() (*Config, error) {
	return LoadEnvironment(environMap(os.Environ()))
}

// LoadEnvironment is Load over an explicit environment.
func LoadEnvironment(environ map[string]string) (*Config, error) {
	merged := make(map[string]string, len(environ))
	if path := strings.TrimSpace(environ["CONFIG_FILE"]); path != "" {
		overlay, err := readYAMLOverlay(path)
		if err != nil {
			return nil, err
		}
		for k, v := range overlay {
			merged[k] = v
		}
	}
	for k, v := range environ {
		merged[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: merged}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	switch c.StorageBackend {
	case BackendFile:
		if strings.TrimSpace(c.StorageFilePath) == "" {
			return fmt.Errorf("STORAGE_FILE_PATH is required when STORAGE_BACKEND is file")
		}
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_BACKEND is sqlite")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DB_POSTGRESQL_WRITE_DSN is required when STORAGE_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.IsProduction() && strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}
	if c.SessionSecret == "" {
		c.SessionSecret = "dev-secret-change-me"
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("APPOINTMENT_TIMEZONE: %w", err)
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.LoginRatePerMinute <= 0 || c.LoginRateBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_PER_MINUTE and LOGIN_RATE_BURST must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Location resolves the time zone appointments are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.AppointmentTimezone)
}

// SMTPEnabled reports whether enough SMTP settings exist to send mail.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.NotifyEmail != ""
}

func readYAMLOverlay(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := make(map[string]string, len(values))
	for k, v := range values {
		switch typed := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(typed))
			for _, item := range typed {
				parts = append(parts, fmt.Sprint(item))
			}
			out[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			out[strings.ToUpper(k)] = fmt.Sprint(typed)
		}
	}
	return out, nil
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
