package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"filippo.io/age"
	"github.com/sethvargo/go-envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds runtime configuration for the pmgmt service.
type Config struct {
	Port         int    `env:"PMGMT_PORT,default=3716"`
	DBDriver     string `env:"PMGMT_DB_DRIVER,default=sqlite"`
	DBPath       string `env:"PMGMT_DB_PATH,default=pmgmt.db"`
	DBDSN        string `env:"PMGMT_DB_DSN"`
	Username     string `env:"PMGMT_USERNAME"`
	Password     string `env:"PMGMT_PASSWORD"`
	LogLevel     string `env:"PMGMT_LOG_LEVEL,default=info"`
	MaxBodyBytes int64  `env:"PMGMT_MAX_BODY_BYTES,default=10485760"`
	RateLimit    int    `env:"PMGMT_RATE_LIMIT,default=120"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	NATSURL      string `env:"NATS_URL"`
	EventsStream string `env:"PMGMT_EVENTS_STREAM,default=PMGMT"`

	ArchiveBucket        string   `env:"PMGMT_ARCHIVE_BUCKET"`
	ArchiveAgeRecipients []string `env:"PMGMT_ARCHIVE_AGE_RECIPIENTS"`
	S3Endpoint           string   `env:"S3_ENDPOINT"`
	S3Region             string   `env:"S3_REGION,default=us-east-1"`
	S3AccessKey          string   `env:"S3_ACCESS_KEY"`
	S3SecretKey          string   `env:"S3_SECRET_KEY"`
	S3DisableTLS         bool     `env:"S3_DISABLE_TLS,default=false"`
	S3ForcePathStyle     bool     `env:"S3_FORCE_PATH_STYLE,default=true"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom returns a Config populated from the provided lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	return cfg, nil
}

// Validate reports configuration that prevents the service from starting.
// Missing dashboard credentials are deliberately not an error here; see
// DashboardAuthConfigured.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PMGMT_PORT %d out of range", c.Port))
	}

	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			errs = append(errs, errors.New("PMGMT_DB_PATH is required for sqlite"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DBDSN) == "" {
			errs = append(errs, errors.New("PMGMT_DB_DSN is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported PMGMT_DB_DRIVER %q", c.DBDriver))
	}

	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("PMGMT_MAX_BODY_BYTES must be positive"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("PMGMT_RATE_LIMIT must not be negative"))
	}

	if c.ArchiveEnabled() {
		if strings.TrimSpace(c.S3Endpoint) == "" {
			errs = append(errs, errors.New("S3_ENDPOINT is required when PMGMT_ARCHIVE_BUCKET is set"))
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required when PMGMT_ARCHIVE_BUCKET is set"))
		}
		if _, err := c.AgeRecipients(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// DashboardAuthConfigured reports whether both dashboard credentials are present.
func (c Config) DashboardAuthConfigured() bool {
	return c.Username != "" && c.Password != ""
}

// ArchiveEnabled reports whether raw reports should be copied to object storage.
func (c Config) ArchiveEnabled() bool {
	return strings.TrimSpace(c.ArchiveBucket) != ""
}

// Addr is the listen address derived from the configured port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AgeRecipients parses the configured archive recipients.
func (c Config) AgeRecipients() ([]age.Recipient, error) {
	var out []age.Recipient
	for _, raw := range c.ArchiveAgeRecipients {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		r, err := age.ParseX25519Recipient(raw)
		if err != nil {
			return nil, fmt.Errorf("parse age recipient %q: %w", raw, err)
		}
		out = append(out, r)
	}
	return out, nil
}
