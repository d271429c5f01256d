// Package config loads the calendar service configuration from the
// environment and the optional seed file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/example/family-calendar/internal/timecodec"
)

// Prefix is prepended to every environment variable, e.g. FAMCAL_HTTP_PORT.
const Prefix = "FAMCAL"

// Config captures environment driven configuration values for the calendar service.
type Config struct {
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLiteDSN   string `envconfig:"SQLITE_DSN" default:"file:famcal.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	// Timezone is the deployment zone used to interpret local wall-clock input.
	Timezone    string   `envconfig:"TIMEZONE" default:"Europe/Stockholm"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	RedisURL     string `envconfig:"REDIS_URL"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"calendar_events"`
	NtfyURL      string `envconfig:"NTFY_URL" default:"https://ntfy.sh"`
	NtfyTopic    string `envconfig:"NTFY_TOPIC"`

	ReminderSchedule string `envconfig:"REMINDER_SCHEDULE" default:"* * * * *"`
	RemindersEnabled bool   `envconfig:"REMINDERS_ENABLED" default:"true"`

	IdempotencyTTL      time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	OccurrenceCacheTTL  time.Duration `envconfig:"OCCURRENCE_CACHE_TTL" default:"30s"`
	OccurrenceCacheSize int           `envconfig:"OCCURRENCE_CACHE_SIZE" default:"256"`

	SeedFile string `envconfig:"SEED_FILE"`

	DefaultWindowPast   time.Duration `envconfig:"DEFAULT_WINDOW_PAST" default:"2160h"`
	DefaultWindowFuture time.Duration `envconfig:"DEFAULT_WINDOW_FUTURE" default:"4320h"`
	ShutdownTimeout     time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads .env when present and then parses configuration values from
// the process environment.
//
// Values that parse but are unusable are collected so that a single error
// reports every missing and invalid variable.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnvironment()
}

// FromEnvironment is Load without the .env step.
func FromEnvironment() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements and value ranges.
func (c *Config) Validate() error {
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)
	name := func(key string) string { return Prefix + "_" + key }

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, name("HTTP_PORT"))
	}

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "sqlite":
		if strings.TrimSpace(c.SQLiteDSN) == "" {
			missing = append(missing, name("SQLITE_DSN"))
		}
	case "postgres":
		if strings.TrimSpace(c.PostgresDSN) == "" {
			missing = append(missing, name("POSTGRES_DSN"))
		}
	default:
		invalid = append(invalid, name("DB_DRIVER"))
	}

	if _, err := timecodec.Load(c.Timezone); err != nil {
		invalid = append(invalid, name("TIMEZONE"))
	}
	if _, err := cron.ParseStandard(c.ReminderSchedule); err != nil {
		invalid = append(invalid, name("REMINDER_SCHEDULE"))
	}

	for key, d := range map[string]time.Duration{
		"IDEMPOTENCY_TTL":       c.IdempotencyTTL,
		"OCCURRENCE_CACHE_TTL":  c.OccurrenceCacheTTL,
		"DEFAULT_WINDOW_PAST":   c.DefaultWindowPast,
		"DEFAULT_WINDOW_FUTURE": c.DefaultWindowFuture,
		"SHUTDOWN_TIMEOUT":      c.ShutdownTimeout,
	} {
		if d <= 0 {
			invalid = append(invalid, name(key))
		}
	}
	if c.OccurrenceCacheSize <= 0 {
		invalid = append(invalid, name("OCCURRENCE_CACHE_SIZE"))
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		slices.Sort(invalid)
		return fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.PostgresDSN
	}
	return c.SQLiteDSN
}

// HTTPAddr returns the listen address for the HTTP server.
func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
