package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/claude/pushreps/internal/models"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Tracker       TrackerConfig       `yaml:"tracker"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Tailscale     TailscaleConfig     `yaml:"tailscale"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver"`
	SQLiteDir string `yaml:"sqlite_dir"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TrackerConfig struct {
	// Timezone is an IANA name used for calendar days. "Local" or empty
	// means the host zone.
	Timezone    string        `yaml:"timezone"`
	RestTick    time.Duration `yaml:"rest_tick"`
	DefaultPlan string        `yaml:"default_plan"`
}

type NotificationsConfig struct {
	WebhookURL    string        `yaml:"webhook_url"`
	ReminderAfter time.Duration `yaml:"reminder_after"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// MetricsConfig enables the Prometheus endpoint at /metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Location resolves the tracker timezone.
func (t TrackerConfig) Location() (*time.Location, error) {
	if t.Timezone == "" || t.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(t.Timezone)
}

// Plan returns the configured default plan.
func (t TrackerConfig) Plan() (models.Plan, error) {
	id, err := models.ParsePlanID(t.DefaultPlan)
	if err != nil {
		return models.Plan{}, err
	}
	return models.LookupPlan(id)
}

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads config from a YAML file, applies defaults, then environment
// variable overrides. Env vars use the prefix PUSHREPS_:
//
//	PUSHREPS_SERVER_HOST, PUSHREPS_SERVER_PORT,
//	PUSHREPS_STORAGE_DRIVER, PUSHREPS_STORAGE_SQLITE_DIR,
//	PUSHREPS_DB_HOST, PUSHREPS_DB_PORT, PUSHREPS_DB_NAME,
//	PUSHREPS_DB_USER, PUSHREPS_DB_PASSWORD, PUSHREPS_DB_SSLMODE,
//	PUSHREPS_AUTH_API_KEY, PUSHREPS_TIMEZONE, PUSHREPS_DEFAULT_PLAN,
//	PUSHREPS_WEBHOOK_URL, PUSHREPS_METRICS_ENABLED, PUSHREPS_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.SQLiteDir == "" {
		cfg.Storage.SQLiteDir = "data"
	}
	if cfg.Tracker.RestTick == 0 {
		cfg.Tracker.RestTick = time.Second
	}
	if cfg.Tracker.DefaultPlan == "" {
		cfg.Tracker.DefaultPlan = string(models.PlanBeginner)
	}
	if cfg.Notifications.ReminderAfter == 0 {
		cfg.Notifications.ReminderAfter = 24 * time.Hour
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "pushreps"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PUSHREPS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PUSHREPS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PUSHREPS_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("PUSHREPS_STORAGE_SQLITE_DIR"); v != "" {
		cfg.Storage.SQLiteDir = v
	}
	if v := os.Getenv("PUSHREPS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PUSHREPS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PUSHREPS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PUSHREPS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PUSHREPS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PUSHREPS_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("PUSHREPS_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("PUSHREPS_TIMEZONE"); v != "" {
		cfg.Tracker.Timezone = v
	}
	if v := os.Getenv("PUSHREPS_DEFAULT_PLAN"); v != "" {
		cfg.Tracker.DefaultPlan = v
	}
	if v := os.Getenv("PUSHREPS_WEBHOOK_URL"); v != "" {
		cfg.Notifications.WebhookURL = v
	}
	if v := os.Getenv("PUSHREPS_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("PUSHREPS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, memory", c.Storage.Driver)
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if _, err := c.Tracker.Location(); err != nil {
		return fmt.Errorf("tracker.timezone: %w", err)
	}
	if _, err := c.Tracker.Plan(); err != nil {
		return fmt.Errorf("tracker.default_plan: %w", err)
	}
	if c.Tracker.RestTick < 0 {
		return fmt.Errorf("tracker.rest_tick must not be negative")
	}
	return nil
}
