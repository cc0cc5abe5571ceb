// Package config loads and validates exporter configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Application ApplicationConfig `mapstructure:"application"`
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Reports     ReportsConfig     `mapstructure:"reports"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Storage     StorageConfig     `mapstructure:"storage"`
	DB          DBConfig          `mapstructure:"db"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ApplicationConfig identifies the service for telemetry.
type ApplicationConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	ProjectID   string `mapstructure:"project_id"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines the bearer-credential contract.
type AuthConfig struct {
	Secret     string `mapstructure:"secret"`
	CookieName string `mapstructure:"cookie_name"`
}

// ReportsConfig points at the report page server.
type ReportsConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	ExecPath               string `mapstructure:"exec_path"`
	NavTimeoutSeconds      int    `mapstructure:"nav_timeout_seconds"`
	SelectorTimeoutSeconds int    `mapstructure:"selector_timeout_seconds"`
	ViewportWidth          int    `mapstructure:"viewport_width"`
	ViewportHeight         int    `mapstructure:"viewport_height"`
}

// RateLimitConfig bounds per-subject export admission.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// ArchiveConfig controls the background archive pipeline.
type ArchiveConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Workers    int  `mapstructure:"workers"`
	QueueDepth int  `mapstructure:"queue_depth"`
}

// StorageConfig selects where archived PDFs land.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the export audit database.
type DBConfig struct {
	DSN        string `mapstructure:"dsn"`
	AuditTable string `mapstructure:"audit_table"`
	MaxConns   int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for export event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EXPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("application.service_name", "inspection-exporter")
	v.SetDefault("application.version", "dev")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("auth.cookie_name", "sitewise_session")
	v.SetDefault("reports.base_url", "http://localhost:3000")
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.selector_timeout_seconds", 5)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 1696)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 0.5)
	v.SetDefault("ratelimit.burst", 3)
	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.workers", 2)
	v.SetDefault("archive.queue_depth", 64)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "/var/lib/inspection-exporter/archive")
	v.SetDefault("storage.prefix", "exports")
	v.SetDefault("db.audit_table", "export_audit")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.Reports.BaseURL == "" {
		return fmt.Errorf("reports.base_url is required")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Browser.SelectorTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.selector_timeout_seconds must be > 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be > 0 when rate limiting is enabled")
	}
	if c.Archive.Enabled {
		if c.Archive.Workers <= 0 {
			return fmt.Errorf("archive.workers must be > 0 when archiving is enabled")
		}
		if c.Archive.QueueDepth <= 0 {
			return fmt.Errorf("archive.queue_depth must be > 0 when archiving is enabled")
		}
		switch c.Storage.Provider {
		case "local", "gcs", "memory":
		default:
			return fmt.Errorf("storage.provider must be one of local, gcs, memory")
		}
		if c.Storage.Provider == "gcs" && c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
		if c.Storage.Provider == "local" && c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local provider")
		}
	}
	return nil
}

// NavTimeout returns the navigation deadline as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSeconds) * time.Second
}

// SelectorTimeout returns the readiness-selector deadline as a duration.
func (c Config) SelectorTimeout() time.Duration {
	return time.Duration(c.Browser.SelectorTimeoutSeconds) * time.Second
}

// ServerTimeout returns the whole-request deadline as a duration.
func (c Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
