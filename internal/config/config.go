package config

import (
	"fmt"
	"os"

	"NetSentry/internal/archive"
	"NetSentry/internal/notification"
	"NetSentry/internal/storage/postgres"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr         string   `yaml:"listen_addr"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	DefaultAnalyst     string   `yaml:"default_analyst"`
}

// ScoringConfig selects and configures the scoring backend.
type ScoringConfig struct {
	// Backend is "remote" for the HTTP model service or "heuristic" for the
	// local rule-based scorer.
	Backend          string  `yaml:"backend"`
	Endpoint         string  `yaml:"endpoint"`
	Timeout          string  `yaml:"timeout"`
	DefaultThreshold float64 `yaml:"default_threshold"`
}

// RedisConfig configures the optional threshold durability snapshot.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// NATSConfig configures the probe ingest transport.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	// Analyst is the opaque analyst id alerts from probe traffic are assigned to.
	Analyst string `yaml:"analyst"`
}

// ClickHouseConfig wraps the archive settings with an enable switch.
type ClickHouseConfig struct {
	Enabled bool `yaml:"enabled"`
	archive.Config `yaml:",inline"`
}

// AlertingConfig controls e-mail notifications for opened alerts.
type AlertingConfig struct {
	// NotifyMinLevel is the lowest threat level that triggers a notification.
	NotifyMinLevel string `yaml:"notify_min_level"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Postgres   postgres.Config         `yaml:"postgres"`
	ClickHouse ClickHouseConfig        `yaml:"clickhouse"`
	Redis      RedisConfig             `yaml:"redis"`
	NATS       NATSConfig              `yaml:"nats"`
	Scoring    ScoringConfig           `yaml:"scoring"`
	SMTP       notification.SMTPConfig `yaml:"smtp"`
	Alerting   AlertingConfig          `yaml:"alerting"`
}

// LoadConfig reads the configuration from a YAML file, applying environment
// overrides for secrets. A .env file next to the process is honored when
// present.
func LoadConfig(filePath string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		cfg.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("SCORING_ENDPOINT"); v != "" {
		cfg.Scoring.Endpoint = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8000"
	}
	if cfg.Server.DefaultAnalyst == "" {
		cfg.Server.DefaultAnalyst = "unassigned"
	}
	if cfg.Scoring.Backend == "" {
		cfg.Scoring.Backend = "heuristic"
	}
	if cfg.Scoring.DefaultThreshold == 0 {
		cfg.Scoring.DefaultThreshold = 0.75
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "netsentry.observations"
	}
	if cfg.NATS.Analyst == "" {
		cfg.NATS.Analyst = "probe-ingest"
	}
}
