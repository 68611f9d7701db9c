package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Controller      ControllerConfig  `yaml:"controller"`
	Poll            PollConfig        `yaml:"poll"`
	History         HistoryConfig     `yaml:"history"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Notices         NoticesConfig     `yaml:"notices"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// ControllerConfig contains ventilation controller connection settings
type ControllerConfig struct {
	BaseURL      string   `yaml:"base_url"`
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout for controller API requests
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // Outbound request rate limit
}

// PollConfig contains the poll loop intervals
type PollConfig struct {
	State          Duration `yaml:"state"`           // Installation snapshot interval (default: 3s)
	History        Duration `yaml:"history"`         // Sensor history interval (default: 30s)
	UpdateCheck    Duration `yaml:"update_check"`    // Updater status interval (default: 15m)
	CommandRefetch Duration `yaml:"command_refetch"` // Delay before post-command re-fetch (default: 1s)
}

// HistoryConfig contains sensor history settings
type HistoryConfig struct {
	Limit int `yaml:"limit"` // Samples per fetch, clamped to 10..500 (default: 100)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// LedgerConfig contains command ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// NoticesConfig contains operator notice settings
type NoticesConfig struct {
	TTL Duration `yaml:"ttl"` // How long a notice stays visible (default: 4s)
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GetHost returns the bind host with default
func (c *HealthcheckConfig) GetHost() string {
	if c.Host == "" {
		return "0.0.0.0"
	}
	return c.Host
}

// GetPort returns the bind port with default
func (c *HealthcheckConfig) GetPort() int {
	if c.Port == 0 {
		return 9090
	}
	return c.Port
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// GetShutdownTimeout returns the graceful shutdown timeout with default
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout.Duration()
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./ventpanel.sqlite"
	}

	// Controller defaults
	if cfg.Controller.BaseURL == "" {
		cfg.Controller.BaseURL = "http://127.0.0.1:8000"
	}
	if cfg.Controller.Timeout == 0 {
		cfg.Controller.Timeout = Duration(15 * time.Second)
	}
	if cfg.Controller.RateLimitRPS == 0 {
		cfg.Controller.RateLimitRPS = 10.0 // 10 requests per second
	}

	// Poll defaults match the cadence the controller is sized for
	if cfg.Poll.State == 0 {
		cfg.Poll.State = Duration(3 * time.Second)
	}
	if cfg.Poll.History == 0 {
		cfg.Poll.History = Duration(30 * time.Second)
	}
	if cfg.Poll.UpdateCheck == 0 {
		cfg.Poll.UpdateCheck = Duration(15 * time.Minute)
	}
	if cfg.Poll.CommandRefetch == 0 {
		cfg.Poll.CommandRefetch = Duration(1 * time.Second)
	}

	// History defaults; the fetch limit is clamped again at call time
	if cfg.History.Limit == 0 {
		cfg.History.Limit = 100
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Notice defaults
	if cfg.Notices.TTL == 0 {
		cfg.Notices.TTL = Duration(4 * time.Second)
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
