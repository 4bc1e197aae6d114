package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/stratswitch/internal/infrastructure/db"
	"github.com/sawpanic/stratswitch/internal/simulation"
)

// AppConfig is the complete service configuration.
type AppConfig struct {
	Switching  SwitchingConfig   `yaml:"switching"`
	Simulation simulation.Config `yaml:"simulation"`
	Data       DataConfig        `yaml:"data"`
	Database   db.Config         `yaml:"database"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Redis      RedisConfig       `yaml:"redis"`
	HTTP       HTTPConfig        `yaml:"http"`
	Scheduler  SchedulerConfig   `yaml:"scheduler"`
}

// SQLiteConfig configures the local event store.
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RedisConfig configures the history cache and the status publisher. Both are
// disabled when Addr is empty.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	StatusKey     string `yaml:"status_key"`
	EventsChannel string `yaml:"events_channel"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// SchedulerConfig configures the periodic evaluation cadence.
type SchedulerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Spec       string        `yaml:"spec"` // cron spec with seconds field
	RunOnStart bool          `yaml:"run_on_start"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Default returns the complete default configuration.
func Default() *AppConfig {
	return &AppConfig{
		Switching:  DefaultSwitchingConfig(),
		Simulation: simulation.DefaultConfig(),
		Data:       DefaultDataConfig(),
		Database:   db.DefaultConfig(),
		SQLite: SQLiteConfig{
			Enabled: true,
			Path:    "data/stratswitch.db",
		},
		Redis: RedisConfig{
			StatusKey:     "stratswitch:status",
			EventsChannel: "stratswitch:switches",
		},
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         8090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:    true,
			Spec:       "0 0 * * * *",
			RunOnStart: true,
			Timeout:    10 * time.Minute,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides, fills zero values and validates. A missing file is not an error.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			log.Info().Str("path", path).Msg("Config file not found, using defaults")
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	fillDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if dsn := os.Getenv("STRATSWITCH_PG_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
		cfg.Database.Enabled = true
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if port := os.Getenv("HTTP_PORT"); port != "" {
		if val, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = val
		} else {
			log.Warn().Str("HTTP_PORT", port).Msg("Ignoring non-numeric HTTP_PORT")
		}
	}
	if dir := os.Getenv("STRATSWITCH_DATA_DIR"); dir != "" {
		cfg.Data.Dir = dir
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.SQLite.Path = path
	}
}

// fillDefaults restores defaults for fields a config file zeroed out.
func fillDefaults(cfg *AppConfig) {
	def := Default()

	s := &cfg.Switching
	if len(s.MonitoredInstruments) == 0 {
		s.MonitoredInstruments = def.Switching.MonitoredInstruments
	}
	if len(s.TestStrategies) == 0 {
		s.TestStrategies = def.Switching.TestStrategies
	}
	if s.Workers == 0 {
		s.Workers = def.Switching.Workers
	}
	if s.SimulationTimeout == 0 {
		s.SimulationTimeout = def.Switching.SimulationTimeout
	}

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = def.Database.MaxOpenConns
	}
	if cfg.Database.QueryTimeout == 0 {
		cfg.Database.QueryTimeout = def.Database.QueryTimeout
	}
	if cfg.Redis.StatusKey == "" {
		cfg.Redis.StatusKey = def.Redis.StatusKey
	}
	if cfg.Redis.EventsChannel == "" {
		cfg.Redis.EventsChannel = def.Redis.EventsChannel
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = def.HTTP.Port
	}
	if cfg.Scheduler.Spec == "" {
		cfg.Scheduler.Spec = def.Scheduler.Spec
	}
	if cfg.Scheduler.Timeout == 0 {
		cfg.Scheduler.Timeout = def.Scheduler.Timeout
	}
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.Switching.Validate(); err != nil {
		return fmt.Errorf("switching: %w", err)
	}
	if err := c.Data.Validate(); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.SQLite.Enabled && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite: path is required when enabled")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http: port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Scheduler.Timeout <= 0 {
		return fmt.Errorf("scheduler: timeout must be positive")
	}
	return nil
}

// Save writes the configuration as YAML.
func Save(cfg *AppConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
