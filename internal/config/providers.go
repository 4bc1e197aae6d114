package config

import (
	"fmt"
	"time"
)

// DataConfig configures the price history provider chain.
type DataConfig struct {
	Dir      string        `yaml:"dir"`       // directory of <INSTRUMENT>.csv files
	CacheTTL time.Duration `yaml:"cache_ttl"` // history cache TTL
	RPS      float64       `yaml:"rps"`       // fetches per second
	Burst    int           `yaml:"burst"`     // burst capacity
	Circuit  CircuitConfig `yaml:"circuit"`   // circuit breaker config
}

// CircuitConfig represents circuit breaker configuration
type CircuitConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`  // consecutive failures to open circuit
	HalfOpenRequests uint32        `yaml:"half_open_requests"` // probes allowed while half-open
	OpenTimeout      time.Duration `yaml:"open_timeout"`       // time before a half-open probe
	Interval         time.Duration `yaml:"interval"`           // closed-state counter reset
}

// DefaultDataConfig returns the provider chain defaults.
func DefaultDataConfig() DataConfig {
	return DataConfig{
		Dir:      "data/history",
		CacheTTL: 5 * time.Minute,
		RPS:      10,
		Burst:    20,
		Circuit: CircuitConfig{
			FailureThreshold: 5,
			HalfOpenRequests: 1,
			OpenTimeout:      30 * time.Second,
			Interval:         time.Minute,
		},
	}
}

// Validate ensures the provider configuration is usable
func (d DataConfig) Validate() error {
	if d.Dir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if d.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative, got %s", d.CacheTTL)
	}
	if d.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %f", d.RPS)
	}
	if float64(d.Burst) < d.RPS {
		return fmt.Errorf("burst (%d) must be >= rps (%.1f)", d.Burst, d.RPS)
	}
	if err := d.Circuit.Validate(); err != nil {
		return fmt.Errorf("circuit: %w", err)
	}
	return nil
}

// Validate ensures circuit breaker configuration is valid
func (c CircuitConfig) Validate() error {
	if c.FailureThreshold == 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	if c.HalfOpenRequests == 0 {
		return fmt.Errorf("half_open_requests must be positive")
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("open_timeout must be positive, got %s", c.OpenTimeout)
	}
	return nil
}
