package config

import (
	"fmt"
	"time"
)

// SwitchingConfig is the controller's configuration record.
type SwitchingConfig struct {
	CooldownHours        float64       `yaml:"switching_cooldown_hours" json:"switching_cooldown_hours"`
	EvaluationPeriod     int           `yaml:"performance_evaluation_period" json:"performance_evaluation_period"`
	MinPerformanceScore  float64       `yaml:"min_performance_score" json:"min_performance_score"`
	SwitchThreshold      float64       `yaml:"switch_threshold" json:"switch_threshold"`
	MonitoredInstruments []string      `yaml:"monitored_instruments" json:"monitored_instruments"`
	TestStrategies       []string      `yaml:"test_strategies" json:"test_strategies"`
	Workers              int           `yaml:"workers" json:"workers"`
	SimulationTimeout    time.Duration `yaml:"simulation_timeout" json:"simulation_timeout"`
	WarmupBars           int           `yaml:"warmup_bars" json:"warmup_bars"`
	OverrideFile         string        `yaml:"override_file" json:"-"`
}

// DefaultSwitchingConfig returns the documented defaults.
func DefaultSwitchingConfig() SwitchingConfig {
	return SwitchingConfig{
		CooldownHours:        24,
		EvaluationPeriod:     500,
		MinPerformanceScore:  0.6,
		SwitchThreshold:      0.1,
		MonitoredInstruments: []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "US30", "BTCUSD"},
		TestStrategies:       []string{"ma_crossover", "rsi_reversion", "donchian_breakout", "momentum_roc"},
		Workers:              4,
		SimulationTimeout:    30 * time.Second,
		WarmupBars:           100,
	}
}

// Cooldown returns the minimum time between switches.
func (c SwitchingConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours * float64(time.Hour))
}

// Lookback is the number of bars requested from the price provider.
func (c SwitchingConfig) Lookback() int {
	return c.EvaluationPeriod + c.WarmupBars
}

// Clone returns a deep copy.
func (c SwitchingConfig) Clone() SwitchingConfig {
	c.MonitoredInstruments = append([]string(nil), c.MonitoredInstruments...)
	c.TestStrategies = append([]string(nil), c.TestStrategies...)
	return c
}

// Validate checks ranges and list contents.
func (c SwitchingConfig) Validate() error {
	if c.CooldownHours < 0 {
		return fmt.Errorf("switching_cooldown_hours cannot be negative, got %f", c.CooldownHours)
	}
	if c.EvaluationPeriod <= 0 {
		return fmt.Errorf("performance_evaluation_period must be positive, got %d", c.EvaluationPeriod)
	}
	if c.MinPerformanceScore < 0 || c.MinPerformanceScore > 1 {
		return fmt.Errorf("min_performance_score must be between 0 and 1, got %f", c.MinPerformanceScore)
	}
	if c.SwitchThreshold < 0 || c.SwitchThreshold > 1 {
		return fmt.Errorf("switch_threshold must be between 0 and 1, got %f", c.SwitchThreshold)
	}
	if err := validateList("monitored_instruments", c.MonitoredInstruments); err != nil {
		return err
	}
	if err := validateList("test_strategies", c.TestStrategies); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.SimulationTimeout <= 0 {
		return fmt.Errorf("simulation_timeout must be positive, got %s", c.SimulationTimeout)
	}
	if c.WarmupBars < 0 {
		return fmt.Errorf("warmup_bars cannot be negative, got %d", c.WarmupBars)
	}
	return nil
}

func validateList(name string, items []string) error {
	if len(items) == 0 {
		return fmt.Errorf("%s cannot be empty", name)
	}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item == "" {
			return fmt.Errorf("%s contains an empty entry", name)
		}
		if _, dup := seen[item]; dup {
			return fmt.Errorf("%s contains duplicate %q", name, item)
		}
		seen[item] = struct{}{}
	}
	return nil
}

// Override is a partial configuration document merged over defaults. Nil
// fields and empty lists leave the base value unchanged.
type Override struct {
	CooldownHours        *float64 `yaml:"switching_cooldown_hours,omitempty" json:"switching_cooldown_hours,omitempty"`
	EvaluationPeriod     *int     `yaml:"performance_evaluation_period,omitempty" json:"performance_evaluation_period,omitempty"`
	MinPerformanceScore  *float64 `yaml:"min_performance_score,omitempty" json:"min_performance_score,omitempty"`
	SwitchThreshold      *float64 `yaml:"switch_threshold,omitempty" json:"switch_threshold,omitempty"`
	MonitoredInstruments []string `yaml:"monitored_instruments,omitempty" json:"monitored_instruments,omitempty"`
	TestStrategies       []string `yaml:"test_strategies,omitempty" json:"test_strategies,omitempty"`
}

// Apply returns a copy of c with o merged over it.
func (c SwitchingConfig) Apply(o Override) SwitchingConfig {
	out := c.Clone()
	if o.CooldownHours != nil {
		out.CooldownHours = *o.CooldownHours
	}
	if o.EvaluationPeriod != nil {
		out.EvaluationPeriod = *o.EvaluationPeriod
	}
	if o.MinPerformanceScore != nil {
		out.MinPerformanceScore = *o.MinPerformanceScore
	}
	if o.SwitchThreshold != nil {
		out.SwitchThreshold = *o.SwitchThreshold
	}
	if len(o.MonitoredInstruments) > 0 {
		out.MonitoredInstruments = append([]string(nil), o.MonitoredInstruments...)
	}
	if len(o.TestStrategies) > 0 {
		out.TestStrategies = append([]string(nil), o.TestStrategies...)
	}
	return out
}

// Snapshot returns an override carrying every overridable field of c.
func (c SwitchingConfig) Snapshot() Override {
	cooldown := c.CooldownHours
	period := c.EvaluationPeriod
	minScore := c.MinPerformanceScore
	threshold := c.SwitchThreshold
	return Override{
		CooldownHours:        &cooldown,
		EvaluationPeriod:     &period,
		MinPerformanceScore:  &minScore,
		SwitchThreshold:      &threshold,
		MonitoredInstruments: append([]string(nil), c.MonitoredInstruments...),
		TestStrategies:       append([]string(nil), c.TestStrategies...),
	}
}
