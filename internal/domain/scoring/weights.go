package scoring

import (
	"fmt"
	"math"
)

// Weights allocates the composite score across the five sub-scores.
type Weights struct {
	Profitability float64 `yaml:"profitability" json:"profitability"`
	RiskControl   float64 `yaml:"risk_control" json:"risk_control"`
	Consistency   float64 `yaml:"consistency" json:"consistency"`
	ActivityLevel float64 `yaml:"activity_level" json:"activity_level"`
	MarketFit     float64 `yaml:"market_fit" json:"market_fit"`
}

const weightSumTolerance = 1e-9

// DefaultWeights returns the fixed production allocation.
func DefaultWeights() Weights {
	return Weights{
		Profitability: 0.30,
		RiskControl:   0.25,
		Consistency:   0.20,
		ActivityLevel: 0.15,
		MarketFit:     0.10,
	}
}

// Sum returns the total allocation.
func (w Weights) Sum() float64 {
	return w.Profitability + w.RiskControl + w.Consistency + w.ActivityLevel + w.MarketFit
}

// Validate ensures weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	all := []struct {
		name   string
		weight float64
	}{
		{"profitability", w.Profitability},
		{"risk_control", w.RiskControl},
		{"consistency", w.Consistency},
		{"activity_level", w.ActivityLevel},
		{"market_fit", w.MarketFit},
	}
	for _, entry := range all {
		if entry.weight < 0 || math.IsNaN(entry.weight) {
			return fmt.Errorf("%s weight cannot be negative: %.3f", entry.name, entry.weight)
		}
	}

	if sum := w.Sum(); math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weight sum %.6f is not 1.0", sum)
	}
	return nil
}

// Apply returns the weighted sum of b.
func (w Weights) Apply(b Breakdown) float64 {
	return w.Profitability*b.Profitability +
		w.RiskControl*b.RiskControl +
		w.Consistency*b.Consistency +
		w.ActivityLevel*b.ActivityLevel +
		w.MarketFit*b.MarketFit
}
