package condition

import (
	"time"

	"github.com/sawpanic/stratswitch/internal/domain/market"
)

// Regime is the coarse classification of recent price behaviour.
type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeRanging  Regime = "ranging"
)

// VolatilityRegime compares current range expansion with its recent norm.
type VolatilityRegime string

const (
	VolatilityLow    VolatilityRegime = "low"
	VolatilityNormal VolatilityRegime = "normal"
	VolatilityHigh   VolatilityRegime = "high"
)

// Bias is the net direction over the price-action lookback.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// Session labels the trading session active at classification time.
type Session struct {
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// PriceAction describes directional bias and its normalised strength.
type PriceAction struct {
	Bias     Bias    `json:"bias"`
	Strength float64 `json:"strength"`
}

// MarketCondition is a snapshot derived from the tail of a price series.
// It is recomputed every cycle and never persisted.
type MarketCondition struct {
	Instrument  string                 `json:"instrument"`
	Class       market.InstrumentClass `json:"class"`
	TrendScore  float64                `json:"trend_score"`
	Regime      Regime                 `json:"regime"`
	Confidence  float64                `json:"confidence"`
	Volatility  VolatilityRegime       `json:"volatility"`
	Session     Session                `json:"session"`
	PriceAction PriceAction            `json:"price_action"`
	Signals     map[string]float64     `json:"signals,omitempty"`
	Bars        int                    `json:"bars"`
	Fallback    bool                   `json:"fallback"`
	ComputedAt  time.Time              `json:"computed_at"`
}

// IsTrending is a convenience for regime checks.
func (mc MarketCondition) IsTrending() bool {
	return mc.Regime == RegimeTrending
}
