package condition

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stratswitch/internal/domain/indicators"
	"github.com/sawpanic/stratswitch/internal/domain/market"
)

const (
	// MinBars is the minimum history required for a full classification.
	MinBars = 50

	atrPeriod         = 14
	adxPeriod         = 14
	shortMAPeriod     = 20
	longMAPeriod      = 50
	persistenceWindow = 20
	actionLookback    = 20
	volatilityWindow  = 50

	weightDirectional = 0.4
	weightPersistence = 0.3
	weightEfficiency  = 0.3

	neutralTrendScore = 0.5
	neutralConfidence = 0.5
)

// Classifier derives a MarketCondition from recent price history.
type Classifier struct {
	profiles map[market.InstrumentClass]ClassProfile
	now      func() time.Time
}

// NewClassifier creates a classifier with the default class profiles. A nil
// clock falls back to time.Now.
func NewClassifier(now func() time.Time) *Classifier {
	return NewClassifierWithProfiles(DefaultProfiles(), now)
}

// NewClassifierWithProfiles creates a classifier with custom profiles. Classes
// missing from profiles use the built-in default for that class.
func NewClassifierWithProfiles(profiles map[market.InstrumentClass]ClassProfile, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	merged := DefaultProfiles()
	for class, p := range profiles {
		merged[class] = p
	}
	return &Classifier{profiles: merged, now: now}
}

// Profile returns the profile used for class.
func (c *Classifier) Profile(class market.InstrumentClass) ClassProfile {
	if p, ok := c.profiles[class]; ok {
		return p
	}
	return c.profiles[market.ClassCurrencyPair]
}

// Classify computes the market condition for instrument from series. It never
// fails: short history or any internal failure yields the neutral default.
func (c *Classifier) Classify(series market.PriceSeries, instrument string) (mc MarketCondition) {
	class := market.ClassifyInstrument(instrument)
	profile := c.Profile(class)
	now := c.now()

	defer func() {
		if r := recover(); r != nil {
			log.Warn().
				Str("instrument", instrument).
				Interface("panic", r).
				Msg("Market classification failed, using neutral condition")
			mc = c.neutral(instrument, class, profile, now, series.Len())
		}
	}()

	if series.Len() < MinBars {
		return c.neutral(instrument, class, profile, now, series.Len())
	}

	result, err := c.classify(series.Bars, profile)
	if err != nil {
		log.Warn().
			Err(err).
			Str("instrument", instrument).
			Int("bars", series.Len()).
			Msg("Market classification degenerate, using neutral condition")
		return c.neutral(instrument, class, profile, now, series.Len())
	}

	result.Instrument = instrument
	result.Class = class
	result.Session = sessionAt(profile, now)
	result.Bars = series.Len()
	result.ComputedAt = now
	return result
}

func (c *Classifier) classify(bars []market.Bar, profile ClassProfile) (MarketCondition, error) {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	atr := indicators.ATR(bars, atrPeriod)
	adx := indicators.ADX(bars, adxPeriod)
	shortMA := indicators.RollingMean(closes, shortMAPeriod)
	longMA := indicators.RollingMean(closes, longMAPeriod)
	if len(atr) == 0 || len(adx) == 0 || len(longMA) == 0 {
		return MarketCondition{}, fmt.Errorf("insufficient indicator history for %d bars", len(bars))
	}

	latestATR := atr[len(atr)-1]
	if latestATR <= 0 || !finite(latestATR) {
		return MarketCondition{}, fmt.Errorf("non-positive average range %.6f", latestATR)
	}

	directional := finiteOrZero(indicators.Clamp01(adx[len(adx)-1] / 50.0))
	persistence := finiteOrZero(indicators.Clamp01(maPersistence(shortMA, longMA, persistenceWindow)))

	delta := closes[len(closes)-1] - closes[len(closes)-1-actionLookback]
	normalizedMove := math.Abs(delta) / (latestATR * math.Sqrt(actionLookback))
	efficiency := finiteOrZero(indicators.Clamp01(normalizedMove / 2.0))

	trendScore := indicators.Clamp01(
		weightDirectional*directional +
			weightPersistence*persistence +
			weightEfficiency*efficiency,
	)

	regime := RegimeRanging
	confidence := 1 - trendScore
	if trendScore > profile.TrendThreshold {
		regime = RegimeTrending
		confidence = trendScore
	}

	volRatio := volatilityRatio(atr, volatilityWindow)

	return MarketCondition{
		TrendScore: trendScore,
		Regime:     regime,
		Confidence: indicators.Clamp01(confidence),
		Volatility: volatilityRegime(volRatio, profile.VolatilityThreshold),
		PriceAction: PriceAction{
			Bias:     biasOf(delta),
			Strength: finiteOrZero(indicators.Clamp01(normalizedMove / 3.0)),
		},
		Signals: map[string]float64{
			"adx":              adx[len(adx)-1],
			"directional":      directional,
			"ma_persistence":   persistence,
			"return_to_vol":    efficiency,
			"atr":              latestATR,
			"volatility_ratio": volRatio,
		},
	}, nil
}

func (c *Classifier) neutral(instrument string, class market.InstrumentClass, profile ClassProfile, now time.Time, bars int) MarketCondition {
	return MarketCondition{
		Instrument:  instrument,
		Class:       class,
		TrendScore:  neutralTrendScore,
		Regime:      RegimeRanging,
		Confidence:  neutralConfidence,
		Volatility:  VolatilityNormal,
		Session:     sessionAt(profile, now),
		PriceAction: PriceAction{Bias: BiasNeutral},
		Bars:        bars,
		Fallback:    true,
		ComputedAt:  now,
	}
}

// maPersistence is the fraction of the last window samples whose short/long
// MA ordering matches the latest ordering.
func maPersistence(shortMA, longMA []float64, window int) float64 {
	// align both series to the end
	n := len(longMA)
	if n == 0 || len(shortMA) < n {
		return 0
	}
	offset := len(shortMA) - n

	if window > n {
		window = n
	}
	latest := sign(shortMA[offset+n-1] - longMA[n-1])
	if latest == 0 {
		return 0
	}

	matches := 0
	for i := n - window; i < n; i++ {
		if sign(shortMA[offset+i]-longMA[i]) == latest {
			matches++
		}
	}
	return float64(matches) / float64(window)
}

func volatilityRatio(atr []float64, window int) float64 {
	if len(atr) == 0 {
		return 1
	}
	start := 0
	if len(atr) > window {
		start = len(atr) - window
	}
	baseline := indicators.Mean(atr[start:])
	if baseline <= 0 {
		return 1
	}
	ratio := atr[len(atr)-1] / baseline
	if !finite(ratio) {
		return 1
	}
	return ratio
}

func volatilityRegime(ratio, threshold float64) VolatilityRegime {
	if threshold <= 0 {
		return VolatilityNormal
	}
	switch {
	case ratio > threshold:
		return VolatilityHigh
	case ratio < 1/threshold:
		return VolatilityLow
	default:
		return VolatilityNormal
	}
}

func sessionAt(profile ClassProfile, now time.Time) Session {
	if len(profile.Sessions) == 0 {
		return Session{Label: "continuous", Active: true}
	}

	hour := now.UTC().Hour()
	var names []string
	for _, w := range profile.Sessions {
		if w.Contains(hour) {
			names = append(names, w.Name)
		}
	}
	if len(names) == 0 {
		return Session{Label: "off_hours", Active: false}
	}
	return Session{Label: strings.Join(names, "+"), Active: true}
}

func biasOf(delta float64) Bias {
	switch {
	case delta > 0:
		return BiasBullish
	case delta < 0:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOrZero(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}
