package condition

import "github.com/sawpanic/stratswitch/internal/domain/market"

// SessionWindow is a named span of UTC hours, [StartHour, EndHour).
type SessionWindow struct {
	Name      string `yaml:"name" json:"name"`
	StartHour int    `yaml:"start_hour" json:"start_hour"`
	EndHour   int    `yaml:"end_hour" json:"end_hour"`
}

// Contains reports whether hour falls inside the window. Windows that wrap
// midnight (start > end) are supported.
func (w SessionWindow) Contains(hour int) bool {
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

// ClassProfile holds the class-specific thresholds used during classification.
type ClassProfile struct {
	TrendThreshold      float64         `yaml:"trend_threshold" json:"trend_threshold"`
	VolatilityThreshold float64         `yaml:"volatility_threshold" json:"volatility_threshold"`
	Sessions            []SessionWindow `yaml:"sessions" json:"sessions"`
}

// DefaultProfiles returns the built-in class profiles. Crypto trades around
// the clock and therefore has no session windows.
func DefaultProfiles() map[market.InstrumentClass]ClassProfile {
	return map[market.InstrumentClass]ClassProfile{
		market.ClassCurrencyPair: {
			TrendThreshold:      0.60,
			VolatilityThreshold: 1.5,
			Sessions: []SessionWindow{
				{Name: "asian", StartHour: 0, EndHour: 9},
				{Name: "london", StartHour: 7, EndHour: 16},
				{Name: "new_york", StartHour: 12, EndHour: 21},
			},
		},
		market.ClassRateIndex: {
			TrendThreshold:      0.55,
			VolatilityThreshold: 1.4,
			Sessions: []SessionWindow{
				{Name: "europe_cash", StartHour: 7, EndHour: 16},
				{Name: "us_cash", StartHour: 13, EndHour: 20},
			},
		},
		market.ClassPreciousMetal: {
			TrendThreshold:      0.60,
			VolatilityThreshold: 1.6,
			Sessions: []SessionWindow{
				{Name: "london", StartHour: 7, EndHour: 16},
				{Name: "new_york", StartHour: 12, EndHour: 21},
			},
		},
		market.ClassCryptoAsset: {
			TrendThreshold:      0.65,
			VolatilityThreshold: 1.8,
		},
	}
}
