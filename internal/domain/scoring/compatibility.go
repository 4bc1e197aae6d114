package scoring

import (
	"github.com/sawpanic/stratswitch/internal/domain/market"
	"github.com/sawpanic/stratswitch/internal/strategy"
)

const (
	defaultCompatibility = 0.5
	regimeMatch          = 1.0
	regimeMismatch       = 0.7
)

// compatibility rates how well each strategy family suits each instrument class.
var compatibility = map[strategy.Class]map[market.InstrumentClass]float64{
	strategy.ClassTrendFollowing: {
		market.ClassCurrencyPair:  0.7,
		market.ClassRateIndex:     0.8,
		market.ClassPreciousMetal: 0.8,
		market.ClassCryptoAsset:   0.9,
	},
	strategy.ClassMeanReversion: {
		market.ClassCurrencyPair:  0.8,
		market.ClassRateIndex:     0.6,
		market.ClassPreciousMetal: 0.6,
		market.ClassCryptoAsset:   0.4,
	},
	strategy.ClassBreakout: {
		market.ClassCurrencyPair:  0.6,
		market.ClassRateIndex:     0.8,
		market.ClassPreciousMetal: 0.7,
		market.ClassCryptoAsset:   0.8,
	},
	strategy.ClassMomentum: {
		market.ClassCurrencyPair:  0.6,
		market.ClassRateIndex:     0.7,
		market.ClassPreciousMetal: 0.7,
		market.ClassCryptoAsset:   0.9,
	},
	strategy.ClassScalping: {
		market.ClassCurrencyPair:  0.9,
		market.ClassRateIndex:     0.6,
		market.ClassPreciousMetal: 0.5,
		market.ClassCryptoAsset:   0.5,
	},
}

// Compatibility returns the table value, 0.5 for unknown combinations.
func Compatibility(class strategy.Class, instrument market.InstrumentClass) float64 {
	if row, ok := compatibility[class]; ok {
		if v, ok := row[instrument]; ok {
			return v
		}
	}
	return defaultCompatibility
}
