package strategy

import (
	"github.com/sawpanic/stratswitch/internal/domain/indicators"
	"github.com/sawpanic/stratswitch/internal/domain/market"
)

// Parameter names shared with the simulation engine.
const (
	ParamRiskCap       = "risk_cap"
	ParamStopLossPct   = "stop_loss_pct"
	ParamTakeProfitPct = "take_profit_pct"

	defaultRiskCap       = 0.02
	defaultStopLossPct   = 0.02
	defaultTakeProfitPct = 0.04
)

// Builtins returns the reference strategies shipped with the binary.
func Builtins() []Descriptor {
	return []Descriptor{
		{
			ID:              "ma_crossover",
			Name:            "Moving Average Crossover",
			Class:           ClassTrendFollowing,
			PreferredRegime: PreferTrending,
			DefaultParams: Params{
				"fast_period":      10,
				"slow_period":      30,
				ParamRiskCap:       defaultRiskCap,
				ParamStopLossPct:   defaultStopLossPct,
				ParamTakeProfitPct: defaultTakeProfitPct,
			},
			WarmupBars: 31,
			Signal:     maCrossover,
		},
		{
			ID:              "rsi_reversion",
			Name:            "RSI Mean Reversion",
			Class:           ClassMeanReversion,
			PreferredRegime: PreferRanging,
			DefaultParams: Params{
				"rsi_period":       14,
				"oversold":         30,
				"overbought":       70,
				ParamRiskCap:       defaultRiskCap,
				ParamStopLossPct:   defaultStopLossPct,
				ParamTakeProfitPct: 0.02,
			},
			WarmupBars: 15,
			Signal:     rsiReversion,
		},
		{
			ID:              "donchian_breakout",
			Name:            "Donchian Channel Breakout",
			Class:           ClassBreakout,
			PreferredRegime: PreferTrending,
			DefaultParams: Params{
				"channel_period":   20,
				ParamRiskCap:       defaultRiskCap,
				ParamStopLossPct:   0.03,
				ParamTakeProfitPct: 0.06,
			},
			WarmupBars: 21,
			Signal:     donchianBreakout,
		},
		{
			ID:              "momentum_roc",
			Name:            "Rate-of-Change Momentum",
			Class:           ClassMomentum,
			PreferredRegime: PreferBoth,
			DefaultParams: Params{
				"roc_period":       12,
				"threshold":        0.005,
				ParamRiskCap:       defaultRiskCap,
				ParamStopLossPct:   defaultStopLossPct,
				ParamTakeProfitPct: defaultTakeProfitPct,
			},
			WarmupBars: 13,
			Signal:     momentumROC,
		},
	}
}

// RegisterBuiltins adds every reference strategy to r.
func RegisterBuiltins(r *Registry) error {
	for _, d := range Builtins() {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func closesOf(bars []market.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func lastMean(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	return indicators.Mean(closes[len(closes)-period:]), true
}

func maCrossover(bars []market.Bar, p Params) Signal {
	closes := closesOf(bars)
	fast, okFast := lastMean(closes, int(p.Get("fast_period", 10)))
	slow, okSlow := lastMean(closes, int(p.Get("slow_period", 30)))
	if !okFast || !okSlow {
		return Flat
	}
	switch {
	case fast > slow:
		return Long
	case fast < slow:
		return Short
	default:
		return Flat
	}
}

func rsiReversion(bars []market.Bar, p Params) Signal {
	period := int(p.Get("rsi_period", 14))
	if len(bars) < period+1 {
		return Flat
	}
	// only the recent window matters for Wilder smoothing to settle
	window := bars
	if len(window) > period*5 {
		window = window[len(window)-period*5:]
	}
	rsi := indicators.RSI(closesOf(window), period)
	switch {
	case rsi < p.Get("oversold", 30):
		return Long
	case rsi > p.Get("overbought", 70):
		return Short
	default:
		return Flat
	}
}

func donchianBreakout(bars []market.Bar, p Params) Signal {
	period := int(p.Get("channel_period", 20))
	high, okHigh := indicators.HighestHigh(bars, period)
	low, okLow := indicators.LowestLow(bars, period)
	if !okHigh || !okLow {
		return Flat
	}
	last := bars[len(bars)-1].Close
	switch {
	case last > high:
		return Long
	case last < low:
		return Short
	default:
		return Flat
	}
}

func momentumROC(bars []market.Bar, p Params) Signal {
	roc, ok := indicators.RateOfChange(closesOf(bars), int(p.Get("roc_period", 12)))
	if !ok {
		return Flat
	}
	threshold := p.Get("threshold", 0.005)
	switch {
	case roc > threshold:
		return Long
	case roc < -threshold:
		return Short
	default:
		return Flat
	}
}
