package indicators

import (
	"math"

	"github.com/sawpanic/stratswitch/internal/domain/market"
)

// RollingMean returns the simple moving average of values over period.
// The result is aligned to the end of the input: result[len-1] covers the
// last period values. Returns nil when there is not enough data.
func RollingMean(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	out := make([]float64, len(values)-period+1)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[0] = sum / float64(period)

	for i := period; i < len(values); i++ {
		sum += values[i] - values[i-period]
		out[i-period+1] = sum / float64(period)
	}
	return out
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// TrueRange computes max(high-low, |high-prevClose|, |low-prevClose|) for
// every bar after the first.
func TrueRange(bars []market.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}

	out := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		cur := bars[i]
		prevClose := bars[i-1].Close

		hl := cur.High - cur.Low
		hc := math.Abs(cur.High - prevClose)
		lc := math.Abs(cur.Low - prevClose)
		out[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR returns the rolling mean of true range over period.
func ATR(bars []market.Bar, period int) []float64 {
	return RollingMean(TrueRange(bars), period)
}

// DirectionalIndex returns the DX series: 100*|+DI - -DI| / (+DI + -DI),
// where the directional indicators come from period rolling means of the
// directional movements and true range.
func DirectionalIndex(bars []market.Bar, period int) []float64 {
	if len(bars) < period+1 {
		return nil
	}

	tr := TrueRange(bars)
	plusDM := make([]float64, len(bars)-1)
	minusDM := make([]float64, len(bars)-1)

	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low

		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	trMean := RollingMean(tr, period)
	plusMean := RollingMean(plusDM, period)
	minusMean := RollingMean(minusDM, period)

	dx := make([]float64, len(trMean))
	for i := range trMean {
		if trMean[i] <= 0 {
			continue
		}
		pdi := 100.0 * plusMean[i] / trMean[i]
		mdi := 100.0 * minusMean[i] / trMean[i]
		if sum := pdi + mdi; sum > 0 {
			dx[i] = 100.0 * math.Abs(pdi-mdi) / sum
		}
	}
	return dx
}

// ADX smooths the DX series with a second rolling mean over period.
func ADX(bars []market.Bar, period int) []float64 {
	return RollingMean(DirectionalIndex(bars, period), period)
}

// RSI computes the Relative Strength Index of the closes using Wilder's
// smoothing. Returns 50 when there is not enough data.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// HighestHigh returns the max high over the last period bars, excluding the
// most recent bar. ok is false when there is not enough data.
func HighestHigh(bars []market.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	window := bars[len(bars)-1-period : len(bars)-1]
	high := window[0].High
	for _, b := range window[1:] {
		high = math.Max(high, b.High)
	}
	return high, true
}

// LowestLow mirrors HighestHigh for lows.
func LowestLow(bars []market.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	window := bars[len(bars)-1-period : len(bars)-1]
	low := window[0].Low
	for _, b := range window[1:] {
		low = math.Min(low, b.Low)
	}
	return low, true
}

// RateOfChange returns the fractional change of the last close versus the
// close period bars earlier.
func RateOfChange(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	prev := closes[len(closes)-1-period]
	if prev == 0 {
		return 0, false
	}
	return (closes[len(closes)-1] - prev) / prev, true
}

// Clamp01 limits v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
