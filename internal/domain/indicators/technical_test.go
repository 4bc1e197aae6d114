package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stratswitch/internal/domain/market"
)

func linearBars(n int, start, step float64) []market.Bar {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = market.Bar{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Open:  c - step/2,
			High:  c + 0.5,
			Low:   c - 0.5,
			Close: c,
		}
	}
	return bars
}

func TestRollingMean(t *testing.T) {
	out := RollingMean([]float64{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, []float64{1.5, 2.5, 3.5, 4.5}, out)

	assert.Nil(t, RollingMean([]float64{1}, 2))
	assert.Nil(t, RollingMean([]float64{1, 2}, 0))
}

func TestTrueRange(t *testing.T) {
	bars := []market.Bar{
		{High: 10, Low: 9, Close: 9.5},
		{High: 12, Low: 10, Close: 11},
	}
	tr := TrueRange(bars)
	require.Len(t, tr, 1)
	assert.Equal(t, 2.5, tr[0]) // high - prevClose dominates
}

func TestADX_StrongTrend(t *testing.T) {
	bars := linearBars(80, 100, 1.0)
	adx := ADX(bars, 14)
	require.NotEmpty(t, adx)
	assert.Greater(t, adx[len(adx)-1], 90.0)
}

func TestADX_InsufficientData(t *testing.T) {
	assert.Empty(t, ADX(linearBars(10, 100, 1), 14))
}

func TestRSI(t *testing.T) {
	t.Run("insufficient_data_is_neutral", func(t *testing.T) {
		assert.Equal(t, 50.0, RSI([]float64{1, 2}, 14))
	})

	t.Run("only_gains", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = float64(i + 1)
		}
		assert.Equal(t, 100.0, RSI(closes, 14))
	})

	t.Run("flat_is_neutral", func(t *testing.T) {
		closes := make([]float64, 30)
		for i := range closes {
			closes[i] = 5
		}
		assert.Equal(t, 50.0, RSI(closes, 14))
	})
}

func TestDonchianBounds(t *testing.T) {
	bars := linearBars(30, 100, 1)
	high, ok := HighestHigh(bars, 20)
	require.True(t, ok)
	assert.InDelta(t, bars[len(bars)-2].High, high, 1e-9)

	low, ok := LowestLow(bars, 20)
	require.True(t, ok)
	assert.InDelta(t, bars[len(bars)-21].Low, low, 1e-9)

	_, ok = HighestHigh(bars[:5], 20)
	assert.False(t, ok)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.25, Clamp01(0.25))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}
