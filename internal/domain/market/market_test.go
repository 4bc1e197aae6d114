package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyInstrument(t *testing.T) {
	tests := []struct {
		instrument string
		expected   InstrumentClass
	}{
		{"EURUSD", ClassCurrencyPair},
		{"gbpjpy", ClassCurrencyPair},
		{"USDTRY", ClassCurrencyPair},
		{"XAUUSD", ClassPreciousMetal},
		{"XAGUSD", ClassPreciousMetal},
		{"BTCUSD", ClassCryptoAsset},
		{"ETH-USDT", ClassCryptoAsset},
		{"US30", ClassRateIndex},
		{"NAS100", ClassRateIndex},
		{"GER40", ClassRateIndex},
		{" spx500 ", ClassRateIndex},
	}

	for _, tt := range tests {
		t.Run(tt.instrument, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyInstrument(tt.instrument))
		})
	}
}

func TestPriceSeries_Tail(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := PriceSeries{Instrument: "EURUSD"}
	for i := 0; i < 10; i++ {
		series.Bars = append(series.Bars, Bar{Time: base.Add(time.Duration(i) * time.Hour), Close: float64(i)})
	}

	tail := series.Tail(3)
	require.Equal(t, 3, tail.Len())
	assert.Equal(t, 7.0, tail.Bars[0].Close)
	assert.Equal(t, 9.0, tail.Bars[2].Close)
	assert.Equal(t, 3, cap(tail.Bars))

	assert.Equal(t, 10, series.Tail(0).Len())
	assert.Equal(t, 10, series.Tail(50).Len())
}

func TestPriceSeries_Validate(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, PriceSeries{}.Validate(), ErrEmptySeries)
	})

	t.Run("duplicate_timestamp", func(t *testing.T) {
		s := PriceSeries{Bars: []Bar{{Time: base}, {Time: base}}}
		assert.ErrorIs(t, s.Validate(), ErrUnorderedSeries)
	})

	t.Run("ascending", func(t *testing.T) {
		s := PriceSeries{Bars: []Bar{{Time: base}, {Time: base.Add(time.Minute)}}}
		assert.NoError(t, s.Validate())
	})
}

func TestRunMetrics_ZeroTrades(t *testing.T) {
	var m RunMetrics
	assert.Equal(t, 0.0, m.WinRate())
	assert.Equal(t, 0.0, m.ReturnPct())
}
