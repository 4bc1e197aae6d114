package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stratswitch/internal/domain/market"
)

func barsFromCloses(closes ...float64) []market.Bar {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Time: base.Add(time.Duration(i) * time.Hour), Open: c, High: c + 0.1, Low: c - 0.1, Close: c}
	}
	return bars
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))

	assert.Equal(t, []string{"donchian_breakout", "ma_crossover", "momentum_roc", "rsi_reversion"}, r.IDs())

	d, err := r.Lookup("ma_crossover")
	require.NoError(t, err)
	assert.Equal(t, ClassTrendFollowing, d.Class)
	assert.Equal(t, PreferTrending, d.PreferredRegime)
	assert.Equal(t, 0.02, d.DefaultParams.Get(ParamRiskCap, 0))
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("missing")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	assert.ErrorIs(t, r.Register(Descriptor{}), ErrInvalidDescriptor)
	assert.ErrorIs(t, r.Register(Descriptor{ID: "x", PreferredRegime: PreferBoth}), ErrInvalidDescriptor)
	assert.ErrorIs(t, r.Register(Descriptor{ID: "x", Signal: maCrossover, PreferredRegime: "sideways"}), ErrInvalidDescriptor)

	valid := Descriptor{ID: "x", Signal: maCrossover, PreferredRegime: PreferBoth}
	require.NoError(t, r.Register(valid))
	assert.ErrorIs(t, r.Register(valid), ErrDuplicateStrategy)

	d, err := r.Lookup("x")
	require.NoError(t, err)
	assert.NotNil(t, d.DefaultParams)

	assert.Panics(t, func() { r.MustRegister(valid) })
}

func TestParams_CloneIsIndependent(t *testing.T) {
	p := Params{"a": 1}
	c := p.Clone()
	c["a"] = 2
	assert.Equal(t, 1.0, p["a"])
	assert.Equal(t, 5.0, p.Get("missing", 5))
}

func TestBuiltinSignals(t *testing.T) {
	byID := map[string]Descriptor{}
	for _, d := range Builtins() {
		byID[d.ID] = d
	}

	up := barsFromCloses(ramp(60, 100, 1)...)
	down := barsFromCloses(ramp(60, 200, -1)...)

	tests := []struct {
		id       string
		bars     []market.Bar
		expected Signal
	}{
		{"ma_crossover", up, Long},
		{"ma_crossover", down, Short},
		{"ma_crossover", up[:5], Flat},
		{"rsi_reversion", up, Short},
		{"rsi_reversion", down, Long},
		{"donchian_breakout", up, Long},
		{"donchian_breakout", down, Short},
		{"momentum_roc", up, Long},
		{"momentum_roc", down, Short},
		{"momentum_roc", barsFromCloses(100, 100), Flat},
	}

	for _, tt := range tests {
		d := byID[tt.id]
		got := d.Signal(tt.bars, d.DefaultParams)
		assert.Equal(t, tt.expected, got, "%s over %d bars", tt.id, len(tt.bars))
	}
}
