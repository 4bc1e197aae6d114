package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/domain/market"
)

const sampleCSV = `time,open,high,low,close,volume
2025-01-01T00:00:00Z,1.10,1.12,1.09,1.11,1000
2025-01-01T01:00:00Z,1.11,1.13,1.10,1.12,1200
1735693200,1.12,1.14,1.11,1.13,900
`

func TestReadBars(t *testing.T) {
	s, err := ReadBars(strings.NewReader(sampleCSV), "EURUSD")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, "EURUSD", s.Instrument)
	assert.Equal(t, 1.11, s.Bars[0].Close)
	assert.Equal(t, 1200.0, s.Bars[1].Volume)
	assert.Equal(t, time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC), s.Bars[1].Time)
	assert.Equal(t, time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC).Add(time.Hour), s.Bars[2].Time)
}

func TestReadBars_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"short row", "2025-01-01T00:00:00Z,1,2,3\n"},
		{"bad number", "2025-01-01T00:00:00Z,1,2,x,4\n"},
		{"bad time", "yesterday,1,2,3,4\n"},
		{"unordered", "1735693200,1,2,0.5,1\n1735689600,1,2,0.5,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBars(strings.NewReader(tt.input), "X")
			assert.Error(t, err)
		})
	}
}

func TestCSVProvider_History(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EURUSD.csv"), []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "GBPUSD.csv"), []byte("time,open,high,low,close\n"), 0o644))
	p := NewCSVProvider(dir)

	s, err := p.History(context.Background(), "eurusd", 2)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 1.13, s.Bars[1].Close)

	_, err = p.History(context.Background(), "USDJPY", 10)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = p.History(context.Background(), "GBPUSD", 10)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestStaticProvider(t *testing.T) {
	series := market.PriceSeries{Instrument: "XAUUSD", Bars: []market.Bar{
		{Time: time.Unix(0, 0), Close: 1},
		{Time: time.Unix(60, 0), Close: 2},
		{Time: time.Unix(120, 0), Close: 3},
	}}
	p := NewStaticProvider(map[string]market.PriceSeries{"XAUUSD": series})

	s, err := p.History(context.Background(), "XAUUSD", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, s.Closes())

	_, err = p.History(context.Background(), "US30", 2)
	assert.ErrorIs(t, err, ErrNoData)

	p.Put("US30", series)
	_, err = p.History(context.Background(), "US30", 2)
	assert.NoError(t, err)
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (c *countingProvider) History(_ context.Context, instrument string, _ int) (market.PriceSeries, error) {
	c.calls.Add(1)
	if c.err != nil {
		return market.PriceSeries{}, c.err
	}
	return market.PriceSeries{Instrument: instrument, Bars: []market.Bar{{Time: time.Unix(0, 0), Close: 42}}}, nil
}

func TestCachedProvider(t *testing.T) {
	next := &countingProvider{}
	mem := NewMemoryCache().(*memoryCache)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }
	p := NewCachedProvider(next, mem, time.Minute)

	for i := 0; i < 3; i++ {
		s, err := p.History(context.Background(), "BTCUSD", 10)
		require.NoError(t, err)
		assert.Equal(t, 42.0, s.Bars[0].Close)
	}
	assert.Equal(t, int32(1), next.calls.Load())

	now = now.Add(2 * time.Minute)
	_, err := p.History(context.Background(), "BTCUSD", 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())

	failing := NewCachedProvider(&countingProvider{err: ErrNoData}, NewMemoryCache(), time.Minute)
	_, err = failing.History(context.Background(), "BTCUSD", 10)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGuardedProvider_TripsOnFailures(t *testing.T) {
	cfg := config.DefaultDataConfig()
	cfg.RPS = 1000
	cfg.Burst = 1000
	cfg.Circuit.FailureThreshold = 3
	cfg.Circuit.OpenTimeout = time.Hour

	next := &countingProvider{err: errors.New("disk unavailable")}
	g := NewGuardedProvider("history-test", next, cfg)

	for i := 0; i < 3; i++ {
		_, err := g.History(context.Background(), "EURUSD", 10)
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.History(context.Background(), "EURUSD", 10)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestGuardedProvider_NoDataDoesNotTrip(t *testing.T) {
	cfg := config.DefaultDataConfig()
	cfg.RPS = 1000
	cfg.Burst = 1000
	cfg.Circuit.FailureThreshold = 2

	g := NewGuardedProvider("history-nodata", &countingProvider{err: ErrNoData}, cfg)
	for i := 0; i < 5; i++ {
		_, err := g.History(context.Background(), "EURUSD", 10)
		assert.ErrorIs(t, err, ErrNoData)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())

	ok := NewGuardedProvider("history-ok", &countingProvider{}, cfg)
	s, err := ok.History(context.Background(), "EURUSD", 10)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", s.Instrument)
}

func TestGuardedProvider_RespectsContext(t *testing.T) {
	cfg := config.DefaultDataConfig()
	cfg.RPS = 0.001
	cfg.Burst = 1

	g := NewGuardedProvider("history-slow", &countingProvider{}, cfg)
	_, err := g.History(context.Background(), "EURUSD", 10)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.History(ctx, "EURUSD", 10)
	assert.Error(t, err)
}
