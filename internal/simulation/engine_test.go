package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stratswitch/internal/domain/market"
	"github.com/sawpanic/stratswitch/internal/strategy"
)

func seriesFromCloses(instrument string, closes ...float64) market.PriceSeries {
	base := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = market.Bar{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Open:  open,
			High:  max(open, c) + 0.1,
			Low:   min(open, c) - 0.1,
			Close: c,
		}
	}
	return market.PriceSeries{Instrument: instrument, Bars: bars}
}

// scripted emits script[i] on bar i and flat otherwise.
func scripted(id string, script map[int]strategy.Signal) strategy.Descriptor {
	return strategy.Descriptor{
		ID:              id,
		Class:           strategy.ClassMomentum,
		PreferredRegime: strategy.PreferBoth,
		WarmupBars:      1,
		Signal: func(bars []market.Bar, _ strategy.Params) strategy.Signal {
			return script[len(bars)-1]
		},
	}
}

func alwaysLong(id string) strategy.Descriptor {
	return strategy.Descriptor{
		ID:              id,
		Class:           strategy.ClassTrendFollowing,
		PreferredRegime: strategy.PreferTrending,
		WarmupBars:      1,
		Signal: func([]market.Bar, strategy.Params) strategy.Signal {
			return strategy.Long
		},
	}
}

func newTestEngine(t *testing.T, descriptors ...strategy.Descriptor) *Engine {
	t.Helper()
	r := strategy.NewRegistry()
	for _, d := range descriptors {
		require.NoError(t, r.Register(d))
	}
	return NewEngine(r, Config{})
}

func TestReplay_Ledger(t *testing.T) {
	e := newTestEngine(t, scripted("scripted", map[int]strategy.Signal{
		1: strategy.Long,
		4: strategy.Short,
		8: strategy.Long,
	}))

	res, err := e.Replay(context.Background(), Request{
		StrategyID: "scripted",
		Params:     strategy.Params{strategy.ParamStopLossPct: 0.5, strategy.ParamTakeProfitPct: 0.5},
		Window:     seriesFromCloses("EURUSD", 100, 100, 100, 102, 104, 103, 101, 100, 100, 100),
		Instrument: "EURUSD",
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)

	assert.Equal(t, strategy.Long, res.Trades[0].Direction)
	assert.Equal(t, ExitSignalReversal, res.Trades[0].Exit)
	assert.InDelta(t, 79.7, res.Trades[0].PnL, 1e-9)

	assert.Equal(t, strategy.Short, res.Trades[1].Direction)
	assert.InDelta(t, 77.233763, res.Trades[1].PnL, 1e-5)

	assert.Equal(t, ExitEndOfData, res.Trades[2].Exit)
	assert.Less(t, res.Trades[2].PnL, 0.0)

	m := res.Metrics
	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.InDelta(t, 156.629055, m.NetProfit, 1e-5)
	assert.InDelta(t, 156.933763, m.GrossProfit, 1e-5)
	assert.InDelta(t, 78.466881, m.AvgWin, 1e-5)
	assert.InDelta(t, -0.304708, m.AvgLoss, 1e-5)
	assert.InDelta(t, 0.907099, m.SpreadCost, 1e-5)
	assert.Equal(t, 10000.0, m.StartCapital)
	assert.InDelta(t, 10156.629055, m.EndCapital, 1e-5)
	assert.GreaterOrEqual(t, m.MaxDrawdownPct, 0.0)
	assert.Less(t, m.MaxDrawdownPct, 0.01)
}

func TestReplay_StopLoss(t *testing.T) {
	e := newTestEngine(t, alwaysLong("long"))

	res, err := e.Replay(context.Background(), Request{
		StrategyID: "long",
		Params:     strategy.Params{strategy.ParamStopLossPct: 0.02, strategy.ParamTakeProfitPct: 0},
		Window:     seriesFromCloses("EURUSD", 100, 100, 99, 97, 95),
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	assert.Equal(t, ExitStopLoss, res.Trades[0].Exit)
	assert.InDelta(t, 98.0, res.Trades[0].ExitPrice, 1e-9)
	assert.Equal(t, ExitStopLoss, res.Trades[1].Exit)
	assert.InDelta(t, 97.0, res.Trades[1].EntryPrice, 1e-9)
	assert.InDelta(t, 95.06, res.Trades[1].ExitPrice, 1e-9)

	assert.Equal(t, 2, res.Metrics.LosingTrades)
	assert.Greater(t, res.Metrics.MaxDrawdownPct, 0.0)
	assert.Less(t, res.Metrics.EndCapital, res.Metrics.StartCapital)
	assert.Equal(t, "EURUSD", res.Instrument)
}

func TestProtectiveExit(t *testing.T) {
	tests := []struct {
		name      string
		direction strategy.Signal
		bar       market.Bar
		price     float64
		reason    ExitReason
	}{
		{"long gap through stop fills at open", strategy.Long, market.Bar{Open: 95, High: 96, Low: 94}, 95, ExitStopLoss},
		{"long stop beats target", strategy.Long, market.Bar{Open: 100, High: 106, Low: 97}, 98, ExitStopLoss},
		{"long target", strategy.Long, market.Bar{Open: 101, High: 105, Low: 100.5}, 104, ExitTakeProfit},
		{"short stop", strategy.Short, market.Bar{Open: 101, High: 103, Low: 100.5}, 102, ExitStopLoss},
		{"short target gap", strategy.Short, market.Bar{Open: 95, High: 95.5, Low: 94}, 95, ExitTakeProfit},
		{"inside range", strategy.Long, market.Bar{Open: 100, High: 101, Low: 99}, 0, ExitNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &book{stopPct: 0.02, targetPct: 0.04, open: &Trade{Direction: tt.direction, EntryPrice: 100}}
			price, reason := b.protectiveExit(tt.bar)
			assert.Equal(t, tt.reason, reason)
			assert.InDelta(t, tt.price, price, 1e-9)
		})
	}
}

func TestReplay_Errors(t *testing.T) {
	e := newTestEngine(t, alwaysLong("long"))

	_, err := e.Run(context.Background(), Request{StrategyID: "missing", Window: seriesFromCloses("EURUSD", 1, 2, 3)})
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)

	_, err = e.Run(context.Background(), Request{StrategyID: "long", Window: seriesFromCloses("EURUSD", 1, 2)})
	assert.ErrorIs(t, err, ErrInsufficientBars)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, Request{StrategyID: "long", Window: seriesFromCloses("EURUSD", 1, 2, 3, 4)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_BuiltinOnTrend(t *testing.T) {
	r := strategy.NewRegistry()
	require.NoError(t, strategy.RegisterBuiltins(r))
	e := NewEngine(r, DefaultConfig())

	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i)
	}

	m, err := e.Run(context.Background(), Request{StrategyID: "ma_crossover", Window: seriesFromCloses("BTCUSD", closes...), Instrument: "BTCUSD"})
	require.NoError(t, err)
	assert.Greater(t, m.TotalTrades, 0)
	assert.Greater(t, m.NetProfit, 0.0)
	assert.Equal(t, m.TotalTrades, m.WinningTrades+m.LosingTrades)
}

func TestExitReason_String(t *testing.T) {
	assert.Equal(t, "stop_loss", ExitStopLoss.String())
	assert.Equal(t, "end_of_data", ExitEndOfData.String())
	assert.Equal(t, "unknown", ExitReason(42).String())
}
