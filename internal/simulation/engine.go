package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sawpanic/stratswitch/internal/domain/market"
	"github.com/sawpanic/stratswitch/internal/strategy"
)

// ErrInsufficientBars is returned when the window does not extend past the
// strategy's warm-up.
var ErrInsufficientBars = errors.New("insufficient bars for simulation")

// ctxCheckInterval is how many bars are replayed between cancellation checks.
const ctxCheckInterval = 64

// Request describes one simulated run.
type Request struct {
	StrategyID string
	Params     strategy.Params
	Window     market.PriceSeries
	Instrument string
}

// StrategySource resolves strategy descriptors by id.
type StrategySource interface {
	Lookup(id string) (strategy.Descriptor, error)
}

// Config controls the replay economics.
type Config struct {
	StartingCapital float64                            `yaml:"starting_capital"`
	Leverage        float64                            `yaml:"leverage"`
	SpreadBps       map[market.InstrumentClass]float64 `yaml:"spread_bps"`
}

// DefaultConfig returns the production replay settings.
func DefaultConfig() Config {
	return Config{
		StartingCapital: 10000,
		Leverage:        10,
		SpreadBps: map[market.InstrumentClass]float64{
			market.ClassCurrencyPair:  1.5,
			market.ClassRateIndex:     2.0,
			market.ClassPreciousMetal: 3.0,
			market.ClassCryptoAsset:   8.0,
		},
	}
}

// Result is the full outcome of a replay.
type Result struct {
	StrategyID string
	Instrument string
	Metrics    market.RunMetrics
	Trades     []Trade
	Duration   time.Duration
}

// Engine replays a strategy's signals bar by bar over a historical window.
// It holds at most one position at a time and fills at bar close, except for
// protective exits which fill at their trigger level.
type Engine struct {
	strategies StrategySource
	cfg        Config
}

// NewEngine creates a replay engine. Zero-valued config fields fall back to
// DefaultConfig.
func NewEngine(strategies StrategySource, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.StartingCapital <= 0 {
		cfg.StartingCapital = def.StartingCapital
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = def.Leverage
	}
	if cfg.SpreadBps == nil {
		cfg.SpreadBps = def.SpreadBps
	}
	return &Engine{strategies: strategies, cfg: cfg}
}

// Run replays the request and returns only its summary metrics.
func (e *Engine) Run(ctx context.Context, req Request) (market.RunMetrics, error) {
	res, err := e.Replay(ctx, req)
	if err != nil {
		return market.RunMetrics{}, err
	}
	return res.Metrics, nil
}

// Replay runs the strategy over req.Window and returns the trade ledger.
func (e *Engine) Replay(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	d, err := e.strategies.Lookup(req.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", req.StrategyID, err)
	}

	params := d.DefaultParams.Clone()
	for k, v := range req.Params {
		params[k] = v
	}

	warmup := d.WarmupBars
	if warmup < 1 {
		warmup = 1
	}
	bars := req.Window.Bars
	if len(bars) <= warmup+1 {
		return nil, fmt.Errorf("%w: %s needs more than %d bars, got %d", ErrInsufficientBars, req.StrategyID, warmup+1, len(bars))
	}

	instrument := req.Instrument
	if instrument == "" {
		instrument = req.Window.Instrument
	}

	b := &book{
		equity:     e.cfg.StartingCapital,
		peak:       e.cfg.StartingCapital,
		riskCap:    params.Get(strategy.ParamRiskCap, 0.02),
		leverage:   e.cfg.Leverage,
		stopPct:    params.Get(strategy.ParamStopLossPct, 0),
		targetPct:  params.Get(strategy.ParamTakeProfitPct, 0),
		spreadRate: e.cfg.SpreadBps[market.ClassifyInstrument(instrument)] / 10000,
	}

	last := len(bars) - 1
	for i := warmup; i <= last; i++ {
		if (i-warmup)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("simulate %s on %s cancelled: %w", req.StrategyID, instrument, err)
			}
		}

		bar := bars[i]
		if b.open != nil {
			if price, reason := b.protectiveExit(bar); reason != ExitNone {
				b.close(bar.Time, price, reason)
			}
		}

		signal := d.Signal(bars[:i+1], params)
		if b.open != nil && signal == -b.open.Direction {
			b.close(bar.Time, bar.Close, ExitSignalReversal)
		}
		if b.open == nil && signal != strategy.Flat && i < last {
			b.enter(signal, bar.Time, bar.Close)
		}

		b.mark(bar.Close)
	}
	if b.open != nil {
		b.close(bars[last].Time, bars[last].Close, ExitEndOfData)
		b.mark(bars[last].Close)
	}

	return &Result{
		StrategyID: req.StrategyID,
		Instrument: instrument,
		Metrics:    summarize(b.trades, e.cfg.StartingCapital, b.equity, b.maxDrawdownPct),
		Trades:     b.trades,
		Duration:   time.Since(start),
	}, nil
}

func summarize(trades []Trade, startCapital, endCapital, maxDrawdownPct float64) market.RunMetrics {
	m := market.RunMetrics{
		TotalTrades:    len(trades),
		StartCapital:   startCapital,
		EndCapital:     endCapital,
		MaxDrawdownPct: maxDrawdownPct,
	}

	var grossLoss float64
	for _, t := range trades {
		m.NetProfit += t.PnL
		m.SpreadCost += t.SpreadCost
		switch {
		case t.PnL > 0:
			m.WinningTrades++
			m.GrossProfit += t.PnL
		case t.PnL < 0:
			m.LosingTrades++
			grossLoss += t.PnL
		}
	}
	if m.WinningTrades > 0 {
		m.AvgWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = grossLoss / float64(m.LosingTrades)
	}
	return m
}
