package simulation

import (
	"math"
	"time"

	"github.com/sawpanic/stratswitch/internal/domain/market"
	"github.com/sawpanic/stratswitch/internal/strategy"
)

// ExitReason records why a simulated position was closed. Protective exits
// take precedence over signal exits; a stop beats a target on the same bar.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitStopLoss
	ExitTakeProfit
	ExitSignalReversal
	ExitEndOfData
)

func (r ExitReason) String() string {
	switch r {
	case ExitNone:
		return "none"
	case ExitStopLoss:
		return "stop_loss"
	case ExitTakeProfit:
		return "take_profit"
	case ExitSignalReversal:
		return "signal_reversal"
	case ExitEndOfData:
		return "end_of_data"
	default:
		return "unknown"
	}
}

// Trade is one closed simulated position.
type Trade struct {
	Direction  strategy.Signal `json:"direction"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	EntryPrice float64         `json:"entry_price"`
	ExitPrice  float64         `json:"exit_price"`
	Notional   float64         `json:"notional"`
	SpreadCost float64         `json:"spread_cost"`
	PnL        float64         `json:"pnl"`
	Exit       ExitReason      `json:"exit"`
}

// book is the running account state of one replay.
type book struct {
	equity         float64
	peak           float64
	maxDrawdownPct float64

	riskCap    float64
	leverage   float64
	stopPct    float64
	targetPct  float64
	spreadRate float64

	open   *Trade
	trades []Trade
}

func (b *book) enter(direction strategy.Signal, at time.Time, price float64) {
	if price <= 0 || b.equity <= 0 {
		return
	}
	b.open = &Trade{
		Direction:  direction,
		EntryTime:  at,
		EntryPrice: price,
		Notional:   b.equity * b.riskCap * b.leverage,
	}
}

// protectiveExit checks the bar's range against stop and target levels.
// Gaps through a level fill at the open.
func (b *book) protectiveExit(bar market.Bar) (float64, ExitReason) {
	t := b.open
	dir := float64(t.Direction)

	if b.stopPct > 0 {
		stop := t.EntryPrice * (1 - dir*b.stopPct)
		if t.Direction == strategy.Long && bar.Low <= stop {
			return math.Min(stop, bar.Open), ExitStopLoss
		}
		if t.Direction == strategy.Short && bar.High >= stop {
			return math.Max(stop, bar.Open), ExitStopLoss
		}
	}
	if b.targetPct > 0 {
		target := t.EntryPrice * (1 + dir*b.targetPct)
		if t.Direction == strategy.Long && bar.High >= target {
			return math.Max(target, bar.Open), ExitTakeProfit
		}
		if t.Direction == strategy.Short && bar.Low <= target {
			return math.Min(target, bar.Open), ExitTakeProfit
		}
	}
	return 0, ExitNone
}

func (b *book) close(at time.Time, price float64, reason ExitReason) {
	t := *b.open
	t.ExitTime = at
	t.ExitPrice = price
	t.Exit = reason
	t.SpreadCost = t.Notional * b.spreadRate
	t.PnL = b.unrealized(price) - t.SpreadCost

	b.equity += t.PnL
	b.trades = append(b.trades, t)
	b.open = nil
}

func (b *book) unrealized(price float64) float64 {
	if b.open == nil || b.open.EntryPrice == 0 {
		return 0
	}
	return float64(b.open.Direction) * (price - b.open.EntryPrice) / b.open.EntryPrice * b.open.Notional
}

// mark updates peak equity and drawdown at the bar close.
func (b *book) mark(price float64) {
	eq := b.equity + b.unrealized(price)
	if eq > b.peak {
		b.peak = eq
	}
	if b.peak > 0 {
		if dd := (b.peak - eq) / b.peak * 100; dd > b.maxDrawdownPct {
			b.maxDrawdownPct = dd
		}
	}
}
