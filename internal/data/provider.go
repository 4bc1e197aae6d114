package data

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sawpanic/stratswitch/internal/domain/market"
)

// ErrNoData means the provider has no history for an instrument. Callers
// skip the instrument for the cycle.
var ErrNoData = errors.New("no price data")

// Provider supplies recent price history.
type Provider interface {
	// History returns up to bars most recent bars for instrument.
	History(ctx context.Context, instrument string, bars int) (market.PriceSeries, error)
}

// StaticProvider serves fixed in-memory series.
type StaticProvider struct {
	mu     sync.RWMutex
	series map[string]market.PriceSeries
}

// NewStaticProvider creates a provider over the given series keyed by
// instrument.
func NewStaticProvider(series map[string]market.PriceSeries) *StaticProvider {
	p := &StaticProvider{series: make(map[string]market.PriceSeries, len(series))}
	for k, v := range series {
		p.series[k] = v
	}
	return p
}

// Put replaces the series for instrument.
func (p *StaticProvider) Put(instrument string, s market.PriceSeries) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[instrument] = s
}

// History returns the tail of the stored series.
func (p *StaticProvider) History(ctx context.Context, instrument string, bars int) (market.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return market.PriceSeries{}, err
	}

	p.mu.RLock()
	s, ok := p.series[instrument]
	p.mu.RUnlock()

	if !ok || s.Empty() {
		return market.PriceSeries{}, fmt.Errorf("%w: %s", ErrNoData, instrument)
	}
	return s.Tail(bars), nil
}
