package data

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/domain/market"
)

// GuardedProvider rate limits history fetches per instrument and trips a
// circuit breaker when the wrapped provider keeps failing. ErrNoData is a
// normal outcome and never counts as a failure.
type GuardedProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewGuardedProvider wraps next using the rate and breaker settings in cfg.
func NewGuardedProvider(name string, next Provider, cfg config.DataConfig) *GuardedProvider {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.Circuit.HalfOpenRequests,
		Interval:    cfg.Circuit.Interval,
		Timeout:     cfg.Circuit.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Circuit.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("History provider breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled)
		},
	}

	return &GuardedProvider{
		next:     next,
		breaker:  gobreaker.NewCircuitBreaker(st),
		limiters: make(map[string]*rate.Limiter),
		rps:      cfg.RPS,
		burst:    cfg.Burst,
	}
}

// State exposes the breaker state for status reporting.
func (g *GuardedProvider) State() gobreaker.State {
	return g.breaker.State()
}

func (g *GuardedProvider) limiter(instrument string) *rate.Limiter {
	g.mu.RLock()
	l, ok := g.limiters[instrument]
	g.mu.RUnlock()
	if ok {
		return l
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limiters[instrument]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(g.rps), g.burst)
	g.limiters[instrument] = l
	return l
}

// History waits for a rate token, then fetches through the breaker.
func (g *GuardedProvider) History(ctx context.Context, instrument string, bars int) (market.PriceSeries, error) {
	if err := g.limiter(instrument).Wait(ctx); err != nil {
		return market.PriceSeries{}, fmt.Errorf("rate limit wait for %s: %w", instrument, err)
	}

	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.History(ctx, instrument, bars)
	})
	if err != nil {
		return market.PriceSeries{}, err
	}
	return res.(market.PriceSeries), nil
}
