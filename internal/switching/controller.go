package switching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/data"
	"github.com/sawpanic/stratswitch/internal/domain/market"
	"github.com/sawpanic/stratswitch/internal/domain/scoring"
	"github.com/sawpanic/stratswitch/internal/persistence"
)

// sinkTimeout bounds each event sink and history write after a commit.
const sinkTimeout = 5 * time.Second

// Deps are the controller's collaborators. History, Overrides, Metrics and
// Now are optional.
type Deps struct {
	Classifier Classifier
	Scorer     Scorer
	Registry   StrategyRegistry
	Simulator  Simulator
	Sink       EventSink
	Provider   data.Provider
	History    HistoryStore
	Overrides  OverrideStore
	Metrics    Recorder
	Now        func() time.Time
}

func (d Deps) validate() error {
	switch {
	case d.Classifier == nil:
		return errors.New("classifier is required")
	case d.Scorer == nil:
		return errors.New("scorer is required")
	case d.Registry == nil:
		return errors.New("strategy registry is required")
	case d.Simulator == nil:
		return errors.New("simulator is required")
	case d.Sink == nil:
		return errors.New("event sink is required")
	case d.Provider == nil:
		return errors.New("price provider is required")
	}
	return nil
}

// Controller owns the live (strategy, instrument) pairing and decides when
// to replace it. Cycles are serialized; status reads never wait on a cycle.
type Controller struct {
	classifier Classifier
	scorer     Scorer
	registry   StrategyRegistry
	simulator  Simulator
	sink       EventSink
	provider   data.Provider
	history    HistoryStore
	overrides  OverrideStore
	metrics    Recorder
	now        func() time.Time

	cycleMu sync.Mutex

	mu        sync.RWMutex
	state     State
	lastCycle *CycleSummary
}

// New builds a controller. The override document, when a store is given,
// is merged over cfg before validation.
func New(cfg config.SwitchingConfig, deps Deps) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid controller dependencies: %w", err)
	}

	if deps.Overrides != nil {
		o, err := deps.Overrides.Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load switching overrides, using base configuration")
		} else {
			cfg = cfg.Apply(o)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid switching config: %w", err)
	}

	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Controller{
		classifier: deps.Classifier,
		scorer:     deps.Scorer,
		registry:   deps.Registry,
		simulator:  deps.Simulator,
		sink:       deps.Sink,
		provider:   deps.Provider,
		history:    deps.History,
		overrides:  deps.Overrides,
		metrics:    deps.Metrics,
		now:        deps.Now,
		state:      State{Config: cfg.Clone()},
	}, nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyState()
}

func (c *Controller) copyState() State {
	s := c.state
	s.Log = append([]SwitchDecision(nil), c.state.Log...)
	s.Config = c.state.Config.Clone()
	return s
}

// Config returns the active switching configuration.
func (c *Controller) Config() config.SwitchingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Config.Clone()
}

// Status reports pairing, cooldown and log counters.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Pairing:              c.state.Current,
		Active:               !c.state.Current.IsZero(),
		LastSwitch:           c.state.LastSwitch,
		MonitoredInstruments: append([]string(nil), c.state.Config.MonitoredInstruments...),
		TestStrategies:       append([]string(nil), c.state.Config.TestStrategies...),
		TotalSwitches:        c.state.TotalSwitches,
		LogLength:            len(c.state.Log),
	}
	if remaining := c.cooldownRemaining(c.state, c.now()); remaining > 0 {
		st.InCooldown = true
		st.CooldownRemaining = remaining
	}
	if c.lastCycle != nil {
		last := *c.lastCycle
		st.LastCycle = &last
	}
	return st
}

// RecentSwitches returns up to n decisions, most recent first. n <= 0
// returns the whole log.
func (c *Controller) RecentSwitches(n int) []SwitchDecision {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.state.Log)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]SwitchDecision, 0, n)
	for i := total - 1; i >= total-n; i-- {
		out = append(out, c.state.Log[i])
	}
	return out
}

// UpdateConfig merges o over the active configuration. The merged override
// is persisted best-effort.
func (c *Controller) UpdateConfig(o config.Override) (config.SwitchingConfig, error) {
	c.mu.Lock()
	next := c.state.Config.Apply(o)
	if err := next.Validate(); err != nil {
		c.mu.Unlock()
		return config.SwitchingConfig{}, fmt.Errorf("invalid config update: %w", err)
	}
	c.state.Config = next
	c.mu.Unlock()

	log.Info().
		Float64("cooldown_hours", next.CooldownHours).
		Float64("min_score", next.MinPerformanceScore).
		Float64("threshold", next.SwitchThreshold).
		Strs("instruments", next.MonitoredInstruments).
		Strs("strategies", next.TestStrategies).
		Msg("Switching configuration updated")

	if c.overrides != nil {
		if err := c.overrides.Save(next.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("Failed to persist switching overrides")
		}
	}
	return next.Clone(), nil
}

// Restore re-adopts the most recent persisted switch so cooldown and the
// live pairing survive restarts. It is a no-op without a history store or
// once a pairing is already set.
func (c *Controller) Restore(ctx context.Context) error {
	if c.history == nil {
		return nil
	}

	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	rec, err := c.history.LatestSwitch(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			log.Info().Msg("No persisted switch history, starting uninitialized")
			return nil
		}
		return fmt.Errorf("failed to restore switching state: %w", err)
	}
	if rec.ToStrategy == "" || rec.ToInstrument == "" {
		return fmt.Errorf("failed to restore switching state: record %d has no target pairing", rec.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Current.IsZero() {
		return nil
	}
	c.state.Current = Pairing{StrategyID: rec.ToStrategy, Instrument: rec.ToInstrument}
	c.state.LastSwitch = rec.SwitchedAt

	log.Info().
		Str("strategy", rec.ToStrategy).
		Str("instrument", rec.ToInstrument).
		Time("switched_at", rec.SwitchedAt).
		Msg("Restored live pairing from history")
	return nil
}

// EvaluateAndSwitch runs one cycle over priceData and returns the committed
// decision, or nil when the pairing is unchanged.
func (c *Controller) EvaluateAndSwitch(ctx context.Context, priceData map[string]market.PriceSeries) *SwitchDecision {
	return c.Evaluate(ctx, priceData).Decision
}

// Evaluate runs one cycle over priceData and returns its full outcome.
func (c *Controller) Evaluate(ctx context.Context, priceData map[string]market.PriceSeries) CycleResult {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()
	return c.runLocked(ctx, priceData)
}

// RunCycle fetches history for every monitored instrument from the price
// provider and evaluates it. Instruments without data are skipped.
func (c *Controller) RunCycle(ctx context.Context) CycleResult {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	c.mu.RLock()
	st := c.copyState()
	c.mu.RUnlock()

	if c.cooldownRemaining(st, c.now()) > 0 {
		return c.runLocked(ctx, nil)
	}

	lookback := st.Config.Lookback()
	priceData := make(map[string]market.PriceSeries, len(st.Config.MonitoredInstruments))
	for _, inst := range st.Config.MonitoredInstruments {
		series, err := c.provider.History(ctx, inst, lookback)
		if err != nil {
			if errors.Is(err, data.ErrNoData) {
				log.Debug().Str("instrument", inst).Msg("No price history available")
			} else {
				log.Warn().Err(err).Str("instrument", inst).Msg("Failed to fetch price history")
			}
			continue
		}
		priceData[inst] = series
	}
	log.Debug().Int("instruments", len(priceData)).Int("lookback", lookback).Msg("Price history fetched")
	return c.runLocked(ctx, priceData)
}

// runLocked executes the cycle. The caller holds cycleMu.
func (c *Controller) runLocked(ctx context.Context, priceData map[string]market.PriceSeries) CycleResult {
	started := c.now()
	res := CycleResult{ID: uuid.NewString(), StartedAt: started}
	timer := time.Now()

	c.mu.RLock()
	st := c.copyState()
	c.mu.RUnlock()

	logger := log.With().Str("cycle_id", res.ID).Logger()

	if remaining := c.cooldownRemaining(st, started); remaining > 0 {
		res.Outcome = OutcomeCooldown
		logger.Debug().Dur("remaining", remaining).Msg("Switching in cooldown, cycle skipped")
		return c.finish(res, timer)
	}

	res.Ranking, res.Skipped = c.rank(ctx, st.Config, priceData)

	if ctx.Err() != nil {
		res.Outcome = OutcomeCancelled
		logger.Warn().Err(ctx.Err()).Msg("Cycle cancelled before decision")
		return c.finish(res, timer)
	}

	decision, outcome := c.decide(st, res.Ranking, res.ID, started)
	res.Outcome = outcome
	if decision != nil {
		c.commit(decision)
		res.Decision = decision
		c.publish(ctx, decision)
	}

	ev := logger.Info().
		Str("outcome", string(outcome)).
		Int("ranked", len(res.Ranking)).
		Int("skipped", len(res.Skipped))
	if top, ok := res.Top(); ok {
		ev = ev.Str("top", Pairing{StrategyID: top.StrategyID, Instrument: top.Instrument}.String()).
			Float64("top_score", top.Composite)
	}
	ev.Msg("Switching cycle complete")

	return c.finish(res, timer)
}

func (c *Controller) finish(res CycleResult, timer time.Time) CycleResult {
	res.Duration = time.Since(timer)
	c.metrics.ObserveCycle(string(res.Outcome), res.Duration)

	c.mu.Lock()
	c.lastCycle = summarize(res)
	c.mu.Unlock()
	return res
}

func (c *Controller) cooldownRemaining(st State, now time.Time) time.Duration {
	if st.LastSwitch.IsZero() {
		return 0
	}
	until := st.LastSwitch.Add(st.Config.Cooldown())
	if now.Before(until) {
		return until.Sub(now)
	}
	return 0
}

// decide applies the gating rules to a ranking sorted best first.
func (c *Controller) decide(st State, ranking []scoring.PerformanceScore, cycleID string, now time.Time) (*SwitchDecision, Outcome) {
	if len(ranking) == 0 {
		return nil, OutcomeNoCandidates
	}

	top := ranking[0]
	if top.Composite < st.Config.MinPerformanceScore {
		return nil, OutcomeBelowMinimum
	}

	target := Pairing{StrategyID: top.StrategyID, Instrument: top.Instrument}
	d := &SwitchDecision{
		CycleID:    cycleID,
		From:       st.Current,
		To:         target,
		Score:      top.Composite,
		Confidence: top.Condition.Confidence,
		Breakdown:  top.Breakdown,
		Metrics:    top.Metrics,
		Timestamp:  now,
	}

	if st.Current.IsZero() {
		d.Action = ActionInitialSwitch
		d.Improvement = top.Composite
		d.Reason = fmt.Sprintf("no active pairing; %s scored %.3f (minimum %.3f)", target, top.Composite, st.Config.MinPerformanceScore)
		return d, OutcomeInitialSwitch
	}

	if target == st.Current {
		return nil, OutcomeUnchanged
	}

	var current float64
	for _, ps := range ranking {
		if ps.StrategyID == st.Current.StrategyID && ps.Instrument == st.Current.Instrument {
			current = ps.Composite
			break
		}
	}

	improvement := top.Composite - current
	if improvement < st.Config.SwitchThreshold {
		return nil, OutcomeInsufficientImprovement
	}

	d.Action = ActionStrategySwitch
	d.PreviousScore = current
	d.Improvement = improvement
	d.Reason = fmt.Sprintf("%s scored %.3f vs %.3f for %s; improvement %.3f >= threshold %.3f",
		target, top.Composite, current, st.Current, improvement, st.Config.SwitchThreshold)
	return d, OutcomeSwitched
}

// commit builds the next state in full and assigns it under the write lock.
func (c *Controller) commit(d *SwitchDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state
	next.Current = d.To
	next.LastSwitch = d.Timestamp
	next.Log = appendLog(c.state.Log, *d)
	next.TotalSwitches = c.state.TotalSwitches + 1
	c.state = next

	c.metrics.Switched(string(d.Action), d.Score)
	log.Info().
		Str("cycle_id", d.CycleID).
		Str("action", string(d.Action)).
		Str("from", d.From.String()).
		Str("to", d.To.String()).
		Float64("score", d.Score).
		Float64("improvement", d.Improvement).
		Msg("Live pairing switched")
}

// appendLog returns a new log slice with d appended. Once the capacity is
// exceeded only the most recent entries are kept.
func appendLog(entries []SwitchDecision, d SwitchDecision) []SwitchDecision {
	out := make([]SwitchDecision, 0, len(entries)+1)
	out = append(out, entries...)
	out = append(out, d)
	if len(out) > maxLogEntries {
		out = append([]SwitchDecision(nil), out[len(out)-trimmedLogEntries:]...)
	}
	return out
}

// publish notifies the sink and history store. Failures are logged only.
func (c *Controller) publish(ctx context.Context, d *SwitchDecision) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	ev := persistence.Event{
		SourceID:       0,
		Action:         string(d.Action),
		Details:        d.Message(),
		IsNotification: true,
		CreatedAt:      d.Timestamp,
	}
	if err := c.sink.RecordEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("cycle_id", d.CycleID).Msg("Failed to record switch event")
	}

	if c.history != nil {
		if err := c.history.InsertSwitch(ctx, d.Record()); err != nil {
			log.Error().Err(err).Str("cycle_id", d.CycleID).Msg("Failed to persist switch history")
		}
	}
}
