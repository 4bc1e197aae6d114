package switching

import (
	"context"
	"fmt"
	"time"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/domain/condition"
	"github.com/sawpanic/stratswitch/internal/domain/market"
	"github.com/sawpanic/stratswitch/internal/domain/scoring"
	"github.com/sawpanic/stratswitch/internal/persistence"
	"github.com/sawpanic/stratswitch/internal/simulation"
	"github.com/sawpanic/stratswitch/internal/strategy"
)

const (
	// maxLogEntries is the switch log capacity.
	maxLogEntries = 100
	// trimmedLogEntries is how many entries survive an overflow.
	trimmedLogEntries = 50
)

// Action labels a committed switch.
type Action string

const (
	ActionInitialSwitch  Action = "INITIAL_SWITCH"
	ActionStrategySwitch Action = "STRATEGY_SWITCH"
)

// Outcome labels how a cycle ended.
type Outcome string

const (
	OutcomeCooldown                Outcome = "cooldown"
	OutcomeNoCandidates            Outcome = "no_candidates"
	OutcomeBelowMinimum            Outcome = "below_minimum"
	OutcomeUnchanged               Outcome = "unchanged"
	OutcomeInsufficientImprovement Outcome = "insufficient_improvement"
	OutcomeInitialSwitch           Outcome = "initial_switch"
	OutcomeSwitched                Outcome = "switched"
	OutcomeCancelled               Outcome = "cancelled"
)

// SkipReason explains why a pair or instrument was left out of the ranking.
type SkipReason string

const (
	SkipNoData            SkipReason = "no_data"
	SkipUnknownStrategy   SkipReason = "unknown_strategy"
	SkipSimulationFailed  SkipReason = "simulation_failed"
	SkipSimulationTimeout SkipReason = "simulation_timeout"
)

// Pairing is a (strategy, instrument) combination.
type Pairing struct {
	StrategyID string `json:"strategy_id"`
	Instrument string `json:"instrument"`
}

// IsZero reports whether no pairing is set.
func (p Pairing) IsZero() bool {
	return p.StrategyID == "" && p.Instrument == ""
}

func (p Pairing) String() string {
	if p.IsZero() {
		return "none"
	}
	return p.StrategyID + "@" + p.Instrument
}

// SwitchDecision is an externally observable transition of the live pairing.
type SwitchDecision struct {
	CycleID       string            `json:"cycle_id"`
	Action        Action            `json:"action"`
	From          Pairing           `json:"from"`
	To            Pairing           `json:"to"`
	Score         float64           `json:"score"`
	PreviousScore float64           `json:"previous_score"`
	Improvement   float64           `json:"improvement"`
	Confidence    float64           `json:"confidence"`
	Reason        string            `json:"reason"`
	Breakdown     scoring.Breakdown `json:"breakdown"`
	Metrics       market.RunMetrics `json:"metrics"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Message is the human readable notification text for the decision.
func (d SwitchDecision) Message() string {
	if d.Action == ActionInitialSwitch {
		return fmt.Sprintf("Initial strategy selected: %s (score %.3f)", d.To, d.Score)
	}
	return fmt.Sprintf("Strategy switch: %s -> %s (improvement %.3f, score %.3f)", d.From, d.To, d.Improvement, d.Score)
}

// Record converts the decision into its durable history form.
func (d SwitchDecision) Record() persistence.SwitchRecord {
	return persistence.SwitchRecord{
		CycleID:        d.CycleID,
		Action:         string(d.Action),
		FromStrategy:   d.From.StrategyID,
		FromInstrument: d.From.Instrument,
		ToStrategy:     d.To.StrategyID,
		ToInstrument:   d.To.Instrument,
		Score:          d.Score,
		Improvement:    d.Improvement,
		Confidence:     d.Confidence,
		Reason:         d.Reason,
		Metrics: map[string]float64{
			"total_trades":     float64(d.Metrics.TotalTrades),
			"win_rate":         d.Metrics.WinRate(),
			"net_profit":       d.Metrics.NetProfit,
			"max_drawdown_pct": d.Metrics.MaxDrawdownPct,
			"profitability":    d.Breakdown.Profitability,
			"risk_control":     d.Breakdown.RiskControl,
			"consistency":      d.Breakdown.Consistency,
			"activity_level":   d.Breakdown.ActivityLevel,
			"market_fit":       d.Breakdown.MarketFit,
		},
		SwitchedAt: d.Timestamp,
	}
}

// State is the controller's switching state. Values handed out are copies.
type State struct {
	Current       Pairing
	LastSwitch    time.Time
	Log           []SwitchDecision
	TotalSwitches int
	Config        config.SwitchingConfig
}

// SkippedPair records a pair or instrument excluded from a cycle.
type SkippedPair struct {
	Instrument string     `json:"instrument"`
	StrategyID string     `json:"strategy_id,omitempty"`
	Reason     SkipReason `json:"reason"`
	Error      string     `json:"error,omitempty"`
}

// CycleResult is the full outcome of one evaluation cycle.
type CycleResult struct {
	ID        string                     `json:"id"`
	StartedAt time.Time                  `json:"started_at"`
	Duration  time.Duration              `json:"duration"`
	Outcome   Outcome                    `json:"outcome"`
	Ranking   []scoring.PerformanceScore `json:"ranking"`
	Skipped   []SkippedPair              `json:"skipped"`
	Decision  *SwitchDecision            `json:"decision,omitempty"`
}

// Top returns the best ranked score, if any.
func (r CycleResult) Top() (scoring.PerformanceScore, bool) {
	if len(r.Ranking) == 0 {
		return scoring.PerformanceScore{}, false
	}
	return r.Ranking[0], true
}

// CycleSummary is the compact form of the last cycle kept for status.
type CycleSummary struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Outcome   Outcome       `json:"outcome"`
	Ranked    int           `json:"ranked"`
	Skipped   int           `json:"skipped"`
	Top       *Pairing      `json:"top,omitempty"`
	TopScore  float64       `json:"top_score"`
}

func summarize(r CycleResult) *CycleSummary {
	s := &CycleSummary{
		ID:        r.ID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Outcome:   r.Outcome,
		Ranked:    len(r.Ranking),
		Skipped:   len(r.Skipped),
	}
	if top, ok := r.Top(); ok {
		s.Top = &Pairing{StrategyID: top.StrategyID, Instrument: top.Instrument}
		s.TopScore = top.Composite
	}
	return s
}

// Status is a read-only snapshot for operators.
type Status struct {
	Pairing              Pairing       `json:"pairing"`
	Active               bool          `json:"active"`
	InCooldown           bool          `json:"in_cooldown"`
	CooldownRemaining    time.Duration `json:"cooldown_remaining"`
	LastSwitch           time.Time     `json:"last_switch"`
	MonitoredInstruments []string      `json:"monitored_instruments"`
	TestStrategies       []string      `json:"test_strategies"`
	TotalSwitches        int           `json:"total_switches"`
	LogLength            int           `json:"log_length"`
	LastCycle            *CycleSummary `json:"last_cycle,omitempty"`
}

// Classifier derives market condition from price history.
type Classifier interface {
	Classify(series market.PriceSeries, instrument string) condition.MarketCondition
}

// Scorer turns run metrics and condition into a fitness score.
type Scorer interface {
	Score(m market.RunMetrics, mc condition.MarketCondition, strategyID, instrument string) scoring.PerformanceScore
}

// StrategyRegistry resolves candidate strategies.
type StrategyRegistry interface {
	Lookup(id string) (strategy.Descriptor, error)
}

// Simulator runs a strategy over a price window.
type Simulator interface {
	Run(ctx context.Context, req simulation.Request) (market.RunMetrics, error)
}

// EventSink persists and notifies committed decisions.
type EventSink interface {
	RecordEvent(ctx context.Context, e persistence.Event) error
}

// HistoryStore keeps durable switch history across restarts.
type HistoryStore interface {
	InsertSwitch(ctx context.Context, rec persistence.SwitchRecord) error
	LatestSwitch(ctx context.Context) (*persistence.SwitchRecord, error)
}

// OverrideStore loads and saves the configuration override document.
type OverrideStore interface {
	Load() (config.Override, error)
	Save(o config.Override) error
}

// Recorder receives cycle telemetry.
type Recorder interface {
	ObserveCycle(outcome string, d time.Duration)
	PairSkipped(reason string)
	PairScored(strategyID, instrument string, composite float64)
	Switched(action string, score float64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCycle(string, time.Duration) {}
func (nopRecorder) PairSkipped(string) {}
func (nopRecorder) PairScored(string, string, float64) {}
func (nopRecorder) Switched(string, float64) {}
