package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stratswitch/internal/domain/condition"
	"github.com/sawpanic/stratswitch/internal/domain/indicators"
	"github.com/sawpanic/stratswitch/internal/domain/market"
	"github.com/sawpanic/stratswitch/internal/strategy"
)

// NeutralScore is the value used for every sub-score when scoring fails and
// for trade-dependent sub-scores when a run produced no trades.
const NeutralScore = 0.5

const (
	profitFactorCap    = 5.0
	rewardRiskDivisor  = 3.0
	drawdownFullPct    = 10.0
	drawdownZeroPct    = 50.0
	adequateTrades     = 100
	minimumTrades      = 20
	saturatedActivity  = 200
	realisticWinShare  = 0.55
	lowActivityCeiling = 0.1
	winRateFloor       = 0.3
	winRateSpan        = 0.4
	profitFactorShare  = 0.6
	winRateShare       = 0.4
	drawdownShare      = 0.7
	rewardRiskShare    = 0.3
	frequencyShare     = 0.4
	profitSignShare    = 0.4
	winProximityShare  = 0.2
)

// Breakdown holds the five [0,1] sub-scores.
type Breakdown struct {
	Profitability float64 `json:"profitability"`
	RiskControl   float64 `json:"risk_control"`
	Consistency   float64 `json:"consistency"`
	ActivityLevel float64 `json:"activity_level"`
	MarketFit     float64 `json:"market_fit"`
}

// PerformanceScore is the fitness of one (strategy, instrument) pairing for
// one cycle.
type PerformanceScore struct {
	StrategyID string                    `json:"strategy_id"`
	Instrument string                    `json:"instrument"`
	Composite  float64                   `json:"composite"`
	Breakdown  Breakdown                 `json:"breakdown"`
	Metrics    market.RunMetrics         `json:"metrics"`
	Condition  condition.MarketCondition `json:"condition"`
	Timestamp  time.Time                 `json:"timestamp"`
	Neutral    bool                      `json:"neutral"`
}

// DescriptorSource resolves strategy capabilities; *strategy.Registry
// satisfies it.
type DescriptorSource interface {
	Lookup(id string) (strategy.Descriptor, error)
}

// Scorer turns simulated run metrics plus market condition into a composite
// fitness score.
type Scorer struct {
	weights     Weights
	descriptors DescriptorSource
	now         func() time.Time
}

// NewScorer creates a scorer with the default weights.
func NewScorer(descriptors DescriptorSource, now func() time.Time) *Scorer {
	s, _ := NewScorerWithWeights(DefaultWeights(), descriptors, now)
	return s
}

// NewScorerWithWeights creates a scorer with custom weights.
func NewScorerWithWeights(w Weights, descriptors DescriptorSource, now func() time.Time) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring weights: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &Scorer{weights: w, descriptors: descriptors, now: now}, nil
}

// Weights returns the active weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes the performance score. It never fails: any internal error
// yields the neutral score so one bad pairing cannot abort a ranking cycle.
func (s *Scorer) Score(m market.RunMetrics, mc condition.MarketCondition, strategyID, instrument string) (ps PerformanceScore) {
	ts := s.now()

	defer func() {
		if r := recover(); r != nil {
			log.Warn().
				Str("strategy", strategyID).
				Str("instrument", instrument).
				Interface("panic", r).
				Msg("Scoring failed, using neutral score")
			ps = s.neutral(m, mc, strategyID, instrument, ts)
		}
	}()

	if err := validateMetrics(m); err != nil {
		log.Warn().
			Err(err).
			Str("strategy", strategyID).
			Str("instrument", instrument).
			Msg("Invalid run metrics, using neutral score")
		return s.neutral(m, mc, strategyID, instrument, ts)
	}

	b := Breakdown{
		Profitability: profitability(m),
		RiskControl:   riskControl(m),
		Consistency:   consistency(m),
		ActivityLevel: activityLevel(m.TotalTrades),
		MarketFit:     s.marketFit(mc, strategyID),
	}
	if !b.finite() {
		log.Warn().
			Str("strategy", strategyID).
			Str("instrument", instrument).
			Msg("Non-finite sub-score, using neutral score")
		return s.neutral(m, mc, strategyID, instrument, ts)
	}

	return PerformanceScore{
		StrategyID: strategyID,
		Instrument: instrument,
		Composite:  indicators.Clamp01(s.weights.Apply(b)),
		Breakdown:  b,
		Metrics:    m,
		Condition:  mc,
		Timestamp:  ts,
	}
}

func (s *Scorer) neutral(m market.RunMetrics, mc condition.MarketCondition, strategyID, instrument string, ts time.Time) PerformanceScore {
	return PerformanceScore{
		StrategyID: strategyID,
		Instrument: instrument,
		Composite:  NeutralScore,
		Breakdown: Breakdown{
			Profitability: NeutralScore,
			RiskControl:   NeutralScore,
			Consistency:   NeutralScore,
			ActivityLevel: NeutralScore,
			MarketFit:     NeutralScore,
		},
		Metrics:   m,
		Condition: mc,
		Timestamp: ts,
		Neutral:   true,
	}
}

func validateMetrics(m market.RunMetrics) error {
	if m.TotalTrades < 0 || m.WinningTrades < 0 || m.LosingTrades < 0 {
		return fmt.Errorf("negative trade counts: total=%d wins=%d losses=%d", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	}
	if m.WinningTrades+m.LosingTrades > m.TotalTrades {
		return fmt.Errorf("wins %d + losses %d exceed total %d", m.WinningTrades, m.LosingTrades, m.TotalTrades)
	}
	for name, v := range map[string]float64{
		"gross_profit":     m.GrossProfit,
		"net_profit":       m.NetProfit,
		"max_drawdown_pct": m.MaxDrawdownPct,
		"avg_win":          m.AvgWin,
		"avg_loss":         m.AvgLoss,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", name)
		}
	}
	return nil
}

// profitability blends a capped profit factor with a win-rate term that is
// 0.5 at a 50% win rate and saturates at 70%.
func profitability(m market.RunMetrics) float64 {
	if m.TotalTrades == 0 {
		return NeutralScore
	}

	grossLoss := math.Abs(m.AvgLoss) * float64(m.LosingTrades)
	var pf float64
	switch {
	case grossLoss > 0:
		pf = m.GrossProfit / grossLoss
	case m.GrossProfit > 0:
		pf = profitFactorCap
	default:
		pf = 0
	}
	pfTerm := indicators.Clamp01(math.Min(pf, profitFactorCap) / profitFactorCap)
	wrTerm := indicators.Clamp01((m.WinRate() - winRateFloor) / winRateSpan)

	return indicators.Clamp01(profitFactorShare*pfTerm + winRateShare*wrTerm)
}

func riskControl(m market.RunMetrics) float64 {
	if m.TotalTrades == 0 {
		return NeutralScore
	}

	dd := math.Abs(m.MaxDrawdownPct)
	var ddTerm float64
	switch {
	case dd <= drawdownFullPct:
		ddTerm = 1
	case dd >= drawdownZeroPct:
		ddTerm = 0
	default:
		ddTerm = 1 - (dd-drawdownFullPct)/(drawdownZeroPct-drawdownFullPct)
	}

	avgLoss := math.Abs(m.AvgLoss)
	var rrTerm float64
	switch {
	case avgLoss > 0:
		rrTerm = math.Min(m.AvgWin/avgLoss/rewardRiskDivisor, 1)
	case m.AvgWin > 0:
		rrTerm = 1
	default:
		rrTerm = NeutralScore
	}

	return indicators.Clamp01(drawdownShare*ddTerm + rewardRiskShare*indicators.Clamp01(rrTerm))
}

func consistency(m market.RunMetrics) float64 {
	if m.TotalTrades == 0 {
		return NeutralScore
	}

	var freq float64
	switch {
	case m.TotalTrades >= adequateTrades:
		freq = 1
	case m.TotalTrades < minimumTrades:
		freq = 0
	default:
		freq = float64(m.TotalTrades-minimumTrades) / float64(adequateTrades-minimumTrades)
	}

	perTrade := m.NetProfit / float64(m.TotalTrades)
	var sign float64
	switch {
	case perTrade > 0:
		sign = 1
	case perTrade < 0:
		sign = 0
	default:
		sign = NeutralScore
	}

	proximity := NeutralScore
	if decided := m.WinningTrades + m.LosingTrades; decided > 0 {
		share := float64(m.WinningTrades) / float64(decided)
		proximity = indicators.Clamp01(1 - math.Abs(share-realisticWinShare)/realisticWinShare)
	}

	return indicators.Clamp01(frequencyShare*freq + profitSignShare*sign + winProximityShare*proximity)
}

// activityLevel is near zero below the minimum trade count and saturates at
// saturatedActivity trades.
func activityLevel(trades int) float64 {
	switch {
	case trades <= 0:
		return 0
	case trades < minimumTrades:
		return lowActivityCeiling * float64(trades) / float64(minimumTrades)
	case trades >= saturatedActivity:
		return 1
	default:
		return lowActivityCeiling + (1-lowActivityCeiling)*float64(trades-minimumTrades)/float64(saturatedActivity-minimumTrades)
	}
}

func (s *Scorer) marketFit(mc condition.MarketCondition, strategyID string) float64 {
	class := strategy.Class("")
	preferred := strategy.PreferBoth
	if s.descriptors != nil {
		if d, err := s.descriptors.Lookup(strategyID); err == nil {
			class = d.Class
			preferred = d.PreferredRegime
		}
	}

	regimeAdj := regimeMismatch
	if preferred == strategy.PreferBoth || string(preferred) == string(mc.Regime) {
		regimeAdj = regimeMatch
	}

	return indicators.Clamp01(Compatibility(class, mc.Class) * regimeAdj * indicators.Clamp01(mc.Confidence))
}

func (b Breakdown) finite() bool {
	for _, v := range []float64{b.Profitability, b.RiskControl, b.Consistency, b.ActivityLevel, b.MarketFit} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
