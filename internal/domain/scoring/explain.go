package scoring

import (
	"fmt"
	"strings"
)

// Explain renders a human-readable breakdown of a score.
func Explain(ps *PerformanceScore, w Weights) string {
	if ps == nil {
		return "No score available"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s on %s: %.3f (regime: %s, confidence: %.0f%%)\n",
		ps.StrategyID, ps.Instrument, ps.Composite, ps.Condition.Regime, ps.Condition.Confidence*100)
	if ps.Neutral {
		sb.WriteString("  neutral score, inputs could not be evaluated\n")
		return sb.String()
	}

	rows := []struct {
		name   string
		score  float64
		weight float64
	}{
		{"Profitability", ps.Breakdown.Profitability, w.Profitability},
		{"Risk control", ps.Breakdown.RiskControl, w.RiskControl},
		{"Consistency", ps.Breakdown.Consistency, w.Consistency},
		{"Activity", ps.Breakdown.ActivityLevel, w.ActivityLevel},
		{"Market fit", ps.Breakdown.MarketFit, w.MarketFit},
	}
	for _, r := range rows {
		fmt.Fprintf(&sb, "  %-14s %.3f x %.2f = %.3f\n", r.name, r.score, r.weight, r.score*r.weight)
	}
	fmt.Fprintf(&sb, "  trades=%d win_rate=%.1f%% net=%.2f max_dd=%.1f%%\n",
		ps.Metrics.TotalTrades, ps.Metrics.WinRate()*100, ps.Metrics.NetProfit, ps.Metrics.MaxDrawdownPct)

	return sb.String()
}
