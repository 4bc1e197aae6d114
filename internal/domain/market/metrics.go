package market

// RunMetrics summarises one simulated run of a strategy over a price window.
// AvgLoss may be reported with either sign; consumers use its magnitude.
type RunMetrics struct {
	TotalTrades    int     `json:"total_trades" db:"total_trades"`
	WinningTrades  int     `json:"winning_trades" db:"winning_trades"`
	LosingTrades   int     `json:"losing_trades" db:"losing_trades"`
	GrossProfit    float64 `json:"gross_profit" db:"gross_profit"`
	NetProfit      float64 `json:"net_profit" db:"net_profit"`
	SpreadCost     float64 `json:"spread_cost" db:"spread_cost"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" db:"max_drawdown_pct"`
	AvgWin         float64 `json:"avg_win" db:"avg_win"`
	AvgLoss        float64 `json:"avg_loss" db:"avg_loss"`
	StartCapital   float64 `json:"start_capital" db:"start_capital"`
	EndCapital     float64 `json:"end_capital" db:"end_capital"`
}

// WinRate returns winning trades over total trades, 0 when there are none.
func (m RunMetrics) WinRate() float64 {
	if m.TotalTrades <= 0 {
		return 0
	}
	return float64(m.WinningTrades) / float64(m.TotalTrades)
}

// ReturnPct is the percentage change from start to end capital.
func (m RunMetrics) ReturnPct() float64 {
	if m.StartCapital == 0 {
		return 0
	}
	return (m.EndCapital - m.StartCapital) / m.StartCapital * 100
}
