package backtest

import (
	"math"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

const tradingDaysPerYear = 252

// buildResult aggregates the closed trades of a finished run. Trades
// arrive ordered by exit date, which the equity walk relies on.
func buildResult(runID string, params domain.BacktestParams, trades []domain.SimulatedTrade, seen, skipped int, startedAt time.Time) domain.BacktestResult {
	initial := params.InitialCapital.Float64()
	m := computeMetrics(trades, initial)

	totalPnLPct := 0.0
	if initial > 0 {
		totalPnLPct = m.TotalPnL / initial * 100
	}

	byStrategy := make(map[domain.PatternType]domain.StrategyMetrics, len(params.Strategies))
	for _, strat := range params.Strategies {
		scoped := make([]domain.SimulatedTrade, 0, len(trades))
		for _, tr := range trades {
			if tr.Strategy == strat {
				scoped = append(scoped, tr)
			}
		}
		byStrategy[strat] = computeMetrics(scoped, initial)
	}

	return domain.BacktestResult{
		RunID:           runID,
		Params:          params,
		TotalTrades:     m.Trades,
		WinningTrades:   m.Wins,
		LosingTrades:    m.Losses,
		WinRate:         m.WinRate,
		TotalPnL:        m.TotalPnL,
		TotalPnLPercent: totalPnLPct,
		MaxDrawdown:     m.MaxDrawdown,
		SharpeRatio:     m.SharpeRatio,
		ProfitFactor:    m.ProfitFactor,
		FinalCapital:    initial + m.TotalPnL,
		EquityCurve:     equityCurve(trades, initial),
		ByStrategy:      byStrategy,
		Trades:          trades,
		PatternsSeen:    seen,
		PatternsSkipped: skipped,
		StartedAt:       startedAt,
		FinishedAt:      time.Now(),
	}
}

// computeMetrics runs the aggregate formulas over a set of closed
// trades. The same formulas serve the run totals and the per-strategy
// breakdown; the equity walk is seeded at the run's initial capital in
// both cases.
func computeMetrics(trades []domain.SimulatedTrade, initialCapital float64) domain.StrategyMetrics {
	m := domain.StrategyMetrics{Trades: len(trades)}
	if len(trades) == 0 {
		return m
	}

	var sumWin, sumLoss float64 // sumLoss accumulates absolute values
	pnlPcts := make([]float64, 0, len(trades))
	totalPnL := money.Zero()
	for _, tr := range trades {
		totalPnL = totalPnL.Add(tr.PnL)
		pnlPcts = append(pnlPcts, tr.PnLPercent)
		switch {
		case tr.PnL.Positive():
			m.Wins++
			sumWin += tr.PnL.Float64()
		case tr.PnL.Negative():
			m.Losses++
			sumLoss -= tr.PnL.Float64()
		}
	}
	m.TotalPnL = totalPnL.Float64()
	m.WinRate = float64(m.Wins) / float64(len(trades)) * 100

	switch {
	case m.Wins == 0:
		m.ProfitFactor = 0
	case m.Losses == 0:
		m.ProfitFactor = math.Inf(1)
	default:
		m.ProfitFactor = (sumWin / float64(m.Wins)) / (sumLoss / float64(m.Losses))
	}

	if sd := stddev(pnlPcts); sd > 0 {
		m.SharpeRatio = mean(pnlPcts) / sd * math.Sqrt(tradingDaysPerYear)
	}

	m.MaxDrawdown = maxDrawdown(trades, initialCapital)
	return m
}

// equityCurve walks the trades in exit order over a running equity
// seeded at the initial capital, one point per trade.
func equityCurve(trades []domain.SimulatedTrade, initialCapital float64) []domain.EquityPoint {
	points := make([]domain.EquityPoint, 0, len(trades))
	equity, peak := initialCapital, initialCapital
	for _, tr := range trades {
		equity += tr.PnL.Float64()
		if equity > peak {
			peak = equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - equity) / peak * 100
		}
		points = append(points, domain.EquityPoint{Date: tr.ExitDate, Equity: equity, Drawdown: dd})
	}
	return points
}

// maxDrawdown is the deepest peak-to-trough drop of the equity walk,
// as a percentage of the peak.
func maxDrawdown(trades []domain.SimulatedTrade, initialCapital float64) float64 {
	var worst float64
	for _, p := range equityCurve(trades, initialCapital) {
		if p.Drawdown > worst {
			worst = p.Drawdown
		}
	}
	return worst
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mu := mean(xs)
	var variance float64
	for _, x := range xs {
		variance += (x - mu) * (x - mu)
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}
