package valuation

import (
	"math"
	"sort"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// buildSnapshot assembles the portfolioUpdated payload: aggregates,
// top performers by unrealized PnL% and the simple risk block.
func buildSnapshot(pf domain.Portfolio, details []domain.PositionDetail, now time.Time) domain.PortfolioSnapshot {
	totalValue := pf.TotalValue.Float64()
	dayChangeValue := pf.DailyPnL.Float64()

	// Day change as a percentage of yesterday's implied value.
	dayChangePct := 0.0
	if base := totalValue - dayChangeValue; base > 0 {
		dayChangePct = dayChangeValue / base * 100
	}

	return domain.PortfolioSnapshot{
		PortfolioID:     pf.ID,
		UserID:          pf.UserID,
		TotalValue:      totalValue,
		TotalPnL:        pf.TotalPnL.Float64(),
		TotalPnLPercent: pf.TotalPnLPercent(),
		DayChange:       dayChangePct,
		DayChangeValue:  dayChangeValue,
		PositionsCount:  len(details),
		TopPerformers:   topPerformers(details),
		Risk:            riskMetrics(details),
		ComputedAt:      now,
	}
}

// topPerformers returns up to five positions sorted by PnL% descending.
func topPerformers(details []domain.PositionDetail) []domain.TopPerformer {
	sorted := append([]domain.PositionDetail(nil), details...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UnrealizedPnLPercent > sorted[j].UnrealizedPnLPercent
	})

	n := min(topPerformersLimit, len(sorted))
	out := make([]domain.TopPerformer, 0, n)
	for _, d := range sorted[:n] {
		out = append(out, domain.TopPerformer{
			TokenID:       d.TokenID,
			Symbol:        d.Symbol,
			PnLPercent:    d.UnrealizedPnLPercent,
			CurrentValue:  d.CurrentValue,
			UnrealizedPnL: d.UnrealizedPnL,
		})
	}
	return out
}

// riskMetrics derives the snapshot's risk block from the revalued
// positions: concentration (largest position's share of position
// value), diversification (count) and volatility (stddev of PnL%).
func riskMetrics(details []domain.PositionDetail) domain.RiskMetrics {
	m := domain.RiskMetrics{Diversification: len(details)}
	if len(details) == 0 {
		return m
	}

	var total, largest float64
	pnlPcts := make([]float64, 0, len(details))
	for _, d := range details {
		total += d.CurrentValue
		if d.CurrentValue > largest {
			largest = d.CurrentValue
		}
		pnlPcts = append(pnlPcts, d.UnrealizedPnLPercent)
	}
	if total > 0 {
		m.Concentration = largest / total * 100
	}
	m.Volatility = stddev(pnlPcts)
	return m
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}
