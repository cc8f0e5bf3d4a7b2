package domain

import (
	"errors"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

// ErrPortfolioNotFound se devuelve al consultar un portfolio inexistente.
var ErrPortfolioNotFound = errors.New("portfolio not found")

// Portfolio es la cartera simulada de un usuario.
// Invariantes tras cada recompute:
//
//	totalValue = Σ(position.currentValue) + cashBalance
//	totalPnL   = totalValue − startingCapital
type Portfolio struct {
	ID              string
	UserID          string
	Name            string
	CashBalance     money.Value
	StartingCapital money.Value
	TotalValue      money.Value
	TotalPnL        money.Value
	DailyPnL        money.Value
	UpdatedAt       time.Time
}

// TotalPnLPercent devuelve el PnL total como % del capital inicial.
func (p Portfolio) TotalPnLPercent() float64 {
	return p.TotalPnL.PctOf(p.StartingCapital)
}

// Position es la tenencia de un token dentro de un portfolio.
// La muta exclusivamente el engine de recompute. Invariantes:
//
//	currentValue  = amount × currentPrice
//	unrealizedPnL = currentValue − amount × avgBuyPrice
type Position struct {
	ID                   string
	PortfolioID          string
	TokenID              string
	Amount               money.Value // > 0 mientras la posición está abierta
	AvgBuyPrice          money.Value
	CurrentValue         money.Value
	UnrealizedPnL        money.Value
	UnrealizedPnLPercent float64
	DayChangeValue       money.Value
	EntryAt              time.Time
	UpdatedAt            time.Time
}

// CostBasis devuelve amount × avgBuyPrice.
func (p Position) CostBasis() money.Value {
	return p.Amount.Mul(p.AvgBuyPrice)
}

// Open indica si la posición sigue abierta (cantidad positiva).
func (p Position) Open() bool {
	return p.Amount.Positive()
}

// HoldingDays estima los días que lleva abierta la posición.
func (p Position) HoldingDays(now time.Time) float64 {
	if p.EntryAt.IsZero() || now.Before(p.EntryAt) {
		return 0
	}
	return now.Sub(p.EntryAt).Hours() / 24
}
