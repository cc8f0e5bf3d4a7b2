package ports

import (
	"context"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// PortfolioStore persiste portfolios y sus posiciones.
type PortfolioStore interface {
	// GetAllPortfolios devuelve todos los portfolios del sistema.
	GetAllPortfolios(ctx context.Context) ([]domain.Portfolio, error)

	// GetPortfolio devuelve un portfolio por id.
	GetPortfolio(ctx context.Context, id string) (domain.Portfolio, error)

	// UpdatePortfolioValuation persiste los agregados calculados por el
	// engine de recompute (totalValue, totalPnL, dailyPnL, updatedAt).
	UpdatePortfolioValuation(ctx context.Context, p domain.Portfolio) error

	// GetPositionsByPortfolio devuelve las posiciones abiertas del portfolio.
	GetPositionsByPortfolio(ctx context.Context, portfolioID string) ([]domain.Position, error)

	// UpdatePositionValuation persiste la valoración de una posición
	// (currentValue, unrealizedPnL, unrealizedPnLPercent, dayChangeValue).
	UpdatePositionValuation(ctx context.Context, pos domain.Position) error

	// SavePortfolio inserta un portfolio nuevo.
	SavePortfolio(ctx context.Context, p domain.Portfolio) error

	// SavePosition inserta una posición nueva.
	SavePosition(ctx context.Context, pos domain.Position) error
}
