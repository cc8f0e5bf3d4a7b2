package ports

import (
	"context"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// PatternStore persiste las detecciones de patrones (señales históricas).
type PatternStore interface {
	// SavePattern registra una detección nueva.
	SavePattern(ctx context.Context, p domain.Pattern) error

	// GetPatternsByRange devuelve las detecciones en [from, to] cuyos
	// tipos están en types, ordenadas por detectedAt ascendente.
	GetPatternsByRange(ctx context.Context, from, to time.Time, types []domain.PatternType) ([]domain.Pattern, error)
}
