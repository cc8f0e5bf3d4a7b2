package ports

import (
	"context"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// PriceHistory persiste y consulta la serie histórica de precios.
type PriceHistory interface {
	// SavePriceSample añade un punto a la serie (append-only).
	SavePriceSample(ctx context.Context, s domain.PriceSample) error

	// GetSampleAt devuelve la muestra más reciente del token en o antes
	// de ts. ok=false si no existe ninguna.
	GetSampleAt(ctx context.Context, tokenID string, ts time.Time) (domain.PriceSample, bool, error)

	// GetSamplesAfter devuelve hasta limit muestras del token
	// estrictamente posteriores a from y no posteriores a until,
	// en orden cronológico ascendente.
	GetSamplesAfter(ctx context.Context, tokenID string, from, until time.Time, limit int) ([]domain.PriceSample, error)
}
