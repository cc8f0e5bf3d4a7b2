package ports

import (
	"context"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// TokenStore persiste el catálogo de tokens y sus campos de precio.
type TokenStore interface {
	// GetAllTokens devuelve el catálogo completo de tokens.
	GetAllTokens(ctx context.Context) ([]domain.Token, error)

	// UpdateTokenPrice actualiza los campos de precio de un token a
	// partir de un tick validado, y añade la muestra al histórico.
	UpdateTokenPrice(ctx context.Context, u domain.PriceUpdate) error

	// SaveToken inserta un token nuevo en el catálogo.
	SaveToken(ctx context.Context, t domain.Token) error
}
