package binance

// directory.go — catálogo de instrumentos vía REST.

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// exchangeInfo pesa 10 sobre un límite de 1200/min. Lo llamamos en el
// arranque y en cada sweep, así que 6/min deja margen de sobra.
const directoryRate = rate.Limit(6.0 / 60.0)

// NewPublicClient crea un cliente REST sin credenciales, suficiente para
// los endpoints públicos que usamos. El flag de testnet es global en la
// librería, así que hay que fijarlo antes de crear el cliente.
func NewPublicClient(testnet bool) *binance.Client {
	binance.UseTestnet = testnet
	return binance.NewClient("", "")
}

// Directory implementa ports.SymbolDirectory sobre /api/v3/exchangeInfo.
type Directory struct {
	client  *binance.Client
	limiter *rate.Limiter
}

// NewDirectory crea el directorio sobre un cliente existente.
// Los endpoints públicos no necesitan credenciales.
func NewDirectory(client *binance.Client) *Directory {
	return &Directory{
		client:  client,
		limiter: rate.NewLimiter(directoryRate, 2),
	}
}

// ListSymbols devuelve todos los instrumentos listados en spot.
func (d *Directory) ListSymbols(ctx context.Context) ([]domain.ExchangeSymbol, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("binance.ListSymbols: wait limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	info, err := d.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance.ListSymbols: exchangeInfo: %w", err)
	}

	out := make([]domain.ExchangeSymbol, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		out = append(out, domain.ExchangeSymbol{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Trading:    s.Status == "TRADING",
		})
	}
	return out, nil
}
