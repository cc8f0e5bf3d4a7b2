package ports

import (
	"context"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// TickHandler procesa un tick crudo entrante del stream.
type TickHandler func(tick domain.ExchangeTick)

// PriceFeed abre la conexión de streaming con el exchange.
type PriceFeed interface {
	// Subscribe abre UNA conexión multiplexada suscrita a todos los
	// símbolos dados. Los ticks llegan por onTick y los errores de
	// conexión por onErr. El canal done se cierra cuando la conexión
	// muere (por error o por stop); stop la cierra explícitamente.
	Subscribe(symbols []string, onTick TickHandler, onErr func(error)) (done <-chan struct{}, stop func(), err error)
}

// SymbolDirectory consulta el directorio de instrumentos del exchange.
type SymbolDirectory interface {
	// ListSymbols devuelve los instrumentos listados actualmente.
	ListSymbols(ctx context.Context) ([]domain.ExchangeSymbol, error)
}
