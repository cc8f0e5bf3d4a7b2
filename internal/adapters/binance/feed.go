package binance

// feed.go — stream de tickers 24h de Binance por websocket.
//
// Una sola conexión combinada para todos los símbolos suscritos:
// Binance empuja un mini-ticker por símbolo con cada cambio, así que
// con ~50 memecoins el volumen de mensajes sigue siendo trivial.

import (
	"fmt"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/ports"
)

// WsFeed implementa ports.PriceFeed sobre el stream combinado de
// estadísticas de mercado (@ticker) de Binance.
type WsFeed struct{}

// NewWsFeed crea el feed. No abre nada hasta Subscribe.
func NewWsFeed() *WsFeed {
	return &WsFeed{}
}

// Subscribe abre la conexión combinada. El doneC de la librería se
// cierra cuando la conexión muere; stop la cierra desde nuestro lado.
func (f *WsFeed) Subscribe(symbols []string, onTick ports.TickHandler, onErr func(error)) (<-chan struct{}, func(), error) {
	if len(symbols) == 0 {
		return nil, nil, fmt.Errorf("binance.Subscribe: no symbols to subscribe")
	}

	handler := func(event *binance.WsMarketStatEvent) {
		if event == nil {
			return
		}
		onTick(domain.ExchangeTick{
			Symbol:       event.Symbol,
			LastPrice:    event.LastPrice,
			Open24h:      event.OpenPrice,
			High24h:      event.HighPrice,
			Low24h:       event.LowPrice,
			Volume:       event.BaseVolume,
			ChangePct24h: event.PriceChangePercent,
			EventTime:    time.UnixMilli(event.Time),
		})
	}

	doneC, stopC, err := binance.WsCombinedMarketStatServe(symbols, handler, onErr)
	if err != nil {
		return nil, nil, fmt.Errorf("binance.Subscribe: open combined stream: %w", err)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() { close(stopC) })
	}
	return doneC, stop, nil
}
