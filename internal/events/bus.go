package events

// bus.go — pub/sub tipado en memoria para los eventos del core.
//
// Un canal tipado por nombre de evento, sin payloads genéricos: el
// compilador garantiza que nadie publica un PortfolioSnapshot en el
// canal de precios. El publish nunca bloquea: si el buffer de un
// suscriptor está lleno, el evento se descarta para ese suscriptor
// (el feed no puede esperar a un consumidor lento).

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// DefaultBuffer es el tamaño de buffer por suscriptor si se pasa <= 0.
const DefaultBuffer = 64

// topic es la mecánica compartida de un canal de eventos tipado.
type topic[T any] struct {
	name    string
	mu      sync.RWMutex
	subs    map[int]chan T
	nextID  int
	closed  bool
	dropped atomic.Uint64
}

func newTopic[T any](name string) *topic[T] {
	return &topic[T]{name: name, subs: make(map[int]chan T)}
}

// subscribe registra un suscriptor nuevo y devuelve su canal de
// recepción junto con la función para darse de baja.
func (t *topic[T]) subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	ch := make(chan T, buffer)
	t.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if sub, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(sub)
			}
		})
	}
	return ch, unsubscribe
}

// publish entrega el evento a todos los suscriptores sin bloquear.
func (t *topic[T]) publish(v T) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
			n := t.dropped.Add(1)
			if n%100 == 1 {
				slog.Debug("events: subscriber buffer full, dropping",
					"topic", t.name, "dropped_total", n)
			}
		}
	}
}

// close cierra todos los canales de suscriptores.
func (t *topic[T]) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

// Bus es el hub de eventos del proceso. Una instancia por aplicación,
// inyectada en cada componente en su construcción.
type Bus struct {
	prices      *topic[domain.PriceUpdate]
	portfolios  *topic[domain.PortfolioSnapshot]
	positions   *topic[domain.PositionsUpdate]
	btProgress  *topic[domain.BacktestProgress]
	btComplete  *topic[domain.BacktestOutcome]
	btCancelled *topic[domain.BacktestCancelled]
}

// NewBus crea un bus vacío listo para usar.
func NewBus() *Bus {
	return &Bus{
		prices:      newTopic[domain.PriceUpdate]("priceUpdate"),
		portfolios:  newTopic[domain.PortfolioSnapshot]("portfolioUpdated"),
		positions:   newTopic[domain.PositionsUpdate]("positionsUpdated"),
		btProgress:  newTopic[domain.BacktestProgress]("backtest-progress"),
		btComplete:  newTopic[domain.BacktestOutcome]("backtest-complete"),
		btCancelled: newTopic[domain.BacktestCancelled]("backtest-cancelled"),
	}
}

// SubscribePrices suscribe al evento priceUpdate.
func (b *Bus) SubscribePrices(buffer int) (<-chan domain.PriceUpdate, func()) {
	return b.prices.subscribe(buffer)
}

// PublishPrice publica un evento priceUpdate.
func (b *Bus) PublishPrice(u domain.PriceUpdate) { b.prices.publish(u) }

// SubscribePortfolios suscribe al evento portfolioUpdated.
func (b *Bus) SubscribePortfolios(buffer int) (<-chan domain.PortfolioSnapshot, func()) {
	return b.portfolios.subscribe(buffer)
}

// PublishPortfolio publica un evento portfolioUpdated.
func (b *Bus) PublishPortfolio(s domain.PortfolioSnapshot) { b.portfolios.publish(s) }

// SubscribePositions suscribe al evento positionsUpdated.
func (b *Bus) SubscribePositions(buffer int) (<-chan domain.PositionsUpdate, func()) {
	return b.positions.subscribe(buffer)
}

// PublishPositions publica un evento positionsUpdated.
func (b *Bus) PublishPositions(u domain.PositionsUpdate) { b.positions.publish(u) }

// SubscribeBacktestProgress suscribe al evento backtest-progress.
func (b *Bus) SubscribeBacktestProgress(buffer int) (<-chan domain.BacktestProgress, func()) {
	return b.btProgress.subscribe(buffer)
}

// PublishBacktestProgress publica un evento backtest-progress.
func (b *Bus) PublishBacktestProgress(p domain.BacktestProgress) { b.btProgress.publish(p) }

// SubscribeBacktestComplete suscribe al evento backtest-complete.
func (b *Bus) SubscribeBacktestComplete(buffer int) (<-chan domain.BacktestOutcome, func()) {
	return b.btComplete.subscribe(buffer)
}

// PublishBacktestComplete publica un evento backtest-complete.
func (b *Bus) PublishBacktestComplete(o domain.BacktestOutcome) { b.btComplete.publish(o) }

// SubscribeBacktestCancelled suscribe al evento backtest-cancelled.
func (b *Bus) SubscribeBacktestCancelled(buffer int) (<-chan domain.BacktestCancelled, func()) {
	return b.btCancelled.subscribe(buffer)
}

// PublishBacktestCancelled publica un evento backtest-cancelled.
func (b *Bus) PublishBacktestCancelled(c domain.BacktestCancelled) { b.btCancelled.publish(c) }

// Close cierra todos los canales de todos los topics. Publicar después
// de Close es un no-op.
func (b *Bus) Close() {
	b.prices.close()
	b.portfolios.close()
	b.positions.close()
	b.btProgress.close()
	b.btComplete.close()
	b.btCancelled.close()
}

// DroppedEvents devuelve el total de eventos descartados por buffers
// llenos desde la creación del bus. Para diagnóstico.
func (b *Bus) DroppedEvents() uint64 {
	return b.prices.dropped.Load() +
		b.portfolios.dropped.Load() +
		b.positions.dropped.Load() +
		b.btProgress.dropped.Load() +
		b.btComplete.dropped.Load() +
		b.btCancelled.dropped.Load()
}
