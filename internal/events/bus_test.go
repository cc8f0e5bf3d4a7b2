package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch1, unsub1 := bus.SubscribePrices(4)
	ch2, unsub2 := bus.SubscribePrices(4)
	defer unsub1()
	defer unsub2()

	update := domain.PriceUpdate{
		TokenID:   "tok-1",
		Symbol:    "PEPE",
		Price:     money.FromFloat(0.000012),
		Timestamp: time.Now(),
	}
	bus.PublishPrice(update)

	for _, ch := range []<-chan domain.PriceUpdate{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "tok-1", got.TokenID)
			assert.Equal(t, "PEPE", got.Symbol)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive published event")
		}
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.SubscribePrices(4)
	unsub()

	// El canal queda cerrado tras la baja.
	_, open := <-ch
	assert.False(t, open)

	// Publicar tras la baja no entra en pánico ni entrega nada.
	bus.PublishPrice(domain.PriceUpdate{TokenID: "tok-1"})

	// Darse de baja dos veces es seguro.
	unsub()
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Suscriptor con buffer 1 que nunca lee.
	_, unsub := bus.SubscribePortfolios(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			bus.PublishPortfolio(domain.PortfolioSnapshot{PortfolioID: "pf-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}

	// 1 entregado al buffer, 49 descartados.
	assert.Equal(t, uint64(49), bus.DroppedEvents())
}

func TestBusSlowSubscriberDoesNotStarveOthers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	slow, unsubSlow := bus.SubscribePositions(1)
	fast, unsubFast := bus.SubscribePositions(16)
	defer unsubSlow()
	defer unsubFast()
	_ = slow // nunca lee

	for i := 0; i < 10; i++ {
		bus.PublishPositions(domain.PositionsUpdate{PortfolioID: "pf-1"})
	}

	received := 0
	for {
		select {
		case <-fast:
			received++
		default:
			require.Equal(t, 10, received, "fast subscriber should receive every event")
			return
		}
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus()

	ch, _ := bus.SubscribeBacktestProgress(4)
	bus.Close()

	_, open := <-ch
	assert.False(t, open, "channel should be closed after bus.Close")

	// Publicar y cerrar de nuevo tras Close son no-ops.
	bus.PublishBacktestProgress(domain.BacktestProgress{RunID: "run-1"})
	bus.Close()

	// Suscribirse tras Close devuelve un canal ya cerrado.
	late, unsub := bus.SubscribeBacktestProgress(4)
	_, open = <-late
	assert.False(t, open)
	unsub()
}
