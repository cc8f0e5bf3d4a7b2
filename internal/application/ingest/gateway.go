package ingest

// gateway.go — puerta de entrada del stream de precios.
//
// Máquina de estados de la conexión:
//
//	disconnected → connecting → connected → reconnect_wait → connecting → …
//
// La reconexión es incondicional mientras el gateway siga arrancado:
// espera fija de cfg.ReconnectDelay y a intentarlo otra vez, para
// siempre. El camino del tick nunca bloquea: la persistencia va por un
// canal con buffer drenado por UN writer; si el buffer se llena, el
// tick se pierde en disco pero no en memoria ni en el bus.

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/events"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/ports"
)

// ConnState es el estado de la conexión con el exchange.
type ConnState string

const (
	StateDisconnected  ConnState = "disconnected"
	StateConnecting    ConnState = "connecting"
	StateConnected     ConnState = "connected"
	StateReconnectWait ConnState = "reconnect_wait"
)

const defaultPersistQueue = 1024

// Gateway conecta el feed del exchange con el resto del sistema:
// valida ticks, mantiene la cache de últimos precios, publica en el
// bus y encola la persistencia.
type Gateway struct {
	feed  ports.PriceFeed
	store ports.TokenStore
	cache *SymbolCache
	bus   *events.Bus

	reconnectDelay time.Duration

	mu         sync.Mutex
	state      ConnState
	running    bool
	gen        int // generación de conexión: invalida watchers viejos
	stopFeed   func()
	reconnect  *time.Timer
	subscribed []string

	pricesMu sync.RWMutex
	latest   map[string]domain.PriceUpdate // tokenID → último tick válido

	persistCh chan domain.PriceUpdate
	quit      chan struct{}
	writerWG  sync.WaitGroup
	dropped   atomic.Uint64
}

// NewGateway construye el gateway. queueSize <= 0 usa el default.
func NewGateway(feed ports.PriceFeed, store ports.TokenStore, cache *SymbolCache, bus *events.Bus, reconnectDelay time.Duration, queueSize int) *Gateway {
	if queueSize <= 0 {
		queueSize = defaultPersistQueue
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Gateway{
		feed:           feed,
		store:          store,
		cache:          cache,
		bus:            bus,
		reconnectDelay: reconnectDelay,
		state:          StateDisconnected,
		latest:         make(map[string]domain.PriceUpdate),
		persistCh:      make(chan domain.PriceUpdate, queueSize),
		quit:           make(chan struct{}),
	}
}

// Start arranca el writer de persistencia y abre la primera conexión.
// Idempotente: llamadas repetidas no hacen nada.
func (g *Gateway) Start(ctx context.Context) {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return
	}
	g.running = true
	g.mu.Unlock()

	g.writerWG.Add(1)
	go g.persistLoop()

	go g.connect(ctx)
}

// Stop cierra la conexión, cancela la reconexión pendiente y drena la
// cola de persistencia. Idempotente.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	g.state = StateDisconnected
	g.gen++ // invalida cualquier watcher o timer en vuelo
	if g.reconnect != nil {
		g.reconnect.Stop()
		g.reconnect = nil
	}
	stop := g.stopFeed
	g.stopFeed = nil
	g.mu.Unlock()

	if stop != nil {
		stop()
	}

	close(g.quit)
	g.writerWG.Wait()

	if n := g.dropped.Load(); n > 0 {
		slog.Warn("ingest: ticks perdidos por cola de persistencia llena", "dropped", n)
	}
}

// State devuelve el estado actual de la conexión.
func (g *Gateway) State() ConnState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// CachedPrice devuelve el último tick válido de un token.
func (g *Gateway) CachedPrice(tokenID string) (domain.PriceUpdate, bool) {
	g.pricesMu.RLock()
	defer g.pricesMu.RUnlock()
	u, ok := g.latest[tokenID]
	return u, ok
}

// AllCachedPrices devuelve una copia de la cache de últimos precios.
func (g *Gateway) AllCachedPrices() map[string]domain.PriceUpdate {
	g.pricesMu.RLock()
	defer g.pricesMu.RUnlock()
	out := make(map[string]domain.PriceUpdate, len(g.latest))
	for id, u := range g.latest {
		out[id] = u
	}
	return out
}

// ResyncSymbols reconstruye la cache de símbolos (hook del ciclo de
// respaldo). Si el conjunto suscrito cambió, fuerza una reconexión
// para que el stream incluya los símbolos nuevos.
func (g *Gateway) ResyncSymbols(ctx context.Context) {
	mapped, err := g.cache.Rebuild(ctx)
	if err != nil {
		slog.Warn("ingest: resync de símbolos falló, se mantiene el mapa anterior", "error", err)
		return
	}

	g.mu.Lock()
	current := g.subscribed
	state := g.state
	stop := g.stopFeed
	g.mu.Unlock()

	if state == StateConnected && !sameSymbols(current, g.cache.MappedSymbols()) {
		slog.Info("ingest: el conjunto de símbolos cambió, forzando reconexión", "mapped", mapped)
		if stop != nil {
			stop() // el watcher del done se encarga del resto
		}
	}
}

// --- conexión ---

// connect intenta abrir el stream. Cualquier fallo programa el
// siguiente intento; solo el cancel del ctx o Stop lo paran.
func (g *Gateway) connect(ctx context.Context) {
	g.mu.Lock()
	if !g.running || ctx.Err() != nil {
		g.mu.Unlock()
		return
	}
	g.state = StateConnecting
	g.mu.Unlock()

	if mapped, err := g.cache.Rebuild(ctx); err != nil {
		slog.Warn("ingest: rebuild de símbolos falló, se usa el mapa anterior", "error", err)
	} else {
		slog.Debug("ingest: símbolos mapeados", "count", mapped)
	}

	symbols := g.cache.MappedSymbols()
	if len(symbols) == 0 {
		slog.Warn("ingest: ningún token mapeado, reintentando",
			"retry_in", g.reconnectDelay.String())
		g.scheduleReconnect(ctx)
		return
	}

	done, stop, err := g.feed.Subscribe(symbols, g.handleTick, g.handleFeedError)
	if err != nil {
		slog.Error("ingest: no se pudo abrir el stream", "error", err,
			"retry_in", g.reconnectDelay.String())
		g.scheduleReconnect(ctx)
		return
	}

	g.mu.Lock()
	if !g.running {
		// Stop ganó la carrera: cerrar lo que acabamos de abrir
		g.mu.Unlock()
		stop()
		return
	}
	g.state = StateConnected
	g.stopFeed = stop
	g.subscribed = symbols
	g.gen++
	myGen := g.gen
	g.mu.Unlock()

	slog.Info("ingest: stream conectado", "symbols", len(symbols))

	go g.watchDone(ctx, done, myGen)
}

// watchDone espera a que la conexión muera y programa la reconexión.
func (g *Gateway) watchDone(ctx context.Context, done <-chan struct{}, myGen int) {
	<-done

	g.mu.Lock()
	if !g.running || g.gen != myGen {
		g.mu.Unlock()
		return
	}
	g.stopFeed = nil
	g.mu.Unlock()

	slog.Warn("ingest: stream caído", "retry_in", g.reconnectDelay.String())
	g.scheduleReconnect(ctx)
}

// scheduleReconnect pasa a reconnect_wait y arma el timer del retry.
func (g *Gateway) scheduleReconnect(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running || ctx.Err() != nil {
		return
	}
	g.state = StateReconnectWait
	if g.reconnect != nil {
		g.reconnect.Stop()
	}
	g.reconnect = time.AfterFunc(g.reconnectDelay, func() { g.connect(ctx) })
}

func (g *Gateway) handleFeedError(err error) {
	// Los errores fatales cierran el done channel y los recoge
	// watchDone; aquí solo dejamos constancia.
	slog.Warn("ingest: error del stream", "error", err)
}

// --- camino del tick ---

// handleTick valida y reparte un tick crudo. Corre en la goroutine del
// websocket: nada aquí puede bloquear.
func (g *Gateway) handleTick(tick domain.ExchangeTick) {
	tokenID, tokenSymbol, ok := g.cache.Lookup(tick.Symbol)
	if !ok {
		return // símbolo no mapeado: tick de otro instrumento
	}

	price := money.Parse(tick.LastPrice)
	if !price.Positive() {
		return // precio no positivo o no parseable: se descarta entero
	}

	change, err := strconv.ParseFloat(tick.ChangePct24h, 64)
	if err != nil {
		change = 0
	}

	ts := tick.EventTime
	if ts.IsZero() {
		ts = time.Now()
	}

	u := domain.PriceUpdate{
		TokenID:   tokenID,
		Symbol:    tokenSymbol,
		Price:     price,
		Volume:    money.Parse(tick.Volume),
		Change24h: change,
		High24h:   money.Parse(tick.High24h),
		Low24h:    money.Parse(tick.Low24h),
		Timestamp: ts,
	}

	g.pricesMu.Lock()
	g.latest[tokenID] = u
	g.pricesMu.Unlock()

	g.bus.PublishPrice(u)

	select {
	case g.persistCh <- u:
	default:
		n := g.dropped.Add(1)
		if n%100 == 1 {
			slog.Debug("ingest: cola de persistencia llena", "dropped_total", n)
		}
	}
}

// persistLoop es el único escritor de ticks a disco. Al parar drena lo
// que quede en el buffer antes de salir.
func (g *Gateway) persistLoop() {
	defer g.writerWG.Done()

	// Las escrituras usan Background: un shutdown no debe abortar
	// filas ya encoladas.
	persist := func(u domain.PriceUpdate) {
		if err := g.store.UpdateTokenPrice(context.Background(), u); err != nil {
			slog.Error("ingest: persistencia de tick falló", "token", u.Symbol, "error", err)
		}
	}

	for {
		select {
		case u := <-g.persistCh:
			persist(u)
		case <-g.quit:
			for {
				select {
				case u := <-g.persistCh:
					persist(u)
				default:
					return
				}
			}
		}
	}
}

// sameSymbols compara dos listas ordenadas de símbolos.
func sameSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
