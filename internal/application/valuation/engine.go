package valuation

// The recompute engine turns price events into persisted valuations.
//
// Throttling: one pending timer per portfolio, cancel-and-replace on
// every new event, so a burst of N ticks inside the window collapses
// into a single recompute that reads the latest cached price at fire
// time. A fixed-interval backup sweep recomputes every portfolio and
// rebuilds the reverse index, bounding staleness when events are
// missed or the index lags behind position changes.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/events"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/ports"
)

const (
	defaultThrottleWindow = 250 * time.Millisecond
	defaultSweepInterval  = 30 * time.Second
	topPerformersLimit    = 5
)

// PriceSource is the in-memory current-price view the engine computes
// against. The gateway's latest-price cache implements it.
type PriceSource interface {
	CachedPrice(tokenID string) (domain.PriceUpdate, bool)
}

// Engine schedules and executes portfolio recomputes.
type Engine struct {
	store  ports.PortfolioStore
	prices PriceSource
	index  *Index
	bus    *events.Bus

	window     time.Duration
	sweepEvery time.Duration

	mu      sync.Mutex
	running bool
	timers  map[string]*time.Timer

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // per-portfolio write serialization

	onSweep []func(context.Context)

	unsub func()
	quit  chan struct{}
	wg    sync.WaitGroup
}

// NewEngine wires the engine. Non-positive durations fall back to the
// defaults (250ms window, 30s sweep).
func NewEngine(store ports.PortfolioStore, prices PriceSource, index *Index, bus *events.Bus, window, sweepEvery time.Duration) *Engine {
	if window <= 0 {
		window = defaultThrottleWindow
	}
	if sweepEvery <= 0 {
		sweepEvery = defaultSweepInterval
	}
	return &Engine{
		store:      store,
		prices:     prices,
		index:      index,
		bus:        bus,
		window:     window,
		sweepEvery: sweepEvery,
		timers:     make(map[string]*time.Timer),
		locks:      make(map[string]*sync.Mutex),
		quit:       make(chan struct{}),
	}
}

// OnSweep registers an extra hook to run at the start of every backup
// sweep (the gateway's symbol resync hangs off this). Call before Start.
func (e *Engine) OnSweep(hook func(context.Context)) {
	e.onSweep = append(e.onSweep, hook)
}

// Start builds the index, runs an initial sweep and begins consuming
// price events. Only the initial index build can fail.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	if err := e.index.Rebuild(ctx); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return fmt.Errorf("valuation.Start: %w", err)
	}

	ch, unsub := e.bus.SubscribePrices(256)
	e.unsub = unsub

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for u := range ch {
			e.onPrice(ctx, u)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sweep(ctx) // first sweep right away: don't wait 30s for valuations
		ticker := time.NewTicker(e.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.sweep(ctx)
			case <-e.quit:
				return
			}
		}
	}()

	slog.Info("valuation: engine started",
		"portfolios", len(e.index.PortfolioIDs()),
		"throttle", e.window.String(), "sweep", e.sweepEvery.String())
	return nil
}

// Stop cancels pending timers, the sweep and the event subscription,
// then waits for in-flight work. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()

	close(e.quit)
	if e.unsub != nil {
		e.unsub()
	}
	e.wg.Wait()
}

// onPrice fans a price event out to the portfolios holding the token.
func (e *Engine) onPrice(ctx context.Context, u domain.PriceUpdate) {
	for _, portfolioID := range e.index.PortfoliosFor(u.TokenID) {
		e.scheduleRecompute(ctx, portfolioID)
	}
}

// scheduleRecompute arms (or re-arms) the portfolio's throttle timer.
func (e *Engine) scheduleRecompute(ctx context.Context, portfolioID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	if t, ok := e.timers[portfolioID]; ok {
		t.Stop() // cancel-and-replace: the window restarts from the newest event
	}
	e.timers[portfolioID] = time.AfterFunc(e.window, func() {
		e.mu.Lock()
		if !e.running {
			e.mu.Unlock()
			return
		}
		delete(e.timers, portfolioID)
		e.mu.Unlock()

		if err := e.Recompute(ctx, portfolioID); err != nil {
			slog.Error("valuation: recompute failed", "portfolio", portfolioID, "error", err)
		}
	})
}

// sweep runs the hooks, rebuilds the index and recomputes everything.
func (e *Engine) sweep(ctx context.Context) {
	for _, hook := range e.onSweep {
		hook(ctx)
	}
	if err := e.index.Rebuild(ctx); err != nil {
		slog.Warn("valuation: index rebuild failed, sweeping with the previous one", "error", err)
	}
	for _, portfolioID := range e.index.PortfolioIDs() {
		if err := e.Recompute(ctx, portfolioID); err != nil {
			slog.Error("valuation: sweep recompute failed", "portfolio", portfolioID, "error", err)
		}
	}
}

// SweepOnce rebuilds the index and recomputes every portfolio a single
// time. Used by the one-shot maintenance mode.
func (e *Engine) SweepOnce(ctx context.Context) error {
	if err := e.index.Rebuild(ctx); err != nil {
		return fmt.Errorf("valuation.SweepOnce: %w", err)
	}
	for _, portfolioID := range e.index.PortfolioIDs() {
		if err := e.Recompute(ctx, portfolioID); err != nil {
			return err
		}
	}
	return nil
}

// Recompute revalues every position of one portfolio against the
// cached prices and persists the result. Positions without a usable
// price keep their stored valuation (never overwritten with garbage)
// but still count toward the aggregates.
func (e *Engine) Recompute(ctx context.Context, portfolioID string) error {
	lock := e.portfolioLock(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	pf, err := e.store.GetPortfolio(ctx, portfolioID)
	if errors.Is(err, domain.ErrPortfolioNotFound) {
		slog.Debug("valuation: portfolio gone from storage, skipping", "portfolio", portfolioID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("valuation.Recompute: load portfolio: %w", err)
	}

	positions, err := e.store.GetPositionsByPortfolio(ctx, portfolioID)
	if err != nil {
		return fmt.Errorf("valuation.Recompute: load positions: %w", err)
	}

	now := time.Now()
	totalPositions := money.Zero()
	dayChange := money.Zero()
	details := make([]domain.PositionDetail, 0, len(positions))

	for _, pos := range positions {
		if !pos.Open() {
			continue
		}

		u, ok := e.prices.CachedPrice(pos.TokenID)
		if !ok || !u.Price.Positive() {
			totalPositions = totalPositions.Add(orZero(pos.CurrentValue))
			dayChange = dayChange.Add(orZero(pos.DayChangeValue))
			continue
		}

		value := pos.Amount.Mul(u.Price)
		costBasis := pos.CostBasis()
		pnl := value.Sub(costBasis)
		if !value.Valid() || !pnl.Valid() {
			totalPositions = totalPositions.Add(orZero(pos.CurrentValue))
			dayChange = dayChange.Add(orZero(pos.DayChangeValue))
			continue
		}

		pos.CurrentValue = value
		pos.UnrealizedPnL = pnl
		pos.UnrealizedPnLPercent = pnl.PctOf(costBasis)
		pos.DayChangeValue = value.Mul(money.FromFloat(u.Change24h / 100))
		pos.UpdatedAt = now

		if err := e.store.UpdatePositionValuation(ctx, pos); err != nil {
			slog.Error("valuation: persist position failed",
				"portfolio", portfolioID, "position", pos.ID, "error", err)
		}

		totalPositions = totalPositions.Add(value)
		dayChange = dayChange.Add(orZero(pos.DayChangeValue))

		details = append(details, domain.PositionDetail{
			PositionID:           pos.ID,
			TokenID:              pos.TokenID,
			Symbol:               u.Symbol,
			Amount:               pos.Amount.Float64(),
			AvgBuyPrice:          pos.AvgBuyPrice.Float64(),
			CurrentPrice:         u.Price.Float64(),
			CurrentValue:         value.Float64(),
			UnrealizedPnL:        pnl.Float64(),
			UnrealizedPnLPercent: pos.UnrealizedPnLPercent,
			DayChangeValue:       pos.DayChangeValue.Float64(),
			HoldingDays:          pos.HoldingDays(now),
		})
	}

	pf.TotalValue = totalPositions.Add(orZero(pf.CashBalance))
	pf.TotalPnL = pf.TotalValue.Sub(pf.StartingCapital)
	pf.DailyPnL = dayChange
	pf.UpdatedAt = now

	if err := e.store.UpdatePortfolioValuation(ctx, pf); err != nil {
		slog.Error("valuation: persist portfolio failed", "portfolio", portfolioID, "error", err)
	}

	e.bus.PublishPortfolio(buildSnapshot(pf, details, now))
	e.bus.PublishPositions(domain.PositionsUpdate{
		PortfolioID: portfolioID,
		Positions:   details,
		ComputedAt:  now,
	})
	return nil
}

func (e *Engine) portfolioLock(portfolioID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[portfolioID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[portfolioID] = l
	}
	return l
}

// orZero maps invalid monetary values to zero for aggregation.
func orZero(v money.Value) money.Value {
	if v.Valid() {
		return v
	}
	return money.Zero()
}
