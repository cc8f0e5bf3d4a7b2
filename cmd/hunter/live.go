package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/config"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/adapters/binance"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/adapters/notify"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/adapters/storage"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/application/ingest"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/application/patterns"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/application/valuation"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/events"
)

// runLive cablea el pipeline completo y bloquea hasta recibir una señal:
// feed de Binance -> gateway de ingestión -> bus -> engine de valoración,
// con el detector de patrones colgado del bus si está habilitado.
func runLive(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) error {
	client := binance.NewPublicClient(cfg.Feed.UseTestnet)
	directory := binance.NewDirectory(client)
	feed := binance.NewWsFeed()

	bus := events.NewBus()
	defer bus.Close()

	cache := ingest.NewSymbolCache(store, directory, cfg.Feed.QuoteAsset, cfg.Feed.SymbolOverrides)
	gateway := ingest.NewGateway(feed, store, cache, bus, cfg.ReconnectDelay(), cfg.Ingest.PersistQueueSize)

	index := valuation.NewIndex(store)
	engine := valuation.NewEngine(store, gateway, index, bus, cfg.ThrottleWindow(), cfg.SweepInterval())
	// cada sweep refresca también el set de símbolos suscritos, así los
	// tokens añadidos en caliente entran al feed sin reiniciar
	engine.OnSweep(gateway.ResyncSymbols)

	var detector *patterns.Detector
	if cfg.Patterns.Enabled {
		detector = patterns.NewDetector(store, bus, patterns.Settings{
			VolumeSpikeMult: cfg.Patterns.VolumeSpikeMult,
			PriceSurgePct:   cfg.Patterns.PriceSurgePct,
			BreakoutWindow:  cfg.Patterns.BreakoutWindow,
			Cooldown:        cfg.PatternCooldown(),
		})
	}

	// los consumidores arrancan antes que el gateway para no perder los
	// primeros ticks tras la conexión
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start valuation engine: %w", err)
	}
	if detector != nil {
		detector.Start(ctx)
	}
	gateway.Start(ctx)

	<-ctx.Done()
	slog.Info("shutting down", "dropped_events", bus.DroppedEvents())

	gateway.Stop()
	if detector != nil {
		detector.Stop()
	}
	engine.Stop()
	return nil
}

// snapshotPrices sirve precios desde el último estado persistido de los
// tokens. Permite revalorar portfolios sin abrir el feed.
type snapshotPrices struct {
	prices map[string]domain.PriceUpdate
}

func loadSnapshotPrices(ctx context.Context, store *storage.SQLiteStorage) (*snapshotPrices, error) {
	tokens, err := store.GetAllTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}

	prices := make(map[string]domain.PriceUpdate, len(tokens))
	for _, t := range tokens {
		if !t.CurrentPrice.Positive() {
			continue
		}
		prices[t.ID] = domain.PriceUpdate{
			TokenID:   t.ID,
			Symbol:    t.Symbol,
			Price:     t.CurrentPrice,
			Volume:    t.Volume24h,
			Change24h: t.PriceChange24h,
			Timestamp: t.UpdatedAt,
		}
	}
	return &snapshotPrices{prices: prices}, nil
}

func (s *snapshotPrices) CachedPrice(tokenID string) (domain.PriceUpdate, bool) {
	u, ok := s.prices[tokenID]
	return u, ok
}

// runSweepOnce revalora todos los portfolios una vez contra los últimos
// precios guardados e imprime el informe de cada uno. Útil tras un seed
// o para inspeccionar el estado sin levantar el modo live.
func runSweepOnce(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage) error {
	prices, err := loadSnapshotPrices(ctx, store)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()

	// suscritos antes del sweep: SweepOnce publica en línea, así que al
	// terminar los buffers contienen los eventos de cada recompute
	snaps, unsubSnaps := bus.SubscribePortfolios(64)
	posUpdates, unsubPos := bus.SubscribePositions(64)

	index := valuation.NewIndex(store)
	engine := valuation.NewEngine(store, prices, index, bus, cfg.ThrottleWindow(), cfg.SweepInterval())
	err = engine.SweepOnce(ctx)
	unsubSnaps()
	unsubPos()
	if err != nil {
		return err
	}

	positionsByPortfolio := make(map[string][]domain.PositionDetail)
	for u := range posUpdates {
		positionsByPortfolio[u.PortfolioID] = u.Positions
	}

	console := notify.NewConsole()
	printed := 0
	for snap := range snaps {
		console.PrintPortfolio(snap, positionsByPortfolio[snap.PortfolioID])
		printed++
	}
	if printed == 0 {
		slog.Info("no portfolios to revalue")
	}
	return nil
}
