package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/adapters/storage"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

// seedDemo inserta un catálogo mínimo de memecoins y un portfolio de
// ejemplo con tres posiciones abiertas, para poder probar el modo live
// sin tener que crear datos a mano. Todos los ids son estables: volver
// a ejecutar el seed resetea la demo en lugar de duplicarla.
func seedDemo(ctx context.Context, store *storage.SQLiteStorage) error {
	now := time.Now().UTC()

	tokens := []domain.Token{
		{ID: "tok-pepe", Symbol: "PEPE", Name: "Pepe", CurrentPrice: money.Parse("0.0000112"), Volume24h: money.FromInt(8_500_000), PriceChange24h: 6.4},
		{ID: "tok-doge", Symbol: "DOGE", Name: "Dogecoin", CurrentPrice: money.Parse("0.21"), Volume24h: money.FromInt(120_000_000), PriceChange24h: -1.2},
		{ID: "tok-shib", Symbol: "SHIB", Name: "Shiba Inu", CurrentPrice: money.Parse("0.0000135"), Volume24h: money.FromInt(23_000_000), PriceChange24h: 2.8},
		{ID: "tok-bonk", Symbol: "BONK", Name: "Bonk", CurrentPrice: money.Parse("0.0000215"), Volume24h: money.FromInt(5_400_000), PriceChange24h: 11.3},
		{ID: "tok-wif", Symbol: "WIF", Name: "dogwifhat", CurrentPrice: money.Parse("1.87"), Volume24h: money.FromInt(9_800_000), PriceChange24h: -4.5},
		{ID: "tok-floki", Symbol: "FLOKI", Name: "Floki", CurrentPrice: money.Parse("0.000095"), Volume24h: money.FromInt(3_100_000), PriceChange24h: 0.9},
	}
	for _, t := range tokens {
		t.UpdatedAt = now
		if err := store.SaveToken(ctx, t); err != nil {
			return fmt.Errorf("seed token %s: %w", t.Symbol, err)
		}
	}

	pf := domain.Portfolio{
		ID:              "pf-demo",
		UserID:          "demo",
		Name:            "Demo Degen Fund",
		CashBalance:     money.FromInt(2500),
		StartingCapital: money.FromInt(10000),
		UpdatedAt:       now,
	}
	if err := store.SavePortfolio(ctx, pf); err != nil {
		return fmt.Errorf("seed portfolio: %w", err)
	}

	// PEPE y DOGE en verde, WIF comprada arriba para tener una posición
	// en pérdidas en los top performers.
	positions := []domain.Position{
		{ID: "pos-demo-pepe", TokenID: "tok-pepe", Amount: money.FromInt(100_000_000), AvgBuyPrice: money.Parse("0.0000095"), EntryAt: now.AddDate(0, 0, -12)},
		{ID: "pos-demo-doge", TokenID: "tok-doge", Amount: money.FromInt(5000), AvgBuyPrice: money.Parse("0.185"), EntryAt: now.AddDate(0, 0, -5)},
		{ID: "pos-demo-wif", TokenID: "tok-wif", Amount: money.FromInt(150), AvgBuyPrice: money.Parse("2.10"), EntryAt: now.AddDate(0, 0, -2)},
	}
	for _, pos := range positions {
		pos.PortfolioID = pf.ID
		pos.UpdatedAt = now
		if err := store.SavePosition(ctx, pos); err != nil {
			return fmt.Errorf("seed position %s: %w", pos.TokenID, err)
		}
	}

	slog.Info("demo data seeded",
		"tokens", len(tokens),
		"portfolio", pf.ID,
		"positions", len(positions),
	)
	return nil
}
