package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/adapters/notify"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/adapters/storage"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/application/backtest"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/events"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

// backtestParams traduce los flags de CLI a parámetros del simulador.
// La ventana termina ahora y retrocede days días.
func backtestParams(days int, capital float64, strategies string, stop, take, size float64, maxOpen int) (domain.BacktestParams, error) {
	if days <= 0 {
		return domain.BacktestParams{}, fmt.Errorf("days must be positive, got %d", days)
	}

	known := make(map[domain.PatternType]bool)
	for _, t := range domain.KnownPatternTypes() {
		known[t] = true
	}

	var parsed []domain.PatternType
	for _, raw := range strings.Split(strategies, ",") {
		name := domain.PatternType(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if !known[name] {
			return domain.BacktestParams{}, fmt.Errorf("unknown strategy %q", name)
		}
		parsed = append(parsed, name)
	}

	end := time.Now().UTC()
	params := domain.BacktestParams{
		StartDate:      end.AddDate(0, 0, -days),
		EndDate:        end,
		InitialCapital: money.FromFloat(capital),
		Strategies:     parsed,
		StopLoss:       stop,
		TakeProfit:     take,
		MaxPositions:   maxOpen,
		PositionSize:   size,
	}
	if err := params.Validate(); err != nil {
		return domain.BacktestParams{}, err
	}
	return params, nil
}

func runBacktest(ctx context.Context, store *storage.SQLiteStorage, params domain.BacktestParams, asJSON bool) error {
	bus := events.NewBus()
	defer bus.Close()

	sim := backtest.NewSimulator(store, store, bus)
	result, err := sim.Run(ctx, params)
	if err != nil {
		return err
	}

	if asJSON {
		raw, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Println(string(raw))
		return nil
	}

	notify.NewConsole().PrintBacktest(result)
	return nil
}
