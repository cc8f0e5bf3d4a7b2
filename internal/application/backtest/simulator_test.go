package backtest

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/events"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

var runStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeHistory struct {
	samples map[string][]domain.PriceSample
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{samples: make(map[string][]domain.PriceSample)}
}

func (f *fakeHistory) add(tokenID string, at time.Time, price float64) {
	f.samples[tokenID] = append(f.samples[tokenID], domain.PriceSample{
		TokenID: tokenID, Price: money.FromFloat(price), Timestamp: at,
	})
	sort.Slice(f.samples[tokenID], func(i, j int) bool {
		return f.samples[tokenID][i].Timestamp.Before(f.samples[tokenID][j].Timestamp)
	})
}

func (f *fakeHistory) SavePriceSample(_ context.Context, s domain.PriceSample) error {
	f.add(s.TokenID, s.Timestamp, s.Price.Float64())
	return nil
}

func (f *fakeHistory) GetSampleAt(_ context.Context, tokenID string, ts time.Time) (domain.PriceSample, bool, error) {
	list := f.samples[tokenID]
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].Timestamp.After(ts) {
			return list[i], true, nil
		}
	}
	return domain.PriceSample{}, false, nil
}

func (f *fakeHistory) GetSamplesAfter(_ context.Context, tokenID string, from, until time.Time, limit int) ([]domain.PriceSample, error) {
	var out []domain.PriceSample
	for _, s := range f.samples[tokenID] {
		if s.Timestamp.After(from) && !s.Timestamp.After(until) {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type fakePatternStore struct {
	pats []domain.Pattern
}

func (f *fakePatternStore) SavePattern(_ context.Context, p domain.Pattern) error {
	f.pats = append(f.pats, p)
	return nil
}

func (f *fakePatternStore) GetPatternsByRange(_ context.Context, from, to time.Time, types []domain.PatternType) ([]domain.Pattern, error) {
	want := make(map[domain.PatternType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []domain.Pattern
	for _, p := range f.pats {
		if p.DetectedAt.Before(from) || p.DetectedAt.After(to) {
			continue
		}
		if len(want) > 0 && !want[p.PatternType] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func detection(id, tokenID string, at time.Time) domain.Pattern {
	return domain.Pattern{
		ID: id, TokenID: tokenID,
		PatternType: domain.PatternVolumeSpike,
		Confidence:  0.8,
		DetectedAt:  at,
	}
}

func baseParams() domain.BacktestParams {
	return domain.BacktestParams{
		StartDate:      runStart,
		EndDate:        runStart.AddDate(0, 1, 0),
		InitialCapital: money.FromFloat(10000),
		Strategies:     []domain.PatternType{domain.PatternVolumeSpike},
		StopLoss:       0.10,
		TakeProfit:     0.25,
		MaxPositions:   5,
		PositionSize:   0.10,
	}
}

func newSim(t *testing.T, history *fakeHistory, patterns *fakePatternStore) *Simulator {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return NewSimulator(history, patterns, bus)
}

func TestRun_RejectsInvalidParams(t *testing.T) {
	sim := newSim(t, newFakeHistory(), &fakePatternStore{})

	p := baseParams()
	p.EndDate = p.StartDate.Add(-time.Hour)
	_, err := sim.Run(context.Background(), p)
	assert.Error(t, err)

	p = baseParams()
	p.PositionSize = 1.5
	_, err = sim.Run(context.Background(), p)
	assert.Error(t, err)
}

func TestRun_TakeProfitExit(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00)
	history.add("tok-a", runStart.Add(10*time.Minute), 1.05)
	history.add("tok-a", runStart.Add(20*time.Minute), 1.30)

	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart.Add(time.Minute)),
	}}

	result, err := newSim(t, history, patterns).Run(context.Background(), baseParams())
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, domain.ExitTakeProfit, tr.Reason)
	assert.InDelta(t, 1.00, tr.EntryPrice.Float64(), 1e-9)
	assert.InDelta(t, 1.30, tr.ExitPrice.Float64(), 1e-9)
	assert.InDelta(t, 300, tr.PnL.Float64(), 1e-6) // 1000 unidades, +0.30
	assert.InDelta(t, 30, tr.PnLPercent, 1e-6)

	assert.Equal(t, 1, result.TotalTrades)
	assert.Equal(t, 1, result.WinningTrades)
	assert.InDelta(t, 100, result.WinRate, 1e-9)
	assert.True(t, math.IsInf(result.ProfitFactor, 1))
	assert.InDelta(t, 10300, result.FinalCapital, 1e-6)
	assert.InDelta(t, 3, result.TotalPnLPercent, 1e-6)
	assert.Zero(t, result.MaxDrawdown)

	require.Len(t, result.EquityCurve, 1)
	assert.InDelta(t, 10300, result.EquityCurve[0].Equity, 1e-6)

	require.Contains(t, result.ByStrategy, domain.PatternVolumeSpike)
	assert.Equal(t, 1, result.ByStrategy[domain.PatternVolumeSpike].Trades)
}

func TestRun_StopLossExit(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00)
	history.add("tok-a", runStart.Add(5*time.Minute), 0.95)
	history.add("tok-a", runStart.Add(10*time.Minute), 0.85)
	history.add("tok-a", runStart.Add(15*time.Minute), 2.00) // nunca se alcanza

	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart.Add(time.Minute)),
	}}

	result, err := newSim(t, history, patterns).Run(context.Background(), baseParams())
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, domain.ExitStopLoss, tr.Reason)
	assert.InDelta(t, 0.85, tr.ExitPrice.Float64(), 1e-9)
	assert.InDelta(t, -150, tr.PnL.Float64(), 1e-6)

	assert.Equal(t, 1, result.LosingTrades)
	assert.Zero(t, result.WinRate)
	assert.Zero(t, result.ProfitFactor)
	assert.InDelta(t, 9850, result.FinalCapital, 1e-6)
	assert.InDelta(t, 1.5, result.MaxDrawdown, 1e-6) // 150 bajo el pico de 10000
}

func TestRun_TimeLimitExit(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00)
	history.add("tok-a", runStart.Add(24*time.Hour), 1.01)
	history.add("tok-a", runStart.Add(8*24*time.Hour), 1.10)

	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart),
	}}

	p := baseParams()
	p.StopLoss = 0 // desactivados: solo puede cerrar por horizonte
	p.TakeProfit = 0

	result, err := newSim(t, history, patterns).Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, domain.ExitTimeLimit, tr.Reason)
	assert.InDelta(t, 1.10, tr.ExitPrice.Float64(), 1e-9)
	assert.Equal(t, 8*24*time.Hour, tr.HoldTime)
}

func TestRun_ClosesAtLastScannedSample(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00)
	history.add("tok-a", runStart.Add(time.Hour), 1.02)
	history.add("tok-a", runStart.Add(2*time.Hour), 1.04)

	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart.Add(time.Minute)),
	}}

	p := baseParams()
	p.StopLoss = 0
	p.TakeProfit = 0

	result, err := newSim(t, history, patterns).Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, domain.ExitEndOfRun, tr.Reason)
	assert.InDelta(t, 1.04, tr.ExitPrice.Float64(), 1e-9)
	assert.Equal(t, runStart.Add(2*time.Hour), tr.ExitDate)
	assert.InDelta(t, 40, tr.PnL.Float64(), 1e-6)
}

func TestRun_ForceClosesFlatWithoutExitSamples(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00) // única muestra: sirve de entrada

	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart.Add(time.Minute)),
	}}

	p := baseParams()
	result, err := newSim(t, history, patterns).Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	tr := result.Trades[0]
	assert.Equal(t, domain.ExitEndOfRun, tr.Reason)
	assert.True(t, tr.ExitPrice.Equal(tr.EntryPrice))
	assert.Equal(t, p.EndDate, tr.ExitDate)
	assert.True(t, tr.PnL.IsZero())
}

func TestRun_SkipsPatternsWithoutHistory(t *testing.T) {
	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-ghost", runStart.Add(time.Minute)),
	}}

	result, err := newSim(t, newFakeHistory(), patterns).Run(context.Background(), baseParams())
	require.NoError(t, err)

	assert.Zero(t, result.TotalTrades)
	assert.Equal(t, 1, result.PatternsSeen)
	assert.Equal(t, 1, result.PatternsSkipped)
	assert.InDelta(t, 10000, result.FinalCapital, 1e-9)
}

func TestRun_MaxPositionsLimit(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00)
	history.add("tok-a", runStart.Add(20*time.Minute), 1.30) // take-profit de A
	history.add("tok-b", runStart, 1.00)
	history.add("tok-c", runStart, 1.00)

	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart.Add(1*time.Minute)),
		detection("p-2", "tok-b", runStart.Add(5*time.Minute)),  // A sigue abierta: no cabe
		detection("p-3", "tok-c", runStart.Add(30*time.Minute)), // A ya cerró: entra
	}}

	p := baseParams()
	p.MaxPositions = 1

	result, err := newSim(t, history, patterns).Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, "tok-a", result.Trades[0].TokenID)
	assert.Equal(t, "tok-c", result.Trades[1].TokenID)
	assert.Equal(t, 1, result.PatternsSkipped)
}

func TestRun_OnePositionPerToken(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00)
	history.add("tok-a", runStart.Add(20*time.Minute), 1.30)

	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart.Add(1*time.Minute)),
		detection("p-2", "tok-a", runStart.Add(5*time.Minute)), // mismo token aún abierto
	}}

	result, err := newSim(t, history, patterns).Run(context.Background(), baseParams())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalTrades)
	assert.Equal(t, 1, result.PatternsSkipped)
}

func TestRun_CashCompoundsBetweenTrades(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00)
	history.add("tok-a", runStart.Add(10*time.Minute), 2.00)
	history.add("tok-b", runStart, 1.00)

	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart.Add(1*time.Minute)),
		detection("p-2", "tok-b", runStart.Add(20*time.Minute)),
	}}

	p := baseParams()
	p.InitialCapital = money.FromFloat(1000)
	p.PositionSize = 0.5
	p.StopLoss = 0
	p.TakeProfit = 0.5

	result, err := newSim(t, history, patterns).Run(context.Background(), p)
	require.NoError(t, err)

	// A: 500 a 1.00, sale a 2.00 → cash 1500 antes de abrir B
	require.Len(t, result.Trades, 2)
	assert.InDelta(t, 500, result.Trades[0].Quantity.Float64(), 1e-6)
	assert.InDelta(t, 750, result.Trades[1].Quantity.Float64(), 1e-6)
	assert.InDelta(t, 1500, result.FinalCapital, 1e-6)
}

func TestRun_DeterministicTieBreakOnID(t *testing.T) {
	history := newFakeHistory()
	history.add("tok-a", runStart, 1.00)
	history.add("tok-b", runStart, 1.00)

	at := runStart.Add(time.Minute)
	// Guardadas en orden inverso al id: el replay debe ordenar por id
	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-2", "tok-a", at),
		detection("p-1", "tok-b", at),
	}}

	p := baseParams()
	p.MaxPositions = 1

	run := func() domain.BacktestResult {
		result, err := newSim(t, history, patterns).Run(context.Background(), p)
		require.NoError(t, err)
		return result
	}

	first, second := run(), run()
	require.Len(t, first.Trades, 1)
	assert.Equal(t, "tok-b", first.Trades[0].TokenID)

	require.Equal(t, len(first.Trades), len(second.Trades))
	for i := range first.Trades {
		assert.Equal(t, first.Trades[i].TokenID, second.Trades[i].TokenID)
		assert.Equal(t, first.Trades[i].PnL.String(), second.Trades[i].PnL.String())
	}
	assert.Equal(t, first.TotalPnL, second.TotalPnL)
	assert.Equal(t, first.MaxDrawdown, second.MaxDrawdown)
}

func TestRun_PublishesProgressAndCompletion(t *testing.T) {
	patterns := &fakePatternStore{}
	for i := 0; i < 25; i++ {
		patterns.pats = append(patterns.pats,
			detection(string(rune('a'+i)), "tok-ghost", runStart.Add(time.Duration(i)*time.Minute)))
	}

	bus := events.NewBus()
	t.Cleanup(bus.Close)
	progress, unsubP := bus.SubscribeBacktestProgress(8)
	defer unsubP()
	complete, unsubC := bus.SubscribeBacktestComplete(4)
	defer unsubC()

	sim := NewSimulator(newFakeHistory(), patterns, bus)
	result, err := sim.Run(context.Background(), baseParams())
	require.NoError(t, err)

	var pcts []float64
	for i := 0; i < 3; i++ {
		select {
		case ev := <-progress:
			pcts = append(pcts, ev.Percent)
		default:
			t.Fatalf("missing progress event %d", i)
		}
	}
	assert.InDelta(t, 40, pcts[0], 1e-9)
	assert.InDelta(t, 80, pcts[1], 1e-9)
	assert.InDelta(t, 100, pcts[2], 1e-9)

	select {
	case out := <-complete:
		assert.Equal(t, result.RunID, out.Result.RunID)
		assert.Equal(t, 25, out.Result.PatternsSeen)
		assert.Equal(t, 25, out.Result.PatternsSkipped)
	default:
		t.Fatal("missing completion event")
	}
}

func TestRun_CancellationPublishesEvent(t *testing.T) {
	patterns := &fakePatternStore{pats: []domain.Pattern{
		detection("p-1", "tok-a", runStart.Add(time.Minute)),
	}}

	bus := events.NewBus()
	t.Cleanup(bus.Close)
	cancelled, unsub := bus.SubscribeBacktestCancelled(4)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := NewSimulator(newFakeHistory(), patterns, bus)
	_, err := sim.Run(ctx, baseParams())
	require.ErrorIs(t, err, context.Canceled)

	select {
	case ev := <-cancelled:
		assert.NotEmpty(t, ev.RunID)
	default:
		t.Fatal("missing cancellation event")
	}
}

func simTrade(pnl float64, exit time.Time) domain.SimulatedTrade {
	return domain.SimulatedTrade{
		Strategy:   domain.PatternVolumeSpike,
		PnL:        money.FromFloat(pnl),
		PnLPercent: pnl / 1000 * 100,
		ExitDate:   exit,
	}
}

func TestComputeMetrics_WinRateAndProfitFactor(t *testing.T) {
	var trades []domain.SimulatedTrade
	for i := 0; i < 7; i++ {
		trades = append(trades, simTrade(100, runStart.Add(time.Duration(i)*time.Hour)))
	}
	for i := 7; i < 10; i++ {
		trades = append(trades, simTrade(-50, runStart.Add(time.Duration(i)*time.Hour)))
	}

	m := computeMetrics(trades, 10000)
	assert.Equal(t, 10, m.Trades)
	assert.Equal(t, 7, m.Wins)
	assert.Equal(t, 3, m.Losses)
	assert.InDelta(t, 70, m.WinRate, 1e-9)
	assert.InDelta(t, 2, m.ProfitFactor, 1e-9) // avgWin 100 / avgLoss 50
	assert.InDelta(t, 550, m.TotalPnL, 1e-9)
	assert.InDelta(t, 12.70, m.SharpeRatio, 0.01)
}

func TestComputeMetrics_ProfitFactorEdges(t *testing.T) {
	wins := []domain.SimulatedTrade{simTrade(10, runStart), simTrade(20, runStart.Add(time.Hour))}
	assert.True(t, math.IsInf(computeMetrics(wins, 10000).ProfitFactor, 1))

	losses := []domain.SimulatedTrade{simTrade(-10, runStart)}
	assert.Zero(t, computeMetrics(losses, 10000).ProfitFactor)

	empty := computeMetrics(nil, 10000)
	assert.Zero(t, empty.Trades)
	assert.Zero(t, empty.ProfitFactor)
	assert.Zero(t, empty.SharpeRatio)
}

func TestComputeMetrics_SharpeZeroWhenFlat(t *testing.T) {
	trades := []domain.SimulatedTrade{
		simTrade(100, runStart),
		simTrade(100, runStart.Add(time.Hour)),
	}
	assert.Zero(t, computeMetrics(trades, 10000).SharpeRatio)
}

func TestMaxDrawdown_PeakToTrough(t *testing.T) {
	// Curva 10000 → 11000 → 9000 → 9500: caída máxima 2000 desde 11000
	trades := []domain.SimulatedTrade{
		simTrade(1000, runStart),
		simTrade(-2000, runStart.Add(time.Hour)),
		simTrade(500, runStart.Add(2*time.Hour)),
	}

	m := computeMetrics(trades, 10000)
	assert.InDelta(t, 18.18, m.MaxDrawdown, 0.01)

	curve := equityCurve(trades, 10000)
	require.Len(t, curve, 3)
	assert.InDelta(t, 11000, curve[0].Equity, 1e-9)
	assert.InDelta(t, 9000, curve[1].Equity, 1e-9)
	assert.InDelta(t, 9500, curve[2].Equity, 1e-9)
	assert.Zero(t, curve[0].Drawdown)
	assert.InDelta(t, 13.64, curve[2].Drawdown, 0.01)
}
