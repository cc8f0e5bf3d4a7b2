package backtest

// The simulator replays historical pattern detections against the
// stored price series. It never touches live portfolios or the price
// cache: input is history, output is a BacktestResult handed to the
// caller, so a run can execute alongside the live pipeline without
// coordination.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/events"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/ports"
)

const (
	exitScanLimit = 100                // samples scanned per trade looking for an exit
	maxHoldTime   = 7 * 24 * time.Hour // horizon after which a trade closes regardless
	progressEvery = 10                 // patterns between progress events
)

// Simulator runs offline strategy replays over persisted history.
type Simulator struct {
	history  ports.PriceHistory
	patterns ports.PatternStore
	bus      *events.Bus
}

func NewSimulator(history ports.PriceHistory, patterns ports.PatternStore, bus *events.Bus) *Simulator {
	return &Simulator{history: history, patterns: patterns, bus: bus}
}

// resolvedTrade is a trade whose exit is already decided. It stays in
// the pending set until the replay clock reaches its exit date, at
// which point the proceeds go back to cash.
type resolvedTrade struct {
	trade    domain.SimulatedTrade
	proceeds money.Value
}

// replay holds the mutable state of one run.
type replay struct {
	cash       money.Value
	pending    []resolvedTrade
	closed     []domain.SimulatedTrade
	openTokens map[string]struct{}
}

// releaseMatured closes every pending trade whose exit date has been
// reached, in exit order, returning proceeds to cash. Trades opened at
// later patterns always exit later than earlier release points, so the
// closed list ends up globally ordered by exit date.
func (r *replay) releaseMatured(now time.Time) {
	sort.SliceStable(r.pending, func(i, j int) bool {
		return r.pending[i].trade.ExitDate.Before(r.pending[j].trade.ExitDate)
	})
	keep := r.pending[:0]
	for _, rt := range r.pending {
		if rt.trade.ExitDate.After(now) {
			keep = append(keep, rt)
			continue
		}
		r.cash = r.cash.Add(rt.proceeds)
		delete(r.openTokens, rt.trade.TokenID)
		r.closed = append(r.closed, rt.trade)
	}
	r.pending = keep
}

// Run executes one backtest. Cancellation is cooperative: the context
// is checked between patterns and a cancelled run publishes
// backtest-cancelled and returns the context error; partial state is
// discarded.
func (s *Simulator) Run(ctx context.Context, params domain.BacktestParams) (domain.BacktestResult, error) {
	if err := params.Validate(); err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Run: %w", err)
	}
	runID := uuid.NewString()
	startedAt := time.Now()

	pats, err := s.patterns.GetPatternsByRange(ctx, params.StartDate, params.EndDate, params.Strategies)
	if err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Run: load patterns: %w", err)
	}
	// Replay order must be reproducible even when detections share a
	// timestamp, so ties break on the pattern id.
	sort.SliceStable(pats, func(i, j int) bool {
		if pats[i].DetectedAt.Equal(pats[j].DetectedAt) {
			return pats[i].ID < pats[j].ID
		}
		return pats[i].DetectedAt.Before(pats[j].DetectedAt)
	})

	slog.Info("backtest: run started", "run", runID, "patterns", len(pats),
		"from", params.StartDate.Format("2006-01-02"), "to", params.EndDate.Format("2006-01-02"))

	st := &replay{
		cash:       params.InitialCapital,
		openTokens: make(map[string]struct{}),
	}
	skipped := 0

	for i, pat := range pats {
		if err := ctx.Err(); err != nil {
			s.bus.PublishBacktestCancelled(domain.BacktestCancelled{RunID: runID})
			slog.Warn("backtest: run cancelled", "run", runID, "processed", i, "total", len(pats))
			return domain.BacktestResult{}, fmt.Errorf("backtest.Run: %w", err)
		}
		if i > 0 && i%progressEvery == 0 {
			s.bus.PublishBacktestProgress(domain.BacktestProgress{
				RunID:   runID,
				Percent: float64(i) / float64(len(pats)) * 100,
			})
		}

		st.releaseMatured(pat.DetectedAt)

		if len(st.pending) >= params.MaxPositions {
			skipped++
			continue
		}
		if _, held := st.openTokens[pat.TokenID]; held {
			skipped++
			continue
		}

		entry, ok := s.entryPrice(ctx, pat)
		if !ok {
			skipped++
			continue
		}
		cost := st.cash.Mul(money.FromFloat(params.PositionSize))
		if !cost.Positive() {
			skipped++ // cash exhausted
			continue
		}
		qty := cost.Div(entry)

		rt := s.resolveExit(ctx, params, pat, entry, qty, cost)
		st.cash = st.cash.Sub(cost)
		st.openTokens[pat.TokenID] = struct{}{}
		st.pending = append(st.pending, rt)
	}

	// Force-close whatever is still open at the end of the range.
	st.releaseMatured(params.EndDate)

	result := buildResult(runID, params, st.closed, len(pats), skipped, startedAt)
	s.bus.PublishBacktestProgress(domain.BacktestProgress{RunID: runID, Percent: 100})
	s.bus.PublishBacktestComplete(domain.BacktestOutcome{Result: result})

	slog.Info("backtest: run complete", "run", runID,
		"trades", result.TotalTrades, "winRate", fmt.Sprintf("%.1f%%", result.WinRate),
		"pnl", fmt.Sprintf("%.2f", result.TotalPnL), "skipped", skipped)
	return result, nil
}

// entryPrice resolves the entry as the most recent sample at or before
// the detection. A pattern without a usable price is skipped, never
// guessed.
func (s *Simulator) entryPrice(ctx context.Context, pat domain.Pattern) (money.Value, bool) {
	sample, ok, err := s.history.GetSampleAt(ctx, pat.TokenID, pat.DetectedAt)
	if err != nil {
		slog.Warn("backtest: entry price lookup failed", "token", pat.TokenID, "error", err)
		return money.Value{}, false
	}
	if !ok || !sample.Price.Positive() {
		return money.Value{}, false
	}
	return sample.Price, true
}

// resolveExit walks the price series after entry and decides when and
// why the trade closes. Stop-loss, take-profit and the hold horizon
// are checked in that order on each sample; if nothing triggers inside
// the scan window the trade closes at the last sample seen, and a
// token with no samples after entry closes flat at the range end.
func (s *Simulator) resolveExit(ctx context.Context, params domain.BacktestParams, pat domain.Pattern, entry, qty, cost money.Value) resolvedTrade {
	samples, err := s.history.GetSamplesAfter(ctx, pat.TokenID, pat.DetectedAt, params.EndDate, exitScanLimit)
	if err != nil {
		slog.Warn("backtest: exit scan failed", "token", pat.TokenID, "error", err)
		samples = nil
	}

	entryF := entry.Float64()
	stopAt := entryF * (1 - params.StopLoss)
	profitAt := entryF * (1 + params.TakeProfit)
	deadline := pat.DetectedAt.Add(maxHoldTime)

	exitPrice := entry
	exitAt := params.EndDate
	reason := domain.ExitEndOfRun

	for _, smp := range samples {
		if !smp.Price.Positive() {
			continue
		}
		price := smp.Price.Float64()
		exitPrice, exitAt, reason = smp.Price, smp.Timestamp, domain.ExitEndOfRun

		if params.StopLoss > 0 && price <= stopAt {
			reason = domain.ExitStopLoss
			break
		}
		if params.TakeProfit > 0 && price >= profitAt {
			reason = domain.ExitTakeProfit
			break
		}
		if !smp.Timestamp.Before(deadline) {
			reason = domain.ExitTimeLimit
			break
		}
	}

	proceeds := qty.Mul(exitPrice)
	pnl := proceeds.Sub(cost)
	return resolvedTrade{
		trade: domain.SimulatedTrade{
			TokenID:    pat.TokenID,
			Strategy:   pat.PatternType,
			Quantity:   qty,
			EntryPrice: entry,
			ExitPrice:  exitPrice,
			PnL:        pnl,
			PnLPercent: pnl.PctOf(cost),
			EntryDate:  pat.DetectedAt,
			ExitDate:   exitAt,
			HoldTime:   exitAt.Sub(pat.DetectedAt),
			Reason:     reason,
		},
		proceeds: proceeds,
	}
}
