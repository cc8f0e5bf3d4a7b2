package domain

import (
	"fmt"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

// ExitReason explains why a simulated trade was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitTimeLimit  ExitReason = "time_limit"
	ExitEndOfRun   ExitReason = "end_of_run"
)

// BacktestParams configures one backtest run.
type BacktestParams struct {
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital money.Value
	Strategies     []PatternType // pattern types to replay
	StopLoss       float64       // fraction, e.g. 0.10 = exit at −10%; 0 disables
	TakeProfit     float64       // fraction, e.g. 0.25 = exit at +25%; 0 disables
	MaxPositions   int           // max simultaneous open simulated positions
	PositionSize   float64       // fraction of current cash per entry, e.g. 0.10
}

// Validate checks the parameter combination before a run starts.
func (p BacktestParams) Validate() error {
	if !p.EndDate.After(p.StartDate) {
		return fmt.Errorf("backtest params: endDate %s not after startDate %s",
			p.EndDate.Format(time.RFC3339), p.StartDate.Format(time.RFC3339))
	}
	if !p.InitialCapital.Positive() {
		return fmt.Errorf("backtest params: initialCapital must be positive")
	}
	if len(p.Strategies) == 0 {
		return fmt.Errorf("backtest params: at least one strategy required")
	}
	if p.PositionSize <= 0 || p.PositionSize > 1 {
		return fmt.Errorf("backtest params: positionSize %.4f outside (0, 1]", p.PositionSize)
	}
	if p.MaxPositions <= 0 {
		return fmt.Errorf("backtest params: maxPositions must be positive")
	}
	if p.StopLoss < 0 || p.StopLoss >= 1 {
		return fmt.Errorf("backtest params: stopLoss %.4f outside [0, 1)", p.StopLoss)
	}
	if p.TakeProfit < 0 {
		return fmt.Errorf("backtest params: takeProfit must be >= 0")
	}
	return nil
}

// SimulatedTrade is one round trip produced during a backtest run.
// Ephemeral: lives only inside the returned BacktestResult.
type SimulatedTrade struct {
	TokenID    string
	Strategy   PatternType
	Quantity   money.Value
	EntryPrice money.Value
	ExitPrice  money.Value
	PnL        money.Value
	PnLPercent float64
	EntryDate  time.Time
	ExitDate   time.Time
	HoldTime   time.Duration
	Reason     ExitReason
}

// EquityPoint is one point of the equity curve, in exit-time order.
type EquityPoint struct {
	Date     time.Time
	Equity   float64
	Drawdown float64 // % below the running peak at this point
}

// StrategyMetrics are the aggregate formulas scoped to one pattern type.
type StrategyMetrics struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	TotalPnL     float64
	MaxDrawdown  float64
	SharpeRatio  float64
	ProfitFactor float64
}

// BacktestResult is the aggregate outcome of one run. Never persisted
// by this core; the caller decides what to do with it.
type BacktestResult struct {
	RunID           string
	Params          BacktestParams
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64
	TotalPnL        float64
	TotalPnLPercent float64
	MaxDrawdown     float64
	SharpeRatio     float64
	ProfitFactor    float64
	FinalCapital    float64
	EquityCurve     []EquityPoint
	ByStrategy      map[PatternType]StrategyMetrics
	Trades          []SimulatedTrade
	PatternsSeen    int
	PatternsSkipped int
	StartedAt       time.Time
	FinishedAt      time.Time
}

// BacktestProgress reports the fraction of patterns processed so far.
type BacktestProgress struct {
	RunID   string
	Percent float64
}

// BacktestOutcome is the backtest-complete event payload.
type BacktestOutcome struct {
	Result BacktestResult
}

// BacktestCancelled is published when a run is cancelled cooperatively.
type BacktestCancelled struct {
	RunID string
}
