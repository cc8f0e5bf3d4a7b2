package notify

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

// Console escribe informes legibles del pipeline. Es un consumidor más
// de los eventos del bus: el core nunca depende de él.
type Console struct {
	out io.Writer
}

// NewConsole crea un informador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un informador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintPortfolio imprime el estado de un portfolio tras un recompute:
// tabla de posiciones, agregados y top performers.
func (c *Console) PrintPortfolio(snap domain.PortfolioSnapshot, positions []domain.PositionDetail) {
	fmt.Fprintf(c.out, "\n=== PORTFOLIO %s (user %s) ===\n\n", snap.PortfolioID, snap.UserID)

	if len(positions) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Token", "Amount", "Avg Buy", "Price", "Value", "PnL", "PnL%", "Day", "Held")
		for _, p := range positions {
			table.Append(
				p.Symbol,
				num(p.Amount),
				num(p.AvgBuyPrice),
				num(p.CurrentPrice),
				fmt.Sprintf("$%.2f", p.CurrentValue),
				fmt.Sprintf("$%.2f", p.UnrealizedPnL),
				fmt.Sprintf("%+.1f%%", p.UnrealizedPnLPercent),
				fmt.Sprintf("$%.2f", p.DayChangeValue),
				fmt.Sprintf("%.1fd", p.HoldingDays),
			)
		}
		table.Render()
		fmt.Fprintln(c.out)
	}

	fmt.Fprintf(c.out, "  Total value:  $%.2f\n", snap.TotalValue)
	fmt.Fprintf(c.out, "  Total PnL:    $%.2f (%+.2f%%)\n", snap.TotalPnL, snap.TotalPnLPercent)
	fmt.Fprintf(c.out, "  Daily PnL:    $%.2f (%+.2f%%)\n", snap.DayChangeValue, snap.DayChange)
	fmt.Fprintf(c.out, "  Risk:         concentration %.1f%%  positions %d  volatility %.2f\n",
		snap.Risk.Concentration, snap.Risk.Diversification, snap.Risk.Volatility)

	if len(snap.TopPerformers) > 0 {
		fmt.Fprintf(c.out, "\n  TOP PERFORMERS\n")
		for i, tp := range snap.TopPerformers {
			fmt.Fprintf(c.out, "  #%d %-8s %+.1f%%  ($%.2f)\n",
				i+1, tp.Symbol, tp.PnLPercent, tp.UnrealizedPnL)
		}
	}
	fmt.Fprintln(c.out)
}

// PrintBacktest imprime el resultado de un backtest: cabecera, tabla de
// trades, agregados y desglose por estrategia.
func (c *Console) PrintBacktest(r domain.BacktestResult) {
	fmt.Fprintf(c.out, "\n============================================================\n")
	fmt.Fprintf(c.out, " BACKTEST %s\n", r.RunID[:8])
	fmt.Fprintf(c.out, " %s -> %s  strategies: %s\n",
		r.Params.StartDate.Format("2006-01-02"),
		r.Params.EndDate.Format("2006-01-02"),
		joinStrategies(r.Params.Strategies))
	fmt.Fprintf(c.out, "============================================================\n\n")

	if len(r.Trades) == 0 {
		fmt.Fprintf(c.out, "  no trades: %d patterns seen, %d skipped\n\n",
			r.PatternsSeen, r.PatternsSkipped)
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Token", "Strategy", "Entry", "Exit", "Qty", "PnL", "PnL%", "Hold", "Reason")
	for i, tr := range r.Trades {
		table.Append(
			fmt.Sprintf("%d", i+1),
			tr.TokenID,
			string(tr.Strategy),
			tr.EntryPrice.String(),
			tr.ExitPrice.String(),
			tr.Quantity.StringFixed(2),
			tr.PnL.StringFixed(2),
			fmt.Sprintf("%.1f%%", tr.PnLPercent),
			formatHold(tr.HoldTime),
			string(tr.Reason),
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "\n--- AGGREGATE ---\n")
	fmt.Fprintf(c.out, "  Patterns:      %d replayed, %d skipped\n", r.PatternsSeen, r.PatternsSkipped)
	fmt.Fprintf(c.out, "  Trades:        %d (W:%d L:%d)  win rate %.1f%%\n",
		r.TotalTrades, r.WinningTrades, r.LosingTrades, r.WinRate)
	fmt.Fprintf(c.out, "  Total PnL:     $%.2f (%.2f%%)\n", r.TotalPnL, r.TotalPnLPercent)
	fmt.Fprintf(c.out, "  Final capital: $%.2f\n", r.FinalCapital)
	fmt.Fprintf(c.out, "  Max drawdown:  %.2f%%\n", r.MaxDrawdown)
	fmt.Fprintf(c.out, "  Sharpe:        %.2f\n", r.SharpeRatio)
	fmt.Fprintf(c.out, "  Profit factor: %s\n", formatFactor(r.ProfitFactor))

	fmt.Fprintf(c.out, "\n--- BY STRATEGY ---\n")
	byStrategy := tablewriter.NewWriter(c.out)
	byStrategy.Header("Strategy", "Trades", "W/L", "Win%", "PnL", "MaxDD", "Sharpe", "PF")
	for _, name := range r.Params.Strategies {
		m := r.ByStrategy[name]
		byStrategy.Append(
			string(name),
			fmt.Sprintf("%d", m.Trades),
			fmt.Sprintf("%d/%d", m.Wins, m.Losses),
			fmt.Sprintf("%.1f%%", m.WinRate),
			fmt.Sprintf("$%.2f", m.TotalPnL),
			fmt.Sprintf("%.2f%%", m.MaxDrawdown),
			fmt.Sprintf("%.2f", m.SharpeRatio),
			formatFactor(m.ProfitFactor),
		)
	}
	byStrategy.Render()
	fmt.Fprintln(c.out)
}

// num formatea precios y cantidades con los decimales justos: un precio
// de memecoin como 0.0000112 no puede salir redondeado a 0.00.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", pf)
}

func formatHold(d time.Duration) string {
	if d >= 24*time.Hour {
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

func joinStrategies(strategies []domain.PatternType) string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
