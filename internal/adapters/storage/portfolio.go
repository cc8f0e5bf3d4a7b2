package storage

// portfolio.go — persistencia de portfolios y posiciones.
//
// El recompute escribe valoraciones (UpdatePortfolioValuation /
// UpdatePositionValuation); los campos de entrada (cash, capital
// inicial, amount, avgBuyPrice) solo los tocan SavePortfolio y
// SavePosition. Así una valoración jamás corrompe el estado base.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

const portfolioColumns = `id, user_id, name, cash_balance, starting_capital,
       total_value, total_pnl, daily_pnl, updated_at`

const positionColumns = `id, portfolio_id, token_id, amount, avg_buy_price,
       current_value, unrealized_pnl, unrealized_pct, day_change_val, entry_at, updated_at`

// GetAllPortfolios devuelve todos los portfolios del sistema.
func (s *SQLiteStorage) GetAllPortfolios(ctx context.Context) ([]domain.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+portfolioColumns+` FROM portfolios ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetAllPortfolios: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetAllPortfolios: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPortfolio devuelve un portfolio por id.
// Devuelve domain.ErrPortfolioNotFound si no existe.
func (s *SQLiteStorage) GetPortfolio(ctx context.Context, id string) (domain.Portfolio, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+portfolioColumns+` FROM portfolios WHERE id = ?`, id)

	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Portfolio{}, fmt.Errorf("storage.GetPortfolio: %s: %w", id, domain.ErrPortfolioNotFound)
	}
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("storage.GetPortfolio: %w", err)
	}
	return p, nil
}

// UpdatePortfolioValuation persiste los agregados del recompute.
// No toca cash_balance ni starting_capital.
func (s *SQLiteStorage) UpdatePortfolioValuation(ctx context.Context, p domain.Portfolio) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE portfolios SET total_value = ?, total_pnl = ?, daily_pnl = ?, updated_at = ?
		WHERE id = ?`,
		p.TotalValue.String(), p.TotalPnL.String(), p.DailyPnL.String(),
		p.UpdatedAt.UTC().Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdatePortfolioValuation: %s: %w", p.ID, err)
	}
	return nil
}

// GetPositionsByPortfolio devuelve las posiciones del portfolio,
// las más antiguas primero.
func (s *SQLiteStorage) GetPositionsByPortfolio(ctx context.Context, portfolioID string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE portfolio_id = ? ORDER BY entry_at ASC`,
		portfolioID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetPositionsByPortfolio: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetPositionsByPortfolio: %w", err)
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

// UpdatePositionValuation persiste la valoración calculada de una posición.
// No toca amount ni avg_buy_price.
func (s *SQLiteStorage) UpdatePositionValuation(ctx context.Context, pos domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE positions SET current_value = ?, unrealized_pnl = ?, unrealized_pct = ?,
		       day_change_val = ?, updated_at = ?
		WHERE id = ?`,
		pos.CurrentValue.String(), pos.UnrealizedPnL.String(), pos.UnrealizedPnLPercent,
		pos.DayChangeValue.String(), pos.UpdatedAt.UTC().Format(time.RFC3339), pos.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdatePositionValuation: %s: %w", pos.ID, err)
	}
	return nil
}

// SavePortfolio hace upsert de un portfolio completo.
func (s *SQLiteStorage) SavePortfolio(ctx context.Context, p domain.Portfolio) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, user_id, name, cash_balance, starting_capital,
		                        total_value, total_pnl, daily_pnl, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id          = excluded.user_id,
			name             = excluded.name,
			cash_balance     = excluded.cash_balance,
			starting_capital = excluded.starting_capital,
			total_value      = excluded.total_value,
			total_pnl        = excluded.total_pnl,
			daily_pnl        = excluded.daily_pnl,
			updated_at       = excluded.updated_at`,
		p.ID, p.UserID, p.Name, p.CashBalance.String(), p.StartingCapital.String(),
		p.TotalValue.String(), p.TotalPnL.String(), p.DailyPnL.String(),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.SavePortfolio: %s: %w", p.ID, err)
	}
	return nil
}

// SavePosition hace upsert de una posición completa.
func (s *SQLiteStorage) SavePosition(ctx context.Context, pos domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, portfolio_id, token_id, amount, avg_buy_price,
		                       current_value, unrealized_pnl, unrealized_pct,
		                       day_change_val, entry_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount         = excluded.amount,
			avg_buy_price  = excluded.avg_buy_price,
			current_value  = excluded.current_value,
			unrealized_pnl = excluded.unrealized_pnl,
			unrealized_pct = excluded.unrealized_pct,
			day_change_val = excluded.day_change_val,
			updated_at     = excluded.updated_at`,
		pos.ID, pos.PortfolioID, pos.TokenID, pos.Amount.String(), pos.AvgBuyPrice.String(),
		pos.CurrentValue.String(), pos.UnrealizedPnL.String(), pos.UnrealizedPnLPercent,
		pos.DayChangeValue.String(), pos.EntryAt.UTC().Format(time.RFC3339),
		pos.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.SavePosition: %s: %w", pos.ID, err)
	}
	return nil
}

// scanner cubre *sql.Row y *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPortfolio(sc scanner) (domain.Portfolio, error) {
	var p domain.Portfolio
	var cash, capital, value, pnl, daily, updatedAt string

	if err := sc.Scan(&p.ID, &p.UserID, &p.Name, &cash, &capital,
		&value, &pnl, &daily, &updatedAt); err != nil {
		return domain.Portfolio{}, err
	}
	p.CashBalance = money.Parse(cash)
	p.StartingCapital = money.Parse(capital)
	p.TotalValue = money.Parse(value)
	p.TotalPnL = money.Parse(pnl)
	p.DailyPnL = money.Parse(daily)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return p, nil
}

func scanPosition(sc scanner) (domain.Position, error) {
	var pos domain.Position
	var amount, avgPrice, value, pnl, dayChange, entryAt, updatedAt string

	if err := sc.Scan(&pos.ID, &pos.PortfolioID, &pos.TokenID, &amount, &avgPrice,
		&value, &pnl, &pos.UnrealizedPnLPercent, &dayChange, &entryAt, &updatedAt); err != nil {
		return domain.Position{}, err
	}
	pos.Amount = money.Parse(amount)
	pos.AvgBuyPrice = money.Parse(avgPrice)
	pos.CurrentValue = money.Parse(value)
	pos.UnrealizedPnL = money.Parse(pnl)
	pos.DayChangeValue = money.Parse(dayChange)
	pos.EntryAt, _ = time.Parse(time.RFC3339, entryAt)
	pos.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return pos, nil
}
