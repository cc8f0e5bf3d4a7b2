package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

// SavePriceSample appends a point to the historical series. Used by the
// seeder and by replays; the live path goes through UpdateTokenPrice.
func (s *SQLiteStorage) SavePriceSample(ctx context.Context, sample domain.PriceSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_samples (token_id, price, volume, ts) VALUES (?, ?, ?, ?)`,
		sample.TokenID, sample.Price.String(), sample.Volume.String(),
		sample.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.SavePriceSample: %s: %w", sample.TokenID, err)
	}

	s.mu.Lock()
	s.cache[sample.TokenID] = lastSample{
		price:     sample.Price.Float64(),
		writtenAt: sample.Timestamp,
	}
	s.mu.Unlock()
	return nil
}

// GetSampleAt returns the most recent sample at or before ts.
// The as-of read the backtest prices entries and exits with.
func (s *SQLiteStorage) GetSampleAt(ctx context.Context, tokenID string, ts time.Time) (domain.PriceSample, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_id, price, volume, ts FROM price_samples
		WHERE token_id = ? AND ts <= ?
		ORDER BY ts DESC LIMIT 1`,
		tokenID, ts.UTC().Format(time.RFC3339))

	sample, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PriceSample{}, false, nil
	}
	if err != nil {
		return domain.PriceSample{}, false, fmt.Errorf("storage.GetSampleAt: %s: %w", tokenID, err)
	}
	return sample, true, nil
}

// GetSamplesAfter returns up to limit samples strictly after from and
// not after until, oldest first. The backtest walks these to find the
// first stop-loss or take-profit crossing.
func (s *SQLiteStorage) GetSamplesAfter(ctx context.Context, tokenID string, from, until time.Time, limit int) ([]domain.PriceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, price, volume, ts FROM price_samples
		WHERE token_id = ? AND ts > ? AND ts <= ?
		ORDER BY ts ASC LIMIT ?`,
		tokenID, from.UTC().Format(time.RFC3339), until.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetSamplesAfter: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceSample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetSamplesAfter: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

// SavePattern records a new detection.
func (s *SQLiteStorage) SavePattern(ctx context.Context, p domain.Pattern) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, token_id, pattern_type, confidence, price_at, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.TokenID, string(p.PatternType), p.Confidence,
		p.PriceAtDetection.String(), p.DetectedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.SavePattern: %s: %w", p.ID, err)
	}
	return nil
}

// GetPatternsByRange returns detections in [from, to] whose type is in
// types, oldest first. Empty types matches every type.
func (s *SQLiteStorage) GetPatternsByRange(ctx context.Context, from, to time.Time, types []domain.PatternType) ([]domain.Pattern, error) {
	query := `
		SELECT id, token_id, pattern_type, confidence, price_at, detected_at
		FROM patterns
		WHERE detected_at >= ? AND detected_at <= ?`
	args := []any{from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}

	if len(types) > 0 {
		query += ` AND pattern_type IN (?` + strings.Repeat(", ?", len(types)-1) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	query += ` ORDER BY detected_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.GetPatternsByRange: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		var ptype, price, detectedAt string

		if err := rows.Scan(&p.ID, &p.TokenID, &ptype, &p.Confidence,
			&price, &detectedAt); err != nil {
			return nil, fmt.Errorf("storage.GetPatternsByRange: scan: %w", err)
		}
		p.PatternType = domain.PatternType(ptype)
		p.PriceAtDetection = money.Parse(price)
		p.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanSample(sc scanner) (domain.PriceSample, error) {
	var sample domain.PriceSample
	var price, volume, ts string

	if err := sc.Scan(&sample.TokenID, &price, &volume, &ts); err != nil {
		return domain.PriceSample{}, err
	}
	sample.Price = money.Parse(price)
	sample.Volume = money.Parse(volume)
	sample.Timestamp, _ = time.Parse(time.RFC3339, ts)
	return sample, nil
}
