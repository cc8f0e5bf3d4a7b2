package storage

// sqlite.go — almacenamiento eficiente y sin ruido.
//
// Estrategia:
//   - `tokens`: UNA fila por token (UPSERT), siempre con el último precio.
//   - `price_samples`: histórico para el backtest. Se escribe con dedup:
//     si el precio cambió < 0.1% respecto a la última muestra escrita y
//     no pasaron 5 minutos, se salta la escritura. Con ticks cada pocos
//     segundos eso reduce ~90% de escrituras sin perder resolución útil
//     (las lecturas as-of usan "última muestra <= ts").
//   - Valores monetarios como TEXT decimal exacto. Una fila corrupta se
//     parsea como valor inválido y las capas de arriba la saltan.
//   - Prune automático al arrancar: samples y patterns más viejos que
//     la retención configurada (30 días por defecto).

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
	_ "modernc.org/sqlite"
)

const schema = `
-- Un token por fila, siempre con el último precio conocido
CREATE TABLE IF NOT EXISTS tokens (
    id               TEXT PRIMARY KEY,
    symbol           TEXT NOT NULL UNIQUE,
    name             TEXT NOT NULL DEFAULT '',
    current_price    TEXT NOT NULL DEFAULT '0',
    volume_24h       TEXT NOT NULL DEFAULT '0',
    price_change_24h REAL NOT NULL DEFAULT 0,
    updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolios (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    name             TEXT NOT NULL DEFAULT '',
    cash_balance     TEXT NOT NULL DEFAULT '0',
    starting_capital TEXT NOT NULL DEFAULT '0',
    total_value      TEXT NOT NULL DEFAULT '0',
    total_pnl        TEXT NOT NULL DEFAULT '0',
    daily_pnl        TEXT NOT NULL DEFAULT '0',
    updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    id             TEXT PRIMARY KEY,
    portfolio_id   TEXT NOT NULL,
    token_id       TEXT NOT NULL,
    amount         TEXT NOT NULL DEFAULT '0',
    avg_buy_price  TEXT NOT NULL DEFAULT '0',
    current_value  TEXT NOT NULL DEFAULT '0',
    unrealized_pnl TEXT NOT NULL DEFAULT '0',
    unrealized_pct REAL NOT NULL DEFAULT 0,
    day_change_val TEXT NOT NULL DEFAULT '0',
    entry_at       DATETIME NOT NULL,
    updated_at     DATETIME NOT NULL
);

-- Histórico de precios para el backtest
CREATE TABLE IF NOT EXISTS price_samples (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    token_id TEXT NOT NULL,
    price    TEXT NOT NULL,
    volume   TEXT NOT NULL DEFAULT '0',
    ts       DATETIME NOT NULL
);

-- Patrones detectados en vivo, materia prima del backtest
CREATE TABLE IF NOT EXISTS patterns (
    id           TEXT PRIMARY KEY,
    token_id     TEXT NOT NULL,
    pattern_type TEXT NOT NULL,
    confidence   REAL NOT NULL DEFAULT 0,
    price_at     TEXT NOT NULL DEFAULT '0',
    detected_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_pf   ON positions(portfolio_id);
CREATE INDEX IF NOT EXISTS idx_positions_tok  ON positions(token_id);
CREATE INDEX IF NOT EXISTS idx_samples_tok_ts ON price_samples(token_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_patterns_at    ON patterns(detected_at);
CREATE INDEX IF NOT EXISTS idx_patterns_type  ON patterns(pattern_type);
`

const (
	defaultRetention = 30 * 24 * time.Hour // histórico y patrones: 30 días
	priceDeltaPct    = 0.001               // 0.1% de cambio → escribir muestra nueva
	sampleMaxGap     = 5 * time.Minute     // heartbeat: escribir aunque no cambie
)

// lastSample es el snapshot de la última muestra escrita de un token.
type lastSample struct {
	price     float64
	writtenAt time.Time
}

// SQLiteStorage implementa los puertos de persistencia usando SQLite
// (pure Go, sin CGo). Una sola instancia compartida por todo el proceso.
type SQLiteStorage struct {
	db        *sql.DB
	retention time.Duration
	cache     map[string]lastSample // tokenID → última muestra escrita
	mu        sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia datos más viejos que retention (<= 0 usa el
// default de 30 días) y precarga la cache de dedup.
func NewSQLiteStorage(path string, retention time.Duration) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	if retention <= 0 {
		retention = defaultRetention
	}
	s := &SQLiteStorage{
		db:        db,
		retention: retention,
		cache:     make(map[string]lastSample),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// GetAllTokens devuelve todos los tokens conocidos, ordenados por símbolo.
func (s *SQLiteStorage) GetAllTokens(ctx context.Context) ([]domain.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, name, current_price, volume_24h, price_change_24h, updated_at
		FROM tokens ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetAllTokens: query: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		var price, volume, updatedAt string

		if err := rows.Scan(&t.ID, &t.Symbol, &t.Name, &price, &volume,
			&t.PriceChange24h, &updatedAt); err != nil {
			return nil, fmt.Errorf("storage.GetAllTokens: scan row: %w", err)
		}
		t.CurrentPrice = money.Parse(price)
		t.Volume24h = money.Parse(volume)
		t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// SaveToken hace upsert de un token por id.
func (s *SQLiteStorage) SaveToken(ctx context.Context, t domain.Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (id, symbol, name, current_price, volume_24h, price_change_24h, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			symbol           = excluded.symbol,
			name             = excluded.name,
			current_price    = excluded.current_price,
			volume_24h       = excluded.volume_24h,
			price_change_24h = excluded.price_change_24h,
			updated_at       = excluded.updated_at`,
		t.ID, t.Symbol, t.Name, t.CurrentPrice.String(), t.Volume24h.String(),
		t.PriceChange24h, t.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveToken: upsert %s: %w", t.Symbol, err)
	}
	return nil
}

// UpdateTokenPrice actualiza el último precio del token y, si el cambio
// supera el umbral de dedup (o pasó el heartbeat), añade una muestra al
// histórico. Es el camino caliente de la ingesta: una llamada por tick
// persistido.
func (s *SQLiteStorage) UpdateTokenPrice(ctx context.Context, u domain.PriceUpdate) error {
	if !u.Price.Positive() {
		return nil // precios no positivos nunca tocan disco
	}

	now := u.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE tokens SET current_price = ?, volume_24h = ?, price_change_24h = ?, updated_at = ?
		WHERE id = ?`,
		u.Price.String(), u.Volume.String(), u.Change24h,
		now.UTC().Format(time.RFC3339), u.TokenID,
	); err != nil {
		return fmt.Errorf("storage.UpdateTokenPrice: update %s: %w", u.TokenID, err)
	}

	if !s.shouldSample(u.TokenID, u.Price.Float64(), now) {
		return nil // sin cambio significativo — la gran mayoría de ticks terminan aquí
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO price_samples (token_id, price, volume, ts) VALUES (?, ?, ?, ?)`,
		u.TokenID, u.Price.String(), u.Volume.String(), now.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("storage.UpdateTokenPrice: insert sample %s: %w", u.TokenID, err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// shouldSample decide si el tick merece una fila nueva en el histórico,
// y actualiza la caché con el estado escrito.
func (s *SQLiteStorage) shouldSample(tokenID string, price float64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.cache[tokenID]
	if ok {
		unchanged := relChange(prev.price, price) < priceDeltaPct &&
			now.Sub(prev.writtenAt) < sampleMaxGap
		if unchanged {
			return false
		}
	}
	s.cache[tokenID] = lastSample{price: price, writtenAt: now}
	return true
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention).Format(time.RFC3339)
	s.db.ExecContext(ctx, `DELETE FROM price_samples WHERE ts < ?`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM patterns WHERE detected_at < ?`, cutoff)
}

// warmCache precarga la caché de dedup con la última muestra de cada
// token, evitando escrituras redundantes tras un reinicio.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, price, MAX(ts) FROM price_samples GROUP BY token_id`)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var tokenID, price string
		var ts sql.NullString
		if rows.Scan(&tokenID, &price, &ts) == nil && ts.Valid {
			writtenAt, _ := time.Parse(time.RFC3339, ts.String)
			s.cache[tokenID] = lastSample{
				price:     money.Parse(price).Float64(),
				writtenAt: writtenAt,
			}
		}
	}
}

// relChange devuelve el cambio relativo entre dos valores (0.0 – ∞).
func relChange(old, new float64) float64 {
	if old == 0 {
		return 1.0 // forzar escritura si antes era 0
	}
	return math.Abs(new-old) / math.Abs(old)
}
