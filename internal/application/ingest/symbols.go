package ingest

// symbols.go — cache del mapeo token ↔ símbolo del exchange.
//
// Resolución por token, en orden:
//   1. override explícito de config (la tabla manual manda siempre)
//   2. match exacto SYMBOL+quote (PEPE → PEPEUSDT)
//   3. prefijo sobre el listado del exchange (último recurso)
// Un token sin match se salta: sin símbolo no hay stream que escuchar.
//
// Rebuild reconstruye el mapa completo y lo intercambia de forma
// atómica. Si el catálogo o el directorio fallan, el mapa anterior se
// queda tal cual: datos viejos valen más que ninguno.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/ports"
)

// mapping es el destino de un símbolo del exchange.
type mapping struct {
	tokenID     string
	tokenSymbol string
}

// SymbolCache mantiene el mapeo bidireccional entre el catálogo de
// tokens y los instrumentos del exchange.
type SymbolCache struct {
	tokens    ports.TokenStore
	directory ports.SymbolDirectory
	quote     string            // asset de cotización, p.ej. USDT
	overrides map[string]string // tokenSymbol (upper) → exchangeSymbol

	mu         sync.RWMutex
	byExchange map[string]mapping
	subscribed []string // símbolos del exchange mapeados, ordenados
}

// NewSymbolCache crea la cache vacía. Rebuild la puebla.
func NewSymbolCache(tokens ports.TokenStore, directory ports.SymbolDirectory, quote string, overrides map[string]string) *SymbolCache {
	normalized := make(map[string]string, len(overrides))
	for token, exchange := range overrides {
		normalized[strings.ToUpper(token)] = strings.ToUpper(exchange)
	}
	if quote == "" {
		quote = "USDT"
	}
	return &SymbolCache{
		tokens:     tokens,
		directory:  directory,
		quote:      strings.ToUpper(quote),
		overrides:  normalized,
		byExchange: make(map[string]mapping),
	}
}

// Rebuild reconstruye el mapa desde el catálogo y el directorio.
// Devuelve cuántos tokens quedaron mapeados. En caso de error el mapa
// anterior no se toca.
func (c *SymbolCache) Rebuild(ctx context.Context) (int, error) {
	tokens, err := c.tokens.GetAllTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest.Rebuild: load tokens: %w", err)
	}
	listed, err := c.directory.ListSymbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest.Rebuild: list exchange symbols: %w", err)
	}

	trading := make(map[string]bool, len(listed))
	var tradingSorted []string
	for _, s := range listed {
		if !s.Trading {
			continue
		}
		sym := strings.ToUpper(s.Symbol)
		trading[sym] = true
		tradingSorted = append(tradingSorted, sym)
	}
	sort.Strings(tradingSorted) // el fallback por prefijo debe ser determinista

	next := make(map[string]mapping, len(tokens))
	for _, t := range tokens {
		tokenSym := strings.ToUpper(t.Symbol)

		exchangeSym, ok := c.resolve(tokenSym, trading, tradingSorted)
		if !ok {
			slog.Debug("ingest: token sin símbolo en el exchange", "token", t.Symbol)
			continue
		}
		if prev, dup := next[exchangeSym]; dup {
			slog.Warn("ingest: dos tokens mapean al mismo símbolo, gana el primero",
				"symbol", exchangeSym, "kept", prev.tokenSymbol, "dropped", t.Symbol)
			continue
		}
		next[exchangeSym] = mapping{tokenID: t.ID, tokenSymbol: t.Symbol}
	}

	subscribed := make([]string, 0, len(next))
	for sym := range next {
		subscribed = append(subscribed, sym)
	}
	sort.Strings(subscribed)

	c.mu.Lock()
	c.byExchange = next
	c.subscribed = subscribed
	c.mu.Unlock()

	return len(next), nil
}

// resolve aplica el orden de resolución para un token.
func (c *SymbolCache) resolve(tokenSym string, trading map[string]bool, tradingSorted []string) (string, bool) {
	// 1. Override manual: se respeta aunque el directorio no lo liste
	// (el operador sabe más que nosotros).
	if override, ok := c.overrides[tokenSym]; ok {
		if !trading[override] {
			slog.Debug("ingest: override apunta a símbolo no listado", "token", tokenSym, "override", override)
		}
		return override, true
	}

	// 2. Match exacto TOKEN+QUOTE
	if candidate := tokenSym + c.quote; trading[candidate] {
		return candidate, true
	}

	// 3. Prefijo: primer símbolo listado que empieza por el token y
	// termina en el quote (orden alfabético → determinista).
	for _, sym := range tradingSorted {
		if strings.HasPrefix(sym, tokenSym) && strings.HasSuffix(sym, c.quote) {
			return sym, true
		}
	}
	return "", false
}

// Lookup traduce un símbolo del exchange al token que lo originó.
func (c *SymbolCache) Lookup(exchangeSymbol string) (tokenID, tokenSymbol string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byExchange[strings.ToUpper(exchangeSymbol)]
	return m.tokenID, m.tokenSymbol, ok
}

// MappedSymbols devuelve los símbolos del exchange mapeados, ordenados.
func (c *SymbolCache) MappedSymbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.subscribed))
	copy(out, c.subscribed)
	return out
}

// Size devuelve cuántos tokens están mapeados ahora mismo.
func (c *SymbolCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byExchange)
}
