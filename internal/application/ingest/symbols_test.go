package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
)

type mockTokenStore struct {
	mu      sync.Mutex
	tokens  []domain.Token
	listErr error
	updates []domain.PriceUpdate
}

func (m *mockTokenStore) GetAllTokens(context.Context) ([]domain.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.tokens, nil
}

func (m *mockTokenStore) UpdateTokenPrice(_ context.Context, u domain.PriceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	return nil
}

func (m *mockTokenStore) SaveToken(_ context.Context, t domain.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, t)
	return nil
}

func (m *mockTokenStore) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

func (m *mockTokenStore) setListErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

type mockDirectory struct {
	symbols []domain.ExchangeSymbol
	err     error
}

func (m *mockDirectory) ListSymbols(context.Context) ([]domain.ExchangeSymbol, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.symbols, nil
}

func listedUSDT(bases ...string) []domain.ExchangeSymbol {
	out := make([]domain.ExchangeSymbol, 0, len(bases))
	for _, b := range bases {
		out = append(out, domain.ExchangeSymbol{
			Symbol: b + "USDT", BaseAsset: b, QuoteAsset: "USDT", Trading: true,
		})
	}
	return out
}

func TestSymbolCache_ExactMatch(t *testing.T) {
	store := &mockTokenStore{tokens: []domain.Token{
		{ID: "tok-pepe", Symbol: "PEPE"},
		{ID: "tok-doge", Symbol: "doge"}, // minúsculas en el catálogo
	}}
	dir := &mockDirectory{symbols: listedUSDT("PEPE", "DOGE", "BTC")}

	cache := NewSymbolCache(store, dir, "USDT", nil)
	mapped, err := cache.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, mapped)

	tokenID, tokenSym, ok := cache.Lookup("PEPEUSDT")
	require.True(t, ok)
	assert.Equal(t, "tok-pepe", tokenID)
	assert.Equal(t, "PEPE", tokenSym)

	tokenID, _, ok = cache.Lookup("DOGEUSDT")
	require.True(t, ok)
	assert.Equal(t, "tok-doge", tokenID)

	assert.Equal(t, []string{"DOGEUSDT", "PEPEUSDT"}, cache.MappedSymbols())
}

func TestSymbolCache_OverridePrecedence(t *testing.T) {
	store := &mockTokenStore{tokens: []domain.Token{{ID: "tok-wif", Symbol: "WIF"}}}
	dir := &mockDirectory{symbols: listedUSDT("WIF", "1000WIF")}

	cache := NewSymbolCache(store, dir, "USDT", map[string]string{"wif": "1000wifusdt"})
	_, err := cache.Rebuild(context.Background())
	require.NoError(t, err)

	// El override gana al match exacto WIFUSDT
	tokenID, _, ok := cache.Lookup("1000WIFUSDT")
	require.True(t, ok)
	assert.Equal(t, "tok-wif", tokenID)

	_, _, ok = cache.Lookup("WIFUSDT")
	assert.False(t, ok)
}

func TestSymbolCache_PrefixFallback(t *testing.T) {
	store := &mockTokenStore{tokens: []domain.Token{{ID: "tok-bonk", Symbol: "BONK"}}}
	// Sin BONKUSDT exacto; solo la variante con multiplicador
	dir := &mockDirectory{symbols: listedUSDT("BONK2", "BTC")}

	cache := NewSymbolCache(store, dir, "USDT", nil)
	mapped, err := cache.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, mapped)

	tokenID, _, ok := cache.Lookup("BONK2USDT")
	require.True(t, ok)
	assert.Equal(t, "tok-bonk", tokenID)
}

func TestSymbolCache_SkipsUnmatchedAndHalted(t *testing.T) {
	store := &mockTokenStore{tokens: []domain.Token{
		{ID: "tok-pepe", Symbol: "PEPE"},
		{ID: "tok-rug", Symbol: "RUGME"}, // no listado
		{ID: "tok-halt", Symbol: "HALT"}, // listado pero suspendido
	}}
	dir := &mockDirectory{symbols: append(listedUSDT("PEPE"),
		domain.ExchangeSymbol{Symbol: "HALTUSDT", BaseAsset: "HALT", QuoteAsset: "USDT", Trading: false})}

	cache := NewSymbolCache(store, dir, "USDT", nil)
	mapped, err := cache.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mapped)
	assert.Equal(t, []string{"PEPEUSDT"}, cache.MappedSymbols())
}

func TestSymbolCache_KeepsOldMapOnFailure(t *testing.T) {
	store := &mockTokenStore{tokens: []domain.Token{{ID: "tok-pepe", Symbol: "PEPE"}}}
	dir := &mockDirectory{symbols: listedUSDT("PEPE")}

	cache := NewSymbolCache(store, dir, "USDT", nil)
	_, err := cache.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, cache.Size())

	// El siguiente rebuild falla: el mapa anterior sobrevive intacto
	store.setListErr(errors.New("db locked"))
	_, err = cache.Rebuild(context.Background())
	require.Error(t, err)

	tokenID, _, ok := cache.Lookup("PEPEUSDT")
	assert.True(t, ok)
	assert.Equal(t, "tok-pepe", tokenID)
	assert.Equal(t, 1, cache.Size())
}

func TestSymbolCache_DuplicateTargetFirstWins(t *testing.T) {
	store := &mockTokenStore{tokens: []domain.Token{
		{ID: "tok-a", Symbol: "PEPE"},
		{ID: "tok-b", Symbol: "pepe"}, // duplicado del catálogo
	}}
	dir := &mockDirectory{symbols: listedUSDT("PEPE")}

	cache := NewSymbolCache(store, dir, "USDT", nil)
	mapped, err := cache.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mapped)

	tokenID, _, ok := cache.Lookup("PEPEUSDT")
	require.True(t, ok)
	assert.Equal(t, "tok-a", tokenID)
}
