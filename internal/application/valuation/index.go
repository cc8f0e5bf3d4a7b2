package valuation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/ports"
)

// Index is the reverse lookup from token to the portfolios holding it.
// Rebuilt by full scan on startup and on every backup cycle; between
// rebuilds it may be stale by at most one sweep interval, which the
// full sweep compensates for.
type Index struct {
	store ports.PortfolioStore

	mu           sync.RWMutex
	byToken      map[string][]string
	portfolioIDs []string
}

// NewIndex creates an empty index. Rebuild populates it.
func NewIndex(store ports.PortfolioStore) *Index {
	return &Index{
		store:   store,
		byToken: make(map[string][]string),
	}
}

// Rebuild scans every portfolio's positions and swaps the lookup map
// atomically. On error the previous map is left untouched.
func (ix *Index) Rebuild(ctx context.Context) error {
	portfolios, err := ix.store.GetAllPortfolios(ctx)
	if err != nil {
		return fmt.Errorf("valuation.Rebuild: load portfolios: %w", err)
	}

	tokenSet := make(map[string]map[string]struct{})
	ids := make([]string, 0, len(portfolios))
	for _, pf := range portfolios {
		ids = append(ids, pf.ID)

		positions, err := ix.store.GetPositionsByPortfolio(ctx, pf.ID)
		if err != nil {
			return fmt.Errorf("valuation.Rebuild: load positions %s: %w", pf.ID, err)
		}
		for _, pos := range positions {
			if !pos.Open() {
				continue
			}
			set, ok := tokenSet[pos.TokenID]
			if !ok {
				set = make(map[string]struct{})
				tokenSet[pos.TokenID] = set
			}
			set[pf.ID] = struct{}{}
		}
	}

	next := make(map[string][]string, len(tokenSet))
	for tokenID, set := range tokenSet {
		list := make([]string, 0, len(set))
		for id := range set {
			list = append(list, id)
		}
		sort.Strings(list)
		next[tokenID] = list
	}
	sort.Strings(ids)

	ix.mu.Lock()
	ix.byToken = next
	ix.portfolioIDs = ids
	ix.mu.Unlock()
	return nil
}

// PortfoliosFor returns the ids of portfolios holding the token.
func (ix *Index) PortfoliosFor(tokenID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.byToken[tokenID]...)
}

// PortfolioIDs returns every portfolio id seen in the last rebuild.
func (ix *Index) PortfolioIDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.portfolioIDs...)
}
