package patterns

// Live pattern detection over the normalized price stream. Each
// trigger persists a Pattern record through the store port; the
// backtest simulator replays those records against the price history
// later. Detection is a cheap streaming heuristic over a short
// per-token window, not a full indicator engine.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/domain"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/events"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/ports"
)

// minWindowFill is how many updates a token needs before any trigger
// can fire; a half-empty window produces junk averages.
const minWindowFill = 10

// Settings are the detection thresholds. Zero values fall back to the
// defaults below.
type Settings struct {
	VolumeSpikeMult float64       // volume24h ≥ mult × trailing average
	PriceSurgePct   float64       // change24h ≥ this percentage
	BreakoutWindow  int           // samples kept per token
	Cooldown        time.Duration // per token and pattern type
}

func (s Settings) withDefaults() Settings {
	if s.VolumeSpikeMult <= 0 {
		s.VolumeSpikeMult = 3
	}
	if s.PriceSurgePct <= 0 {
		s.PriceSurgePct = 15
	}
	if s.BreakoutWindow <= 0 {
		s.BreakoutWindow = 60
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Minute
	}
	return s
}

type hitKey struct {
	tokenID string
	ptype   domain.PatternType
}

type tokenWindow struct {
	prices  []float64
	volumes []float64
}

func (w *tokenWindow) high() float64 {
	var h float64
	for _, p := range w.prices {
		if p > h {
			h = p
		}
	}
	return h
}

func (w *tokenWindow) avgVolume() float64 {
	if len(w.volumes) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.volumes {
		sum += v
	}
	return sum / float64(len(w.volumes))
}

// Detector watches the price stream and records trading signals.
type Detector struct {
	store ports.PatternStore
	bus   *events.Bus
	cfg   Settings

	mu      sync.Mutex
	running bool
	windows map[string]*tokenWindow
	lastHit map[hitKey]time.Time

	unsub func()
	wg    sync.WaitGroup
}

func NewDetector(store ports.PatternStore, bus *events.Bus, cfg Settings) *Detector {
	return &Detector{
		store:   store,
		bus:     bus,
		cfg:     cfg.withDefaults(),
		windows: make(map[string]*tokenWindow),
		lastHit: make(map[hitKey]time.Time),
	}
}

// Start subscribes to the price stream. Idempotent.
func (d *Detector) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	ch, unsub := d.bus.SubscribePrices(256)
	d.unsub = unsub

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for u := range ch {
			d.observe(ctx, u)
		}
	}()

	slog.Info("patterns: detector started",
		"volumeMult", d.cfg.VolumeSpikeMult, "surgePct", d.cfg.PriceSurgePct,
		"window", d.cfg.BreakoutWindow, "cooldown", d.cfg.Cooldown.String())
}

// Stop unsubscribes and waits for the in-flight update. Idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	if d.unsub != nil {
		d.unsub()
	}
	d.wg.Wait()
}

// observe checks one update against the token's window, then folds the
// update into it. Triggers are evaluated against the window state
// prior to this update so the update never confirms itself.
func (d *Detector) observe(ctx context.Context, u domain.PriceUpdate) {
	if !u.Price.Positive() {
		return
	}
	price := u.Price.Float64()
	volume := 0.0
	if u.Volume.Valid() {
		volume = u.Volume.Float64()
	}

	d.mu.Lock()
	w, ok := d.windows[u.TokenID]
	if !ok {
		w = &tokenWindow{}
		d.windows[u.TokenID] = w
	}

	var hits []domain.Pattern
	if len(w.prices) >= minWindowFill {
		if avg := w.avgVolume(); avg > 0 && volume >= d.cfg.VolumeSpikeMult*avg {
			hits = d.appendHit(hits, u, domain.PatternVolumeSpike, volume/(d.cfg.VolumeSpikeMult*avg))
		}
		if u.Change24h >= d.cfg.PriceSurgePct {
			hits = d.appendHit(hits, u, domain.PatternPriceSurge, u.Change24h/d.cfg.PriceSurgePct)
		}
		if high := w.high(); high > 0 && price > high {
			hits = d.appendHit(hits, u, domain.PatternBreakout, price/high)
		}
	}

	w.prices = append(w.prices, price)
	w.volumes = append(w.volumes, volume)
	if len(w.prices) > d.cfg.BreakoutWindow {
		w.prices = w.prices[1:]
		w.volumes = w.volumes[1:]
	}
	d.mu.Unlock()

	for _, p := range hits {
		if err := d.store.SavePattern(ctx, p); err != nil {
			slog.Warn("patterns: save failed", "token", p.TokenID, "type", p.PatternType, "error", err)
			continue
		}
		slog.Info("patterns: detected", "token", p.TokenID, "type", p.PatternType,
			"confidence", p.Confidence, "price", p.PriceAtDetection.String())
	}
}

// appendHit applies the per-token/type cooldown and builds the record.
// Caller holds d.mu. The cooldown slot is claimed even if the save
// later fails, so a broken store is not hammered.
func (d *Detector) appendHit(hits []domain.Pattern, u domain.PriceUpdate, ptype domain.PatternType, ratio float64) []domain.Pattern {
	key := hitKey{tokenID: u.TokenID, ptype: ptype}
	if last, ok := d.lastHit[key]; ok && u.Timestamp.Sub(last) < d.cfg.Cooldown {
		return hits
	}
	d.lastHit[key] = u.Timestamp

	return append(hits, domain.Pattern{
		ID:               uuid.NewString(),
		TokenID:          u.TokenID,
		PatternType:      ptype,
		Confidence:       confidence(ratio),
		PriceAtDetection: u.Price,
		DetectedAt:       u.Timestamp,
	})
}

// confidence maps a trigger ratio (≥ 1 when fired) into [0, 1]:
// exactly at the threshold ⇒ 0.5, twice the threshold ⇒ 1.
func confidence(ratio float64) float64 {
	return min(1, ratio/2)
}
