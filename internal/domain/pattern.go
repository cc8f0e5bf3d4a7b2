package domain

import (
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

// PatternType identifies the kind of trading signal a detector produced.
type PatternType string

const (
	PatternVolumeSpike PatternType = "volume_spike"
	PatternPriceSurge  PatternType = "price_surge"
	PatternBreakout    PatternType = "breakout"
)

// KnownPatternTypes lists every pattern type the detectors can emit,
// in the order the backtest UI presents them.
func KnownPatternTypes() []PatternType {
	return []PatternType{PatternVolumeSpike, PatternPriceSurge, PatternBreakout}
}

// Pattern is a historical detection record: the entry trigger the
// backtest simulator replays against price history.
type Pattern struct {
	ID               string
	TokenID          string
	PatternType      PatternType
	Confidence       float64 // 0..1, strength of the trigger
	PriceAtDetection money.Value
	DetectedAt       time.Time
}
