package domain

import "time"

// events.go — payloads de los eventos del pipeline en vivo.
// Los consume la capa de push/notificaciones (fuera de este core).

// TopPerformer es una posición destacada dentro del snapshot de portfolio.
type TopPerformer struct {
	TokenID       string
	Symbol        string
	PnLPercent    float64
	CurrentValue  float64
	UnrealizedPnL float64
}

// RiskMetrics resume el riesgo del portfolio en el momento del recompute.
type RiskMetrics struct {
	// Concentration es el % del valor total en la posición más grande.
	Concentration float64
	// Diversification es el número de posiciones válidas abiertas.
	Diversification int
	// Volatility es la desviación estándar del PnL% por posición.
	Volatility float64
}

// PortfolioSnapshot es el evento portfolioUpdated: el estado agregado
// del portfolio tras un recompute.
type PortfolioSnapshot struct {
	PortfolioID     string
	UserID          string
	TotalValue      float64
	TotalPnL        float64
	TotalPnLPercent float64
	DayChange       float64 // % diario sobre el valor de posiciones
	DayChangeValue  float64
	PositionsCount  int
	TopPerformers   []TopPerformer
	Risk            RiskMetrics
	ComputedAt      time.Time
}

// PositionDetail es el detalle por posición del evento positionsUpdated.
type PositionDetail struct {
	PositionID           string
	TokenID              string
	Symbol               string
	Amount               float64
	AvgBuyPrice          float64
	CurrentPrice         float64
	CurrentValue         float64
	UnrealizedPnL        float64
	UnrealizedPnLPercent float64
	DayChangeValue       float64
	HoldingDays          float64
}

// PositionsUpdate es el evento positionsUpdated.
type PositionsUpdate struct {
	PortfolioID string
	Positions   []PositionDetail
	ComputedAt  time.Time
}
