package domain

import (
	"time"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/money"
)

// Token representa un memecoin trackeado por el sistema.
// Sus campos de precio los muta únicamente el gateway de ingestión.
type Token struct {
	ID             string
	Symbol         string      // símbolo interno ("PEPE", "WOJAK")
	Name           string
	CurrentPrice   money.Value // último precio visto en el feed
	Volume24h      money.Value // volumen acumulado 24h del exchange
	PriceChange24h float64     // variación % en 24h
	UpdatedAt      time.Time   // último tick persistido
}

// PriceSample es un punto de la serie histórica de precios.
// Append-only: lo escribe el gateway, lo lee el simulador de backtest.
type PriceSample struct {
	TokenID   string
	Price     money.Value
	Volume    money.Value
	Timestamp time.Time
}

// PriceUpdate es el tick normalizado que emite el gateway tras mapear
// el símbolo del exchange a un token interno. Es la fuente autoritativa
// de "precio actual" para el engine de valoración.
type PriceUpdate struct {
	TokenID   string
	Symbol    string // símbolo interno del token ("PEPE")
	Price     money.Value
	Volume    money.Value
	Change24h float64 // variación % 24h
	High24h   money.Value
	Low24h    money.Value
	Timestamp time.Time
}
