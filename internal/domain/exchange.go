package domain

import "time"

// ExchangeTick es el snapshot 24h de un instrumento tal como llega del
// stream del exchange, sin parsear: los campos numéricos son strings y
// la validación ocurre en el gateway, no en el adapter.
type ExchangeTick struct {
	Symbol       string // símbolo nativo del exchange ("PEPEUSDT")
	LastPrice    string
	Open24h      string
	High24h      string
	Low24h       string
	Volume       string // volumen base acumulado 24h
	ChangePct24h string // variación % 24h
	EventTime    time.Time
}

// ExchangeSymbol describe un instrumento listado en el exchange,
// obtenido del directorio REST (exchange info).
type ExchangeSymbol struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	Trading    bool // el instrumento acepta trading ahora mismo
}
