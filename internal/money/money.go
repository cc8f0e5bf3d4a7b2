package money

// money.go — tipo monetario único para todo el pipeline de valoración.
//
// Reemplaza los guards numéricos ad-hoc (parseFloat + isNaN + toFixed) que
// estarían dispersos por el código de valoración: un Value inválido se propaga
// por las operaciones aritméticas y se detecta una sola vez en el punto de
// decisión (¿persistir o saltar?). Nunca produce NaN ni Inf.

import (
	"math"

	"github.com/shopspring/decimal"
)

// Value es una cantidad monetaria (o de unidades) con estado de validez.
// El zero value es inválido — usar Zero() para un cero válido.
type Value struct {
	dec   decimal.Decimal
	valid bool
}

// Zero devuelve un Value válido con valor 0.
func Zero() Value {
	return Value{valid: true}
}

// FromDecimal envuelve un decimal ya validado.
func FromDecimal(d decimal.Decimal) Value {
	return Value{dec: d, valid: true}
}

// FromFloat convierte un float64. NaN e Inf producen un Value inválido
// (decimal.NewFromFloat entraría en pánico con ellos).
func FromFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{dec: decimal.NewFromFloat(f), valid: true}
}

// FromInt convierte un entero.
func FromInt(n int64) Value {
	return Value{dec: decimal.NewFromInt(n), valid: true}
}

// Parse convierte un string decimal ("0.000123"). Strings vacíos o malformados
// producen un Value inválido — es el camino por el que un tick corrupto o una
// fila dañada en storage se descartan sin escribir basura.
func Parse(s string) Value {
	if s == "" {
		return Value{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}
	}
	return Value{dec: d, valid: true}
}

// Valid indica si el valor es utilizable.
func (v Value) Valid() bool { return v.valid }

// Positive indica válido y estrictamente > 0. Es el guard estándar para
// precios y cantidades: un precio 0 o negativo nunca entra en una valoración.
func (v Value) Positive() bool { return v.valid && v.dec.IsPositive() }

// Negative indica válido y estrictamente < 0.
func (v Value) Negative() bool { return v.valid && v.dec.IsNegative() }

// IsZero indica válido y exactamente 0.
func (v Value) IsZero() bool { return v.valid && v.dec.IsZero() }

// Add suma. Si cualquier operando es inválido, el resultado es inválido.
func (v Value) Add(o Value) Value {
	if !v.valid || !o.valid {
		return Value{}
	}
	return Value{dec: v.dec.Add(o.dec), valid: true}
}

// Sub resta con la misma propagación de invalidez que Add.
func (v Value) Sub(o Value) Value {
	if !v.valid || !o.valid {
		return Value{}
	}
	return Value{dec: v.dec.Sub(o.dec), valid: true}
}

// Mul multiplica con la misma propagación de invalidez que Add.
func (v Value) Mul(o Value) Value {
	if !v.valid || !o.valid {
		return Value{}
	}
	return Value{dec: v.dec.Mul(o.dec), valid: true}
}

// Div divide. División por cero o por inválido → inválido, nunca pánico.
func (v Value) Div(o Value) Value {
	if !v.valid || !o.valid || o.dec.IsZero() {
		return Value{}
	}
	return Value{dec: v.dec.Div(o.dec), valid: true}
}

// Neg devuelve el valor negado.
func (v Value) Neg() Value {
	if !v.valid {
		return Value{}
	}
	return Value{dec: v.dec.Neg(), valid: true}
}

// GreaterThan compara; false si cualquiera es inválido.
func (v Value) GreaterThan(o Value) bool {
	return v.valid && o.valid && v.dec.GreaterThan(o.dec)
}

// LessThan compara; false si cualquiera es inválido.
func (v Value) LessThan(o Value) bool {
	return v.valid && o.valid && v.dec.LessThan(o.dec)
}

// Equal compara igualdad numérica; false si cualquiera es inválido.
func (v Value) Equal(o Value) bool {
	return v.valid && o.valid && v.dec.Equal(o.dec)
}

// Float64 devuelve la aproximación float64, o 0 si es inválido.
// Para métricas de ratio (PnL%, Sharpe) donde float64 es suficiente.
func (v Value) Float64() float64 {
	if !v.valid {
		return 0
	}
	return v.dec.InexactFloat64()
}

// Decimal expone el decimal subyacente (cero si inválido).
func (v Value) Decimal() decimal.Decimal { return v.dec }

// String serializa para storage: decimal exacto, o "" si es inválido.
// Parse(v.String()) recupera el mismo estado.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	return v.dec.String()
}

// StringFixed formatea con n decimales para display ("12.00").
func (v Value) StringFixed(n int32) string {
	if !v.valid {
		return "-"
	}
	return v.dec.StringFixed(n)
}

// PctOf devuelve v como porcentaje de base en float64: (v/base)×100.
// Devuelve 0 si base no es positiva o algún operando es inválido —
// el caller decide con Positive() si el porcentaje tiene sentido.
func (v Value) PctOf(base Value) float64 {
	if !v.valid || !base.Positive() {
		return 0
	}
	return v.dec.Div(base.dec).InexactFloat64() * 100
}

// MarshalJSON serializa como número JSON (string decimal citado, igual
// que decimal.Decimal); un valor inválido serializa como null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}
	return v.dec.MarshalJSON()
}

// UnmarshalJSON nunca falla: null o JSON malformado producen un Value
// inválido, con la misma tolerancia que Parse.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		*v = Value{}
		return nil
	}
	*v = Value{dec: d, valid: true}
	return nil
}
