package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.True(t, Parse("0.000123").Valid())
	assert.True(t, Parse("-5").Valid())
	assert.False(t, Parse("").Valid())
	assert.False(t, Parse("abc").Valid())
	assert.False(t, Parse("1.2.3").Valid())
}

func TestFromFloat_RejectsNonFinite(t *testing.T) {
	assert.False(t, FromFloat(math.NaN()).Valid())
	assert.False(t, FromFloat(math.Inf(1)).Valid())
	assert.False(t, FromFloat(math.Inf(-1)).Valid())
	assert.True(t, FromFloat(0.012).Valid())
}

func TestInvalidPropagation(t *testing.T) {
	bad := Parse("")
	good := FromFloat(10)

	assert.False(t, bad.Add(good).Valid())
	assert.False(t, good.Sub(bad).Valid())
	assert.False(t, bad.Mul(bad).Valid())
	assert.False(t, good.Div(bad).Valid())
}

func TestDivByZero(t *testing.T) {
	v := FromFloat(10).Div(Zero())
	assert.False(t, v.Valid())
	assert.Equal(t, 0.0, v.Float64())
}

func TestPositive(t *testing.T) {
	assert.True(t, FromFloat(0.012).Positive())
	assert.False(t, Zero().Positive())
	assert.False(t, FromFloat(-1).Positive())
	assert.False(t, Parse("").Positive())
}

func TestValuationExample(t *testing.T) {
	// posición: 1000 unidades compradas a 0.01, precio actual 0.012
	amount := FromInt(1000)
	avgBuy := Parse("0.01")
	price := Parse("0.012")

	currentValue := amount.Mul(price)
	costBasis := amount.Mul(avgBuy)
	pnl := currentValue.Sub(costBasis)

	assert.Equal(t, "12.00", currentValue.StringFixed(2))
	assert.Equal(t, "10.00", costBasis.StringFixed(2))
	assert.Equal(t, "2.00", pnl.StringFixed(2))
	assert.InDelta(t, 20.0, pnl.PctOf(costBasis), 1e-9)
}

func TestStringRoundTrip(t *testing.T) {
	v := Parse("0.00000123")
	back := Parse(v.String())
	assert.True(t, back.Valid())
	assert.True(t, v.Equal(back))

	invalid := Parse("")
	assert.Equal(t, "", invalid.String())
	assert.False(t, Parse(invalid.String()).Valid())
}

func TestPctOf_InvalidBase(t *testing.T) {
	assert.Equal(t, 0.0, FromFloat(5).PctOf(Zero()))
	assert.Equal(t, 0.0, FromFloat(5).PctOf(Parse("")))
	assert.Equal(t, 0.0, FromFloat(5).PctOf(FromFloat(-10)))
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Amount Value
	}

	raw, err := json.Marshal(wrapper{Amount: Parse("0.00000123")})
	assert.NoError(t, err)

	var back wrapper
	assert.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Amount.Valid())
	assert.True(t, Parse("0.00000123").Equal(back.Amount))

	// el valor inválido serializa como null y vuelve inválido
	raw, err = json.Marshal(wrapper{Amount: Parse("")})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"Amount":null}`, string(raw))

	var invalid wrapper
	assert.NoError(t, json.Unmarshal(raw, &invalid))
	assert.False(t, invalid.Amount.Valid())

	// entrada corrupta no revienta el decode del documento
	var garbage wrapper
	assert.NoError(t, json.Unmarshal([]byte(`{"Amount":"not-a-number"}`), &garbage))
	assert.False(t, garbage.Amount.Valid())
}
