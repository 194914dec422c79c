// internal/money/money_test.go
package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "whole amount", input: "100", want: "100.00"},
		{name: "two decimals", input: "999.99", want: "999.99"},
		{name: "one decimal", input: "10.5", want: "10.50"},
		{name: "trailing zeros", input: "10.500", want: "10.50"},
		{name: "three significant decimals", input: "10.505", wantErr: true},
		{name: "garbage", input: "ten dollars", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
		})
	}
}

func TestArithmeticIsExact(t *testing.T) {
	a := MustParse("0.10")
	b := MustParse("0.20")

	sum := a.Add(b)
	assert.Equal(t, "0.30", sum.String())
	assert.True(t, sum.Equal(MustParse("0.30")))

	diff := MustParse("100.00").Sub(MustParse("99.99"))
	assert.Equal(t, "0.01", diff.String())
}

func TestApplyRateRoundsHalfUp(t *testing.T) {
	tests := []struct {
		price string
		rate  string
		want  string
	}{
		{price: "10000.00", rate: "2", want: "200.00"},
		// 999.99 * 2% = 19.9998 -> 20.00
		{price: "999.99", rate: "2", want: "20.00"},
		// 0.25 * 10% = 0.025 -> 0.03 (half up)
		{price: "0.25", rate: "10", want: "0.03"},
		{price: "50.00", rate: "0", want: "0.00"},
		{price: "50.00", rate: "100", want: "50.00"},
		// 33.33 * 3% = 0.9999 -> 1.00
		{price: "33.33", rate: "3", want: "1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.price+"x"+tt.rate, func(t *testing.T) {
			price := MustParse(tt.price)
			rate, err := decimal.NewFromString(tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, price.ApplyRate(rate).String())
		})
	}
}

func TestValueAndScan(t *testing.T) {
	m := MustParse("1234.50")

	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "1234.50", v)

	var scanned Money
	require.NoError(t, scanned.Scan([]byte("1234.50")))
	assert.True(t, m.Equal(scanned))

	require.NoError(t, scanned.Scan("99.99"))
	assert.Equal(t, "99.99", scanned.String())

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	assert.Error(t, scanned.Scan(struct{}{}))
}

func TestJSONRoundTrip(t *testing.T) {
	payload := struct {
		Amount Money `json:"amount"`
	}{Amount: MustParse("9800.00")}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"9800.00"}`, string(data))

	var decoded struct {
		Amount Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, payload.Amount.Equal(decoded.Amount))
}

func TestComparisons(t *testing.T) {
	assert.Equal(t, 1, MustParse("10.01").Cmp(MustParse("10.00")))
	assert.Equal(t, -1, MustParse("9.99").Cmp(MustParse("10.00")))
	assert.Equal(t, 0, MustParse("10.00").Cmp(MustParse("10")))
	assert.True(t, MustParse("0.01").IsPositive())
	assert.True(t, Zero().Sub(MustParse("1.00")).IsNegative())
	assert.True(t, New(19, 99).Equal(MustParse("19.99")))
	assert.True(t, FromMinorUnits(1050).Equal(MustParse("10.50")))
}
