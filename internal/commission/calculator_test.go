// internal/commission/calculator_test.go
package commission_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/commission"
	"github.com/closetloop/marketplace-backend/internal/money"
)

func rate(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestComputeScenarios(t *testing.T) {
	tests := []struct {
		name           string
		price          string
		rate           string
		wantCommission string
		wantEarnings   string
	}{
		{
			name:           "round sale",
			price:          "10000.00",
			rate:           "2.00",
			wantCommission: "200.00",
			wantEarnings:   "9800.00",
		},
		{
			// 999.99 * 2% = 19.9998, rounds half-up to 20.00
			name:           "fractional commission rounds half up",
			price:          "999.99",
			rate:           "2.00",
			wantCommission: "20.00",
			wantEarnings:   "979.99",
		},
		{
			name:           "zero rate",
			price:          "55.40",
			rate:           "0",
			wantCommission: "0.00",
			wantEarnings:   "55.40",
		},
		{
			name:           "full rate",
			price:          "55.40",
			rate:           "100",
			wantCommission: "55.40",
			wantEarnings:   "0.00",
		},
		{
			name:           "smallest unit",
			price:          "0.01",
			rate:           "50",
			wantCommission: "0.01",
			wantEarnings:   "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price := money.MustParse(tt.price)
			c, e, err := commission.Compute(price, rate(t, tt.rate))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCommission, c.String())
			assert.Equal(t, tt.wantEarnings, e.String())
			assert.True(t, c.Add(e).Equal(price), "commission + earnings must equal sale price")
		})
	}
}

func TestComputeSumInvariantAcrossGrid(t *testing.T) {
	prices := []string{"0.01", "0.99", "1.00", "33.33", "999.99", "10000.00", "123456.78"}
	rates := []string{"0", "0.5", "1", "2.5", "7.77", "10", "33.33", "50", "99.99", "100"}

	for _, p := range prices {
		for _, r := range rates {
			price := money.MustParse(p)
			c, e, err := commission.Compute(price, rate(t, r))
			require.NoError(t, err, "price=%s rate=%s", p, r)
			assert.True(t, c.Add(e).Equal(price), "split must be exact for price=%s rate=%s", p, r)
			assert.False(t, c.IsNegative())
			assert.False(t, e.IsNegative())
		}
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	price := money.MustParse("742.19")
	r := rate(t, "8.25")

	c1, e1, err := commission.Compute(price, r)
	require.NoError(t, err)
	c2, e2, err := commission.Compute(price, r)
	require.NoError(t, err)

	assert.True(t, c1.Equal(c2))
	assert.True(t, e1.Equal(e2))
}

func TestComputeRejectsBadInputs(t *testing.T) {
	_, _, err := commission.Compute(money.MustParse("100.00"), rate(t, "-0.01"))
	assert.Equal(t, apierror.ErrInvalidRate, apierror.CodeOf(err))

	_, _, err = commission.Compute(money.MustParse("100.00"), rate(t, "100.01"))
	assert.Equal(t, apierror.ErrInvalidRate, apierror.CodeOf(err))

	_, _, err = commission.Compute(money.Zero(), rate(t, "5"))
	assert.Equal(t, apierror.ErrInvalidPrice, apierror.CodeOf(err))

	_, _, err = commission.Compute(money.Zero().Sub(money.MustParse("1.00")), rate(t, "5"))
	assert.Equal(t, apierror.ErrInvalidPrice, apierror.CodeOf(err))
}

func TestValidateRateBounds(t *testing.T) {
	assert.NoError(t, commission.ValidateRate(rate(t, "0")))
	assert.NoError(t, commission.ValidateRate(rate(t, "100")))
	assert.Error(t, commission.ValidateRate(rate(t, "-1")))
	assert.Error(t, commission.ValidateRate(rate(t, "101")))
}
