// internal/commission/calculator.go
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/money"
)

var maxRate = decimal.NewFromInt(100)

// ValidateRate checks a commission percentage for the [0,100] bounds shared
// by listing validation and the calculator.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxRate) {
		return apierror.NewWithDetails(apierror.ErrInvalidRate,
			"commission rate must be between 0 and 100", rate.String())
	}
	return nil
}

// Compute splits a sale price into the platform commission and the seller
// earnings. Commission is round-half-up(salePrice × rate / 100) at scale 2;
// earnings are derived by subtraction so the two always sum back to salePrice
// exactly. Pure and deterministic: safe to re-run for audit verification.
func Compute(salePrice money.Money, rate decimal.Decimal) (commission money.Money, earnings money.Money, err error) {
	if err := ValidateRate(rate); err != nil {
		return money.Zero(), money.Zero(), err
	}
	if !salePrice.IsPositive() {
		return money.Zero(), money.Zero(), apierror.NewWithDetails(apierror.ErrInvalidPrice,
			"sale price must be greater than zero", salePrice.String())
	}

	commission = salePrice.ApplyRate(rate)
	earnings = salePrice.Sub(commission)
	return commission, earnings, nil
}
