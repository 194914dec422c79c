// internal/services/payout_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/config"
	"github.com/closetloop/marketplace-backend/internal/models"
	"github.com/closetloop/marketplace-backend/internal/money"
)

func TestNewPayoutServiceParsesTerms(t *testing.T) {
	svc, err := NewPayoutService(nil, config.PayoutConfig{
		MinimumAmount:  "25.00",
		ProcessingDays: 7,
	}, nil)
	require.NoError(t, err)

	terms := svc.Terms()
	assert.True(t, terms.MinimumAmount.Equal(money.MustParse("25.00")))
	assert.Equal(t, 7, terms.ProcessingDays)
}

func TestNewPayoutServiceRejectsBadConfig(t *testing.T) {
	_, err := NewPayoutService(nil, config.PayoutConfig{
		MinimumAmount:  "not-a-number",
		ProcessingDays: 7,
	}, nil)
	assert.Error(t, err)

	_, err = NewPayoutService(nil, config.PayoutConfig{
		MinimumAmount:  "10.001",
		ProcessingDays: 7,
	}, nil)
	assert.Error(t, err, "minimum with sub-cent precision is rejected")

	_, err = NewPayoutService(nil, config.PayoutConfig{
		MinimumAmount:  "10.00",
		ProcessingDays: -1,
	}, nil)
	assert.Error(t, err)
}

func completedPayoutTransaction(t *testing.T) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		SalePrice: money.MustParse("10000.00"),
		Status:    models.TransactionStatusCompleted,
	}
	require.NoError(t, txn.SetSplit(money.MustParse("200.00"), money.MustParse("9800.00"), time.Now()))
	return txn
}

func TestValidatePayout(t *testing.T) {
	svc, err := NewPayoutService(nil, config.PayoutConfig{MinimumAmount: "10.00", ProcessingDays: 7}, nil)
	require.NoError(t, err)

	t.Run("exact amount passes", func(t *testing.T) {
		txn := completedPayoutTransaction(t)
		assert.NoError(t, svc.validatePayout(txn, money.MustParse("9800.00")))
	})

	t.Run("one cent off is rejected", func(t *testing.T) {
		txn := completedPayoutTransaction(t)
		err := svc.validatePayout(txn, money.MustParse("9800.01"))
		assert.Equal(t, apierror.ErrAmountMismatch, apierror.CodeOf(err))

		err = svc.validatePayout(txn, money.MustParse("9799.99"))
		assert.Equal(t, apierror.ErrAmountMismatch, apierror.CodeOf(err))
	})

	t.Run("already paid", func(t *testing.T) {
		txn := completedPayoutTransaction(t)
		txn.SellerPaid = true
		err := svc.validatePayout(txn, money.MustParse("9800.00"))
		assert.Equal(t, apierror.ErrAlreadyPaid, apierror.CodeOf(err))
	})

	t.Run("not completed", func(t *testing.T) {
		txn := completedPayoutTransaction(t)
		txn.Status = models.TransactionStatusDelivered
		err := svc.validatePayout(txn, money.MustParse("9800.00"))
		assert.Equal(t, apierror.ErrInvalidState, apierror.CodeOf(err))
	})

	t.Run("below minimum", func(t *testing.T) {
		txn := &models.Transaction{
			SalePrice: money.MustParse("5.00"),
			Status:    models.TransactionStatusCompleted,
		}
		require.NoError(t, txn.SetSplit(money.MustParse("0.10"), money.MustParse("4.90"), time.Now()))

		err := svc.validatePayout(txn, money.MustParse("4.90"))
		assert.Equal(t, apierror.ErrPayoutBelowMinimum, apierror.CodeOf(err))
	})

	t.Run("corrupted split halts", func(t *testing.T) {
		txn := completedPayoutTransaction(t)
		txn.SellerEarnings = money.MustParse("9700.00")
		err := svc.validatePayout(txn, money.MustParse("9700.00"))
		assert.Equal(t, apierror.ErrInvariantViolation, apierror.CodeOf(err))
	})
}

func TestNewProductServiceValidatesDefaultRate(t *testing.T) {
	_, err := NewProductService(nil, config.PaymentConfig{DefaultCommissionRate: "10"})
	assert.NoError(t, err)

	_, err = NewProductService(nil, config.PaymentConfig{DefaultCommissionRate: "101"})
	assert.Error(t, err)

	_, err = NewProductService(nil, config.PaymentConfig{DefaultCommissionRate: "ten"})
	assert.Error(t, err)
}
