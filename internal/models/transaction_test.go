// internal/models/transaction_test.go
package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/money"
)

func txnIn(status TransactionStatus) *Transaction {
	return &Transaction{
		SalePrice:      money.MustParse("100.00"),
		CommissionRate: decimal.NewFromInt(2),
		Status:         status,
	}
}

var allStatuses = []TransactionStatus{
	TransactionStatusPendingPayment,
	TransactionStatusPaymentSubmitted,
	TransactionStatusPaymentVerified,
	TransactionStatusShipped,
	TransactionStatusDelivered,
	TransactionStatusCompleted,
	TransactionStatusCancelled,
	TransactionStatusRefunded,
}

func TestGuardMatrix(t *testing.T) {
	type row struct {
		name    string
		guard   func(*Transaction) bool
		allowed map[TransactionStatus]bool
	}

	rows := []row{
		{
			name:    "submit payment",
			guard:   (*Transaction).CanSubmitPayment,
			allowed: map[TransactionStatus]bool{TransactionStatusPendingPayment: true},
		},
		{
			name:    "verify payment",
			guard:   (*Transaction).CanVerifyPayment,
			allowed: map[TransactionStatus]bool{TransactionStatusPaymentSubmitted: true},
		},
		{
			name:  "cancel",
			guard: (*Transaction).CanCancel,
			allowed: map[TransactionStatus]bool{
				TransactionStatusPendingPayment:   true,
				TransactionStatusPaymentSubmitted: true,
			},
		},
		{
			name:    "confirm delivery",
			guard:   (*Transaction).CanConfirmDelivery,
			allowed: map[TransactionStatus]bool{TransactionStatusShipped: true},
		},
		{
			name:    "complete",
			guard:   (*Transaction).CanComplete,
			allowed: map[TransactionStatus]bool{TransactionStatusDelivered: true},
		},
		{
			name:  "refund",
			guard: (*Transaction).CanRefund,
			allowed: map[TransactionStatus]bool{
				TransactionStatusPaymentVerified: true,
				TransactionStatusShipped:         true,
				TransactionStatusDelivered:       true,
			},
		},
	}

	for _, r := range rows {
		t.Run(r.name, func(t *testing.T) {
			for _, status := range allStatuses {
				got := r.guard(txnIn(status))
				assert.Equal(t, r.allowed[status], got, "guard %q in status %q", r.name, status)
			}
		})
	}
}

func TestCanShipRequiresPlatformCollection(t *testing.T) {
	// Regardless of status, shipment is blocked until the platform confirms
	// it holds the buyer's funds.
	for _, status := range allStatuses {
		txn := txnIn(status)
		txn.PaymentCollectedByPlatform = false
		assert.False(t, txn.CanShip(), "uncollected funds must block shipping in status %q", status)
	}

	collected := txnIn(TransactionStatusPaymentVerified)
	collected.PaymentCollectedByPlatform = true
	assert.True(t, collected.CanShip())

	// Collection alone is not enough either; the status must be payment_verified.
	shipped := txnIn(TransactionStatusShipped)
	shipped.PaymentCollectedByPlatform = true
	assert.False(t, shipped.CanShip())
}

func TestCanCollectPlatformPayment(t *testing.T) {
	txn := txnIn(TransactionStatusPaymentVerified)
	assert.True(t, txn.CanCollectPlatformPayment())

	txn.PaymentCollectedByPlatform = true
	assert.False(t, txn.CanCollectPlatformPayment(), "collecting twice must be rejected")

	assert.False(t, txnIn(TransactionStatusPaymentSubmitted).CanCollectPlatformPayment())
}

func TestCanRecordPayout(t *testing.T) {
	txn := txnIn(TransactionStatusCompleted)
	assert.True(t, txn.CanRecordPayout())

	txn.SellerPaid = true
	assert.False(t, txn.CanRecordPayout(), "paying the seller twice must be rejected")

	assert.False(t, txnIn(TransactionStatusDelivered).CanRecordPayout())
}

func TestSetSplitComputesOnce(t *testing.T) {
	txn := txnIn(TransactionStatusPaymentVerified)
	now := time.Now()

	require.NoError(t, txn.SetSplit(money.MustParse("2.00"), money.MustParse("98.00"), now))
	assert.True(t, txn.SplitComputed())
	assert.Equal(t, "2.00", txn.CommissionAmount.String())
	assert.Equal(t, "98.00", txn.SellerEarnings.String())

	err := txn.SetSplit(money.MustParse("3.00"), money.MustParse("97.00"), now)
	assert.Equal(t, apierror.ErrInvalidTransition, apierror.CodeOf(err))
	// First split untouched.
	assert.Equal(t, "2.00", txn.CommissionAmount.String())
}

func TestSetSplitRejectsInexactSplit(t *testing.T) {
	txn := txnIn(TransactionStatusPaymentVerified)

	err := txn.SetSplit(money.MustParse("2.00"), money.MustParse("97.99"), time.Now())
	assert.Equal(t, apierror.ErrInvariantViolation, apierror.CodeOf(err))
	assert.False(t, txn.SplitComputed())
}

func TestCheckSplitInvariant(t *testing.T) {
	txn := txnIn(TransactionStatusCompleted)
	assert.NoError(t, txn.CheckSplitInvariant(), "unset split has nothing to verify")

	require.NoError(t, txn.SetSplit(money.MustParse("2.00"), money.MustParse("98.00"), time.Now()))
	assert.NoError(t, txn.CheckSplitInvariant())

	// Simulate a corrupt direct field write.
	txn.SellerEarnings = money.MustParse("97.00")
	err := txn.CheckSplitInvariant()
	assert.Equal(t, apierror.ErrInvariantViolation, apierror.CodeOf(err))
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, TransactionStatusCompleted.Terminal())
	assert.True(t, TransactionStatusCancelled.Terminal())
	assert.True(t, TransactionStatusRefunded.Terminal())
	assert.False(t, TransactionStatusPendingPayment.Terminal())
	assert.False(t, TransactionStatusPaymentVerified.Terminal())
}

func TestCommissionRecordGuards(t *testing.T) {
	rec := &CommissionRecord{Status: CommissionStatusPending}
	assert.True(t, rec.CanMarkPaid())
	assert.True(t, rec.CanCancel())

	rec.Status = CommissionStatusPaid
	assert.False(t, rec.CanMarkPaid())
	assert.False(t, rec.CanCancel())

	rec.Status = CommissionStatusCancelled
	assert.False(t, rec.CanMarkPaid())
}
