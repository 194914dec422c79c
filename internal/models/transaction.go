// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/money"
)

// Transaction is one attempted sale of one product unit, moving through the
// escrow lifecycle. The price and commission rate are snapshotted at creation
// and never re-read from the product, so a seller editing the listing mid-flow
// cannot change what the buyer owes or what the platform takes.
type Transaction struct {
	BaseModel
	ProductID uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	BuyerID   uuid.UUID `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID  uuid.UUID `json:"seller_id" gorm:"type:uuid;not null;index"`

	SalePrice        money.Money     `json:"sale_price" gorm:"type:decimal(12,2);not null"`
	CommissionRate   decimal.Decimal `json:"commission_rate" gorm:"type:decimal(5,2);not null"`
	CommissionAmount money.Money     `json:"commission_amount" gorm:"type:decimal(12,2)"`
	SellerEarnings   money.Money     `json:"seller_earnings" gorm:"type:decimal(12,2)"`
	SplitComputedAt  *time.Time      `json:"split_computed_at"`

	Status TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending_payment';index"`

	// Buyer payment evidence.
	PaymentProofKey    string     `json:"payment_proof_key" gorm:"size:512"`
	PaymentReference   string     `json:"payment_reference" gorm:"size:255"`
	PaymentSubmittedAt *time.Time `json:"payment_submitted_at"`
	PaymentVerifiedAt  *time.Time `json:"payment_verified_at"`
	PaymentVerifiedBy  *uuid.UUID `json:"payment_verified_by" gorm:"type:uuid"`

	// Platform collection evidence, independent of the buyer's own proof.
	PaymentCollectedByPlatform  bool       `json:"payment_collected_by_platform" gorm:"default:false"`
	PlatformCollectionReference string     `json:"platform_collection_reference" gorm:"size:255"`
	PlatformCollectedAt         *time.Time `json:"platform_collected_at"`

	// Fulfillment evidence.
	ShipmentProofKey string     `json:"shipment_proof_key" gorm:"size:512"`
	ShippedAt        *time.Time `json:"shipped_at"`
	DeliveryProofKey string     `json:"delivery_proof_key" gorm:"size:512"`
	DeliveredAt      *time.Time `json:"delivered_at"`

	CompletedAt  *time.Time `json:"completed_at"`
	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelledBy  *uuid.UUID `json:"cancelled_by" gorm:"type:uuid"`
	RefundedAt   *time.Time `json:"refunded_at"`
	RefundedBy   *uuid.UUID `json:"refunded_by" gorm:"type:uuid"`
	RefundReason string     `json:"refund_reason,omitempty" gorm:"type:text"`

	// Seller payout evidence, admin-set only.
	SellerPaid      bool        `json:"seller_paid" gorm:"default:false"`
	PayoutReference string      `json:"payout_reference" gorm:"size:255"`
	PayoutAmount    money.Money `json:"payout_amount" gorm:"type:decimal(12,2)"`
	PayoutProofKey  string      `json:"payout_proof_key" gorm:"size:512"`
	PayoutDetails   JSONB       `json:"payout_details" gorm:"type:jsonb"`
	SellerPaidAt    *time.Time  `json:"seller_paid_at"`

	// Relationships
	Buyer            User              `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller           User              `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Product          Product           `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	CommissionRecord *CommissionRecord `json:"commission_record,omitempty" gorm:"foreignKey:TransactionID"`
}

// Guard predicates. These are the single source of truth for the transition
// table; the service layer re-checks them inside the row lock and the API
// layer uses them to decide which actions to offer. None of them mutate.

func (t *Transaction) CanSubmitPayment() bool {
	return t.Status == TransactionStatusPendingPayment
}

func (t *Transaction) CanVerifyPayment() bool {
	return t.Status == TransactionStatusPaymentSubmitted
}

// CanCancel is true only before the platform has verified payment. Once
// funds are in flight the only reversal is an explicit refund.
func (t *Transaction) CanCancel() bool {
	return t.Status == TransactionStatusPendingPayment ||
		t.Status == TransactionStatusPaymentSubmitted
}

func (t *Transaction) CanCollectPlatformPayment() bool {
	return t.Status == TransactionStatusPaymentVerified && !t.PaymentCollectedByPlatform
}

// CanShip blocks shipment until the platform confirms it actually holds the
// buyer's funds, so a seller can never ship before payment is secured.
func (t *Transaction) CanShip() bool {
	return t.Status == TransactionStatusPaymentVerified && t.PaymentCollectedByPlatform
}

func (t *Transaction) CanConfirmDelivery() bool {
	return t.Status == TransactionStatusShipped
}

func (t *Transaction) CanComplete() bool {
	return t.Status == TransactionStatusDelivered
}

func (t *Transaction) CanRefund() bool {
	switch t.Status {
	case TransactionStatusPaymentVerified, TransactionStatusShipped, TransactionStatusDelivered:
		return true
	}
	return false
}

func (t *Transaction) CanRecordPayout() bool {
	return t.Status == TransactionStatusCompleted && !t.SellerPaid
}

func (t *Transaction) SplitComputed() bool {
	return t.SplitComputedAt != nil
}

// SetSplit freezes the commission split. It is computed at most once; a
// second attempt is a transition error, which closes the rate-change exploit
// of recomputing mid-flow.
func (t *Transaction) SetSplit(commissionAmount, sellerEarnings money.Money, at time.Time) error {
	if t.SplitComputed() {
		return apierror.New(apierror.ErrInvalidTransition, "commission split already computed")
	}
	if !commissionAmount.Add(sellerEarnings).Equal(t.SalePrice) {
		return apierror.NewWithDetails(apierror.ErrInvariantViolation,
			"commission + earnings does not equal sale price",
			map[string]string{
				"sale_price": t.SalePrice.String(),
				"commission": commissionAmount.String(),
				"earnings":   sellerEarnings.String(),
			})
	}
	t.CommissionAmount = commissionAmount
	t.SellerEarnings = sellerEarnings
	t.SplitComputedAt = &at
	return nil
}

// CheckSplitInvariant re-verifies the frozen split. A violation means a bug
// somewhere wrote monetary fields directly; the caller must halt, not repair.
func (t *Transaction) CheckSplitInvariant() error {
	if !t.SplitComputed() {
		return nil
	}
	if !t.CommissionAmount.Add(t.SellerEarnings).Equal(t.SalePrice) {
		return apierror.NewWithDetails(apierror.ErrInvariantViolation,
			"commission + earnings does not equal sale price",
			map[string]string{
				"transaction_id": t.ID.String(),
				"sale_price":     t.SalePrice.String(),
				"commission":     t.CommissionAmount.String(),
				"earnings":       t.SellerEarnings.String(),
			})
	}
	return nil
}
