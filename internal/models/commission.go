// internal/models/commission.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/closetloop/marketplace-backend/internal/money"
)

// CommissionRecord is the ledger entry for the platform's cut of one sale.
// At most one exists per transaction (enforced by the unique index and the
// duplicate check in the ledger service), and its amount and rate are frozen
// copies of the transaction's snapshot. Its payment status moves
// independently of the transaction's own status.
type CommissionRecord struct {
	BaseModel
	TransactionID uuid.UUID        `json:"transaction_id" gorm:"type:uuid;not null;uniqueIndex"`
	SellerID      uuid.UUID        `json:"seller_id" gorm:"type:uuid;not null;index"`
	Amount        money.Money      `json:"amount" gorm:"type:decimal(12,2);not null"`
	Rate          decimal.Decimal  `json:"rate" gorm:"type:decimal(5,2);not null"`
	Status        CommissionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CollectedAt   *time.Time       `json:"collected_at"`
	PaidAt        *time.Time       `json:"paid_at"`

	// Relationships
	Transaction Transaction `json:"transaction,omitempty" gorm:"foreignKey:TransactionID"`
	Seller      User        `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}

func (r *CommissionRecord) CanMarkPaid() bool {
	return r.Status == CommissionStatusPending
}

func (r *CommissionRecord) CanCancel() bool {
	return r.Status == CommissionStatusPending
}
