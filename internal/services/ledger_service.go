// internal/services/ledger_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/commission"
	"github.com/closetloop/marketplace-backend/internal/models"
	"github.com/closetloop/marketplace-backend/internal/money"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

// LedgerService owns commission records. Records are append-only in spirit:
// they are created once per transaction, marked paid at most once, and
// cancelled rather than deleted when a sale is reversed.
type LedgerService struct {
	db *gorm.DB
}

// SellerEarningsSummary aggregates a seller's ledger by status.
type SellerEarningsSummary struct {
	PendingAmount   money.Money `json:"pending_amount"`
	PendingCount    int64       `json:"pending_count"`
	PaidAmount      money.Money `json:"paid_amount"`
	PaidCount       int64       `json:"paid_count"`
	CancelledAmount money.Money `json:"cancelled_amount"`
	CancelledCount  int64       `json:"cancelled_count"`
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// RecordCommission freezes the commission split on the transaction and
// creates the matching ledger record. It runs inside the caller's database
// transaction, which must hold the row lock on txn. Calling it again for the
// same transaction returns DUPLICATE_RECORD and changes nothing.
func (s *LedgerService) RecordCommission(tx *gorm.DB, txn *models.Transaction, now time.Time) (*models.CommissionRecord, error) {
	if txn.Status == models.TransactionStatusPendingPayment ||
		txn.Status == models.TransactionStatusPaymentSubmitted {
		return nil, apierror.New(apierror.ErrInvalidState,
			"commission cannot be recorded before payment is verified")
	}

	var existing models.CommissionRecord
	err := tx.Where("transaction_id = ?", txn.ID).First(&existing).Error
	if err == nil {
		return nil, apierror.New(apierror.ErrDuplicateRecord,
			"commission record already exists for this transaction")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !txn.SplitComputed() {
		commissionAmount, sellerEarnings, err := commission.Compute(txn.SalePrice, txn.CommissionRate)
		if err != nil {
			return nil, err
		}
		if err := txn.SetSplit(commissionAmount, sellerEarnings, now); err != nil {
			return nil, err
		}
	}
	if err := txn.CheckSplitInvariant(); err != nil {
		return nil, err
	}

	record := &models.CommissionRecord{
		TransactionID: txn.ID,
		SellerID:      txn.SellerID,
		Amount:        txn.CommissionAmount,
		Rate:          txn.CommissionRate,
		Status:        models.CommissionStatusPending,
		CollectedAt:   &now,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create commission record: %w", err)
	}

	return record, nil
}

// MarkPaid settles a commission record. The parent transaction must already
// be completed; a paid record stays paid.
func (s *LedgerService) MarkPaid(recordID uuid.UUID, actor Actor) (*models.CommissionRecord, error) {
	if !actor.IsAdmin() {
		return nil, apierror.New(apierror.ErrForbidden, "settling commission requires an admin")
	}

	var record models.CommissionRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&record, "id = ?", recordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierror.New(apierror.ErrNotFound, "commission record not found")
			}
			return fmt.Errorf("database error: %w", err)
		}

		switch record.Status {
		case models.CommissionStatusPaid:
			return apierror.New(apierror.ErrAlreadyPaid, "commission record is already paid")
		case models.CommissionStatusCancelled:
			return apierror.New(apierror.ErrInvalidState, "commission record was cancelled")
		}

		var txn models.Transaction
		if err := tx.First(&txn, "id = ?", record.TransactionID).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if txn.Status != models.TransactionStatusCompleted {
			return apierror.New(apierror.ErrInvalidState,
				"commission can only be settled once the transaction is completed")
		}

		now := time.Now()
		record.Status = models.CommissionStatusPaid
		record.PaidAt = &now
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to update commission record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// CancelForTransaction voids a pending record when its sale is refunded.
// A missing record is fine (refunds can happen before collection); a paid
// record cannot be voided.
func (s *LedgerService) CancelForTransaction(tx *gorm.DB, transactionID uuid.UUID) error {
	var record models.CommissionRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ?", transactionID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if record.Status == models.CommissionStatusPaid {
		return apierror.New(apierror.ErrInvalidState,
			"cannot void a commission record that was already paid out")
	}
	if record.Status == models.CommissionStatusCancelled {
		return nil
	}

	record.Status = models.CommissionStatusCancelled
	if err := tx.Save(&record).Error; err != nil {
		return fmt.Errorf("failed to cancel commission record: %w", err)
	}
	return nil
}

// GetByTransaction returns the ledger record for a transaction, if any.
func (s *LedgerService) GetByTransaction(transactionID uuid.UUID) (*models.CommissionRecord, error) {
	var record models.CommissionRecord
	if err := s.db.Where("transaction_id = ?", transactionID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.New(apierror.ErrNotFound, "commission record not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &record, nil
}

// SellerSummary computes a seller's pending and settled earnings from the
// ledger. Sums are done in the database; DECIMAL aggregates scan cleanly
// into Money.
func (s *LedgerService) SellerSummary(sellerID uuid.UUID) (*SellerEarningsSummary, error) {
	type row struct {
		Status models.CommissionStatus
		Total  money.Money
		Count  int64
	}

	var rows []row
	err := s.db.Model(&models.CommissionRecord{}).
		Select("status, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("seller_id = ?", sellerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate commissions: %w", err)
	}

	summary := &SellerEarningsSummary{
		PendingAmount:   money.Zero(),
		PaidAmount:      money.Zero(),
		CancelledAmount: money.Zero(),
	}
	for _, r := range rows {
		switch r.Status {
		case models.CommissionStatusPending:
			summary.PendingAmount = r.Total
			summary.PendingCount = r.Count
		case models.CommissionStatusPaid:
			summary.PaidAmount = r.Total
			summary.PaidCount = r.Count
		case models.CommissionStatusCancelled:
			summary.CancelledAmount = r.Total
			summary.CancelledCount = r.Count
		}
	}
	return summary, nil
}

// ListForSeller returns a seller's ledger entries, newest first.
func (s *LedgerService) ListForSeller(sellerID uuid.UUID, params utils.PaginationParams) ([]models.CommissionRecord, int64, error) {
	query := s.db.Model(&models.CommissionRecord{}).
		Where("seller_id = ?", sellerID).
		Preload("Transaction")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count commission records: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status", "paid_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var records []models.CommissionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch commission records: %w", err)
	}
	return records, total, nil
}

// PaidBetween reports settled platform revenue in [from, to).
func (s *LedgerService) PaidBetween(from, to time.Time, params utils.PaginationParams) ([]models.CommissionRecord, money.Money, int64, error) {
	base := s.db.Model(&models.CommissionRecord{}).
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.CommissionStatusPaid, from, to)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, money.Zero(), 0, fmt.Errorf("failed to count commission records: %w", err)
	}

	var sum struct {
		Total money.Money
	}
	if err := base.Select("COALESCE(SUM(amount), 0) AS total").Scan(&sum).Error; err != nil {
		return nil, money.Zero(), 0, fmt.Errorf("failed to sum commission records: %w", err)
	}

	query := s.db.Model(&models.CommissionRecord{}).
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.CommissionStatusPaid, from, to).
		Preload("Transaction").Preload("Seller")
	query = utils.ApplySort(query, params, []string{"paid_at", "amount", "created_at"})
	query = utils.ApplyPagination(query, params)

	var records []models.CommissionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, money.Zero(), 0, fmt.Errorf("failed to fetch commission records: %w", err)
	}

	return records, sum.Total, total, nil
}
