// internal/services/payout_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/config"
	"github.com/closetloop/marketplace-backend/internal/models"
	"github.com/closetloop/marketplace-backend/internal/money"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

// PayoutService reconciles what the platform owes sellers. A payout is
// recorded against a completed transaction exactly once, and only for the
// exact frozen seller earnings.
type PayoutService struct {
	db                  *gorm.DB
	minimumAmount       money.Money
	processingDays      int
	notificationService *NotificationService
}

type RecordPayoutRequest struct {
	Reference string       `json:"reference"`
	Amount    money.Money  `json:"amount" validate:"required"`
	ProofKey  string       `json:"proof_key,omitempty"`
	Details   models.JSONB `json:"details,omitempty"`
}

// PayoutTerms is the public payout policy.
type PayoutTerms struct {
	MinimumAmount  money.Money `json:"minimum_amount"`
	ProcessingDays int         `json:"processing_days"`
}

func NewPayoutService(db *gorm.DB, cfg config.PayoutConfig, notificationService *NotificationService) (*PayoutService, error) {
	minimum, err := money.Parse(cfg.MinimumAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid payout minimum %q: %w", cfg.MinimumAmount, err)
	}
	if cfg.ProcessingDays < 0 {
		return nil, fmt.Errorf("invalid payout processing days %d", cfg.ProcessingDays)
	}
	return &PayoutService{
		db:                  db,
		minimumAmount:       minimum,
		processingDays:      cfg.ProcessingDays,
		notificationService: notificationService,
	}, nil
}

func (s *PayoutService) Terms() PayoutTerms {
	return PayoutTerms{
		MinimumAmount:  s.minimumAmount,
		ProcessingDays: s.processingDays,
	}
}

// RecordSellerPayout marks a completed transaction's seller as paid. The
// recorded amount must equal the frozen seller earnings to the cent; the
// ledger is the source of truth, not the operator's keyboard.
func (s *PayoutService) RecordSellerPayout(transactionID uuid.UUID, actor Actor, req *RecordPayoutRequest) (*models.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, apierror.New(apierror.ErrForbidden, "recording payouts requires an admin")
	}

	reference := req.Reference
	if reference == "" {
		generated, err := utils.GenerateReferenceNumber("PAY")
		if err != nil {
			return nil, fmt.Errorf("failed to generate payout reference: %w", err)
		}
		reference = generated
	}

	var txn models.Transaction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, "id = ?", transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierror.New(apierror.ErrNotFound, "transaction not found")
			}
			return fmt.Errorf("database error: %w", err)
		}

		if err := s.validatePayout(&txn, req.Amount); err != nil {
			return err
		}

		now := time.Now()
		txn.SellerPaid = true
		txn.PayoutReference = reference
		txn.PayoutAmount = req.Amount
		txn.PayoutProofKey = req.ProofKey
		txn.PayoutDetails = req.Details
		txn.SellerPaidAt = &now

		if err := tx.Save(&txn).Error; err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notificationService != nil {
		s.notificationService.NotifyTransactionEvent(&txn, "payout.recorded")
	}
	return &txn, nil
}

// validatePayout holds the whole payout guard: state, frozen-split integrity,
// exact amount, and the platform minimum. Called with the row lock held.
func (s *PayoutService) validatePayout(txn *models.Transaction, amount money.Money) error {
	if !txn.CanRecordPayout() {
		if txn.SellerPaid {
			return apierror.New(apierror.ErrAlreadyPaid, "seller payout already recorded")
		}
		return apierror.NewWithDetails(apierror.ErrInvalidState,
			fmt.Sprintf("payouts require a completed transaction, not %q", txn.Status),
			map[string]string{"status": string(txn.Status)})
	}
	if err := txn.CheckSplitInvariant(); err != nil {
		return err
	}

	if !amount.Equal(txn.SellerEarnings) {
		return apierror.NewWithDetails(apierror.ErrAmountMismatch,
			"payout amount does not match the seller's frozen earnings",
			map[string]string{
				"expected": txn.SellerEarnings.String(),
				"received": amount.String(),
			})
	}
	if txn.SellerEarnings.Cmp(s.minimumAmount) < 0 {
		return apierror.NewWithDetails(apierror.ErrPayoutBelowMinimum,
			fmt.Sprintf("seller earnings are below the %s payout minimum", s.minimumAmount),
			map[string]string{"minimum": s.minimumAmount.String()})
	}
	return nil
}

// DuePayouts lists completed, unpaid transactions whose completion is at
// least the processing window old. This is the admin's daily worklist.
func (s *PayoutService) DuePayouts(asOf time.Time, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	cutoff := asOf.AddDate(0, 0, -s.processingDays)

	query := s.db.Model(&models.Transaction{}).
		Where("status = ? AND seller_paid = ? AND completed_at <= ?",
			models.TransactionStatusCompleted, false, cutoff).
		Preload("Seller").Preload("Product")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count due payouts: %w", err)
	}

	allowedSortFields := []string{"completed_at", "seller_earnings", "created_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch due payouts: %w", err)
	}
	return transactions, total, nil
}

// OutstandingLiability sums seller earnings the platform is holding for
// completed but not yet paid-out sales.
func (s *PayoutService) OutstandingLiability() (money.Money, int64, error) {
	var row struct {
		Total money.Money
		Count int64
	}
	err := s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(seller_earnings), 0) AS total, COUNT(*) AS count").
		Where("status = ? AND seller_paid = ?", models.TransactionStatusCompleted, false).
		Scan(&row).Error
	if err != nil {
		return money.Zero(), 0, fmt.Errorf("failed to sum outstanding payouts: %w", err)
	}
	return row.Total, row.Count, nil
}
