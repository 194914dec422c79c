// internal/services/transaction_service.go
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
	"github.com/closetloop/marketplace-backend/internal/utils"
)

// Actor identifies who is invoking a transition. Role checks happen here in
// addition to the route middleware so the service stays safe when called from
// jobs or scripts.
type Actor struct {
	ID   uuid.UUID
	Type models.UserType
}

func (a Actor) IsAdmin() bool {
	return a.Type == models.UserTypeAdmin
}

// TransactionService owns every write to a transaction's status and evidence
// fields. Each transition runs inside a database transaction holding a
// SELECT ... FOR UPDATE lock on the row, re-reads the current state, and
// re-validates the guard before writing, so two concurrent actions against
// the same prior state resolve to one success and one INVALID_TRANSITION.
// paymentGateway is the slice of PaymentService the transaction flow needs.
type paymentGateway interface {
	RefundPayment(txn *models.Transaction) error
}

type TransactionService struct {
	db                  *gorm.DB
	ledgerService       *LedgerService
	gateway             paymentGateway
	notificationService *NotificationService
}

type SubmitPaymentRequest struct {
	ProofKey  string `json:"proof_key" validate:"required"`
	Reference string `json:"reference" validate:"required"`
}

type ShipRequest struct {
	ProofKey string `json:"proof_key,omitempty"`
}

type DeliveryRequest struct {
	ProofKey string `json:"proof_key,omitempty"`
}

type RefundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func NewTransactionService(db *gorm.DB, ledgerService *LedgerService, paymentService *PaymentService, notificationService *NotificationService) *TransactionService {
	s := &TransactionService{
		db:                  db,
		ledgerService:       ledgerService,
		notificationService: notificationService,
	}
	if paymentService != nil {
		s.gateway = paymentService
	}
	return s
}

// Initiate creates a transaction for one unit of an active product. The
// product flips active -> sold in the same database transaction with a
// status-guarded UPDATE, so of two concurrent buyers exactly one wins and
// the other sees PRODUCT_NOT_ACTIVE.
func (s *TransactionService) Initiate(productID, buyerID uuid.UUID) (*models.Transaction, error) {
	var txn *models.Transaction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierror.New(apierror.ErrNotFound, "product not found")
			}
			return fmt.Errorf("database error: %w", err)
		}

		if !product.Purchasable() {
			return apierror.New(apierror.ErrProductNotActive, "product is not available for purchase")
		}
		if product.SellerID == buyerID {
			return apierror.New(apierror.ErrSelfPurchase, "cannot purchase your own listing")
		}
		if err := commission.ValidateRate(product.CommissionRate); err != nil {
			return err
		}
		if !product.Price.IsPositive() {
			return apierror.New(apierror.ErrInvalidPrice, "product price must be greater than zero")
		}

		// Seller, price, and rate are frozen here; later edits to the
		// listing cannot affect this sale.
		txn = &models.Transaction{
			ProductID:      product.ID,
			BuyerID:        buyerID,
			SellerID:       product.SellerID,
			SalePrice:      product.Price,
			CommissionRate: product.CommissionRate,
			Status:         models.TransactionStatusPendingPayment,
		}

		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		res := tx.Model(&models.Product{}).
			Where("id = ? AND status = ?", product.ID, models.ProductStatusActive).
			Update("status", models.ProductStatusSold)
		if res.Error != nil {
			return fmt.Errorf("failed to update product status: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			// Lost the race after all; roll the whole purchase back.
			return apierror.New(apierror.ErrProductNotActive, "product is not available for purchase")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.initiated")
	return s.reload(txn.ID)
}

// SubmitPayment attaches the buyer's proof of transfer and reference number
// and moves the transaction to payment_submitted.
func (s *TransactionService) SubmitPayment(transactionID uuid.UUID, actor Actor, req *SubmitPaymentRequest) (*models.Transaction, error) {
	if req.ProofKey == "" || req.Reference == "" {
		return nil, apierror.New(apierror.ErrMissingProof, "payment proof and reference are both required")
	}

	txn, err := s.transition(transactionID, func(txn *models.Transaction) error {
		if txn.BuyerID != actor.ID && !actor.IsAdmin() {
			return apierror.New(apierror.ErrForbidden, "only the buyer can submit payment")
		}
		if !txn.CanSubmitPayment() {
			return invalidTransition("submit payment", txn.Status)
		}

		now := time.Now()
		txn.PaymentProofKey = req.ProofKey
		txn.PaymentReference = req.Reference
		txn.PaymentSubmittedAt = &now
		txn.Status = models.TransactionStatusPaymentSubmitted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.payment_submitted")
	return txn, nil
}

// VerifyPayment is the admin confirmation that the buyer's submitted proof
// checks out.
func (s *TransactionService) VerifyPayment(transactionID uuid.UUID, actor Actor) (*models.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, apierror.New(apierror.ErrForbidden, "payment verification requires an admin")
	}

	txn, err := s.transition(transactionID, func(txn *models.Transaction) error {
		if !txn.CanVerifyPayment() {
			return invalidTransition("verify payment", txn.Status)
		}

		now := time.Now()
		txn.PaymentVerifiedAt = &now
		txn.PaymentVerifiedBy = &actor.ID
		txn.Status = models.TransactionStatusPaymentVerified
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.payment_verified")
	return txn, nil
}

// CollectPlatformPayment records that the platform is actually holding the
// buyer's funds. The status does not change, but this flag is what unblocks
// shipment, and it is the point where the commission split is frozen and the
// ledger entry is written.
func (s *TransactionService) CollectPlatformPayment(transactionID uuid.UUID, actor Actor, reference string) (*models.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, apierror.New(apierror.ErrForbidden, "recording platform collection requires an admin")
	}

	if reference == "" {
		generated, err := utils.GenerateReferenceNumber("COL")
		if err != nil {
			return nil, fmt.Errorf("failed to generate collection reference: %w", err)
		}
		reference = generated
	}

	txn, err := s.transitionTx(transactionID, func(tx *gorm.DB, txn *models.Transaction) error {
		if !txn.CanCollectPlatformPayment() {
			if txn.PaymentCollectedByPlatform {
				return apierror.New(apierror.ErrInvalidTransition, "platform collection already recorded")
			}
			return invalidTransition("record platform collection", txn.Status)
		}

		now := time.Now()
		txn.PaymentCollectedByPlatform = true
		txn.PlatformCollectionReference = reference
		txn.PlatformCollectedAt = &now

		// The sale is now funded: freeze the split and open the ledger
		// entry in the same database transaction.
		if _, err := s.ledgerService.RecordCommission(tx, txn, now); err != nil {
			return err
		}

		return txn.CheckSplitInvariant()
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.platform_collected")
	return txn, nil
}

// MarkShipped moves payment_verified -> shipped. Shipping is the seller's
// act alone, with no admin override, and it is blocked until platform
// collection is recorded, regardless of status.
func (s *TransactionService) MarkShipped(transactionID uuid.UUID, actor Actor, req *ShipRequest) (*models.Transaction, error) {
	txn, err := s.transition(transactionID, func(txn *models.Transaction) error {
		if txn.SellerID != actor.ID {
			return apierror.New(apierror.ErrForbidden, "only the seller can mark shipment")
		}
		if !txn.CanShip() {
			if txn.Status == models.TransactionStatusPaymentVerified && !txn.PaymentCollectedByPlatform {
				return apierror.New(apierror.ErrInvalidTransition,
					"cannot ship before the platform has collected the buyer's payment")
			}
			return invalidTransition("mark shipped", txn.Status)
		}

		now := time.Now()
		if req != nil {
			txn.ShipmentProofKey = req.ProofKey
		}
		txn.ShippedAt = &now
		txn.Status = models.TransactionStatusShipped
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.shipped")
	return txn, nil
}

// ConfirmDelivery moves shipped -> delivered. Buyers confirm their own
// deliveries; admins may override with delivery proof on the buyer's behalf.
func (s *TransactionService) ConfirmDelivery(transactionID uuid.UUID, actor Actor, req *DeliveryRequest) (*models.Transaction, error) {
	txn, err := s.transition(transactionID, func(txn *models.Transaction) error {
		if txn.BuyerID != actor.ID && !actor.IsAdmin() {
			return apierror.New(apierror.ErrForbidden, "only the buyer can confirm delivery")
		}
		if !txn.CanConfirmDelivery() {
			return invalidTransition("confirm delivery", txn.Status)
		}

		now := time.Now()
		if req != nil {
			txn.DeliveryProofKey = req.ProofKey
		}
		txn.DeliveredAt = &now
		txn.Status = models.TransactionStatusDelivered
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.delivered")
	return txn, nil
}

// Complete finalizes the sale. The commission split is normally frozen at
// platform collection; if it somehow is not, it is computed here, exactly
// once, before completion is written.
func (s *TransactionService) Complete(transactionID uuid.UUID, actor Actor) (*models.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, apierror.New(apierror.ErrForbidden, "completing a transaction requires an admin")
	}

	txn, err := s.transitionTx(transactionID, func(tx *gorm.DB, txn *models.Transaction) error {
		if !txn.CanComplete() {
			return invalidTransition("complete", txn.Status)
		}

		now := time.Now()
		if _, err := s.ledgerService.RecordCommission(tx, txn, now); err != nil &&
			apierror.CodeOf(err) != apierror.ErrDuplicateRecord {
			return err
		}
		if err := txn.CheckSplitInvariant(); err != nil {
			return err
		}

		txn.CompletedAt = &now
		txn.Status = models.TransactionStatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.completed")
	return txn, nil
}

// Cancel exits the lifecycle before funds are verified. The product goes
// back on sale.
func (s *TransactionService) Cancel(transactionID uuid.UUID, actor Actor) (*models.Transaction, error) {
	txn, err := s.transitionTx(transactionID, func(tx *gorm.DB, txn *models.Transaction) error {
		if txn.BuyerID != actor.ID && !actor.IsAdmin() {
			return apierror.New(apierror.ErrForbidden, "only the buyer or an admin can cancel")
		}
		if !txn.CanCancel() {
			if txn.Status == models.TransactionStatusPaymentVerified ||
				txn.Status == models.TransactionStatusShipped ||
				txn.Status == models.TransactionStatusDelivered {
				return apierror.New(apierror.ErrInvalidTransition,
					"funds already collected; use refund instead of cancel")
			}
			return invalidTransition("cancel", txn.Status)
		}

		now := time.Now()
		txn.CancelledAt = &now
		txn.CancelledBy = &actor.ID
		txn.Status = models.TransactionStatusCancelled

		return s.relistProduct(tx, txn.ProductID, models.ProductStatusActive)
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.cancelled")
	return txn, nil
}

// Refund is the after-the-fact reversal once funds were verified. Any
// pending commission record is cancelled, never deleted; if the buyer paid
// by card the gateway refund is issued under the row lock, before the state
// is written, so a concurrent refund of the same transaction cannot fire
// the gateway twice.
func (s *TransactionService) Refund(transactionID uuid.UUID, actor Actor, req *RefundRequest) (*models.Transaction, error) {
	if !actor.IsAdmin() {
		return nil, apierror.New(apierror.ErrForbidden, "refunds require an admin")
	}

	txn, err := s.transitionTx(transactionID, func(tx *gorm.DB, txn *models.Transaction) error {
		if !txn.CanRefund() {
			return invalidTransition("refund", txn.Status)
		}

		// Gateway first: if the external refund fails nothing is written.
		if s.gateway != nil {
			if err := s.gateway.RefundPayment(txn); err != nil {
				return err
			}
		}

		now := time.Now()
		txn.RefundedAt = &now
		txn.RefundedBy = &actor.ID
		if req != nil {
			txn.RefundReason = req.Reason
		}
		txn.Status = models.TransactionStatusRefunded

		if err := s.ledgerService.CancelForTransaction(tx, txn.ID); err != nil {
			return err
		}

		// The item's condition is unknown after a reversal; park the
		// listing for the seller to re-list manually.
		return s.relistProduct(tx, txn.ProductID, models.ProductStatusInactive)
	})
	if err != nil {
		return nil, err
	}

	s.notify(txn, "transaction.refunded")
	return txn, nil
}

// Get returns a transaction with its relationships loaded.
func (s *TransactionService) Get(transactionID uuid.UUID) (*models.Transaction, error) {
	return s.reload(transactionID)
}

// GetForActor returns a transaction only if the actor is a party to it or
// an admin.
func (s *TransactionService) GetForActor(transactionID uuid.UUID, actor Actor) (*models.Transaction, error) {
	txn, err := s.reload(transactionID)
	if err != nil {
		return nil, err
	}
	if txn.BuyerID != actor.ID && txn.SellerID != actor.ID && !actor.IsAdmin() {
		return nil, apierror.New(apierror.ErrForbidden, "not a party to this transaction")
	}
	return txn, nil
}

// ListForUser returns transactions where the user is buyer or seller.
func (s *TransactionService) ListForUser(userID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Preload("Product")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "sale_price", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}

// ListByStatus is the admin work queue.
func (s *TransactionService) ListByStatus(status models.TransactionStatus, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).
		Preload("Buyer").Preload("Seller").Preload("Product")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "sale_price", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}

// transition runs fn against the row-locked transaction and persists the
// mutated row. fn must re-validate its guard; the lock guarantees it sees
// the latest committed state.
func (s *TransactionService) transition(transactionID uuid.UUID, fn func(*models.Transaction) error) (*models.Transaction, error) {
	return s.transitionTx(transactionID, func(_ *gorm.DB, txn *models.Transaction) error {
		return fn(txn)
	})
}

func (s *TransactionService) transitionTx(transactionID uuid.UUID, fn func(*gorm.DB, *models.Transaction) error) (*models.Transaction, error) {
	var txn models.Transaction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, "id = ?", transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierror.New(apierror.ErrNotFound, "transaction not found")
			}
			return fmt.Errorf("database error: %w", err)
		}

		if err := fn(tx, &txn); err != nil {
			return err
		}

		if err := tx.Save(&txn).Error; err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.reload(txn.ID)
}

func (s *TransactionService) relistProduct(tx *gorm.DB, productID uuid.UUID, to models.ProductStatus) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND status = ?", productID, models.ProductStatusSold).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to update product status: %w", res.Error)
	}
	return nil
}

func (s *TransactionService) reload(id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := s.db.Preload("Buyer").Preload("Seller").Preload("Product").
		Preload("CommissionRecord").
		First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.New(apierror.ErrNotFound, "transaction not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &txn, nil
}

func (s *TransactionService) notify(txn *models.Transaction, event string) {
	if s.notificationService != nil && txn != nil {
		s.notificationService.NotifyTransactionEvent(txn, event)
	}
}

func invalidTransition(action string, from models.TransactionStatus) error {
	return apierror.NewWithDetails(apierror.ErrInvalidTransition,
		fmt.Sprintf("cannot %s from status %q", action, from),
		map[string]string{"status": string(from)})
}
