// internal/services/transaction_service_test.go
package services

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/models"
)

// newMockedTransactionService opens gorm over a sqlmock connection so the
// service's SQL (row locks, guarded updates, rollbacks) can be asserted
// without a live database.
func newMockedTransactionService(t *testing.T) (*TransactionService, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger:               logger.Discard,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	return NewTransactionService(db, NewLedgerService(db), nil, nil), mock
}

type recordingGateway struct {
	calls int
	err   error
}

func (g *recordingGateway) RefundPayment(*models.Transaction) error {
	g.calls++
	return g.err
}

func activeProductRows(productID, sellerID uuid.UUID) *sqlmock.Rows {
	return productRowsWithStatus(productID, sellerID, "active")
}

func productRowsWithStatus(productID, sellerID uuid.UUID, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "seller_id", "price", "commission_rate", "status"}).
		AddRow(productID.String(), sellerID.String(), "100.00", "2", status)
}

func lockedTransactionRows(txnID, buyerID, sellerID uuid.UUID, status string, collected bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "product_id", "buyer_id", "seller_id",
		"sale_price", "commission_rate", "status", "payment_collected_by_platform",
	}).AddRow(
		txnID.String(), uuid.New().String(), buyerID.String(), sellerID.String(),
		"100.00", "2", status, collected,
	)
}

// expectReload matches the post-transition read that hydrates the
// transaction with its relations. Preloads run in name order: Buyer,
// CommissionRecord, Product, Seller.
func expectReload(mock sqlmock.Sqlmock, rows *sqlmock.Rows, buyerID, sellerID uuid.UUID) {
	mock.ExpectQuery(`SELECT (.+) FROM "transactions"`).WillReturnRows(rows)
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(buyerID.String()))
	mock.ExpectQuery(`SELECT (.+) FROM "commission_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT (.+) FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(sellerID.String()))
}

func TestInitiateFlipsProductToSold(t *testing.T) {
	svc, mock := newMockedTransactionService(t)

	productID, buyerID, sellerID, txnID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "products" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(activeProductRows(productID, sellerID))
	mock.ExpectQuery(`INSERT INTO "transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(txnID.String()))
	mock.ExpectExec(`UPDATE "products" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectReload(mock, lockedTransactionRows(txnID, buyerID, sellerID, "pending_payment", false), buyerID, sellerID)

	txn, err := svc.Initiate(productID, buyerID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPendingPayment, txn.Status)
	assert.Equal(t, buyerID, txn.BuyerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitiateLosesRace(t *testing.T) {
	svc, mock := newMockedTransactionService(t)

	productID, buyerID, sellerID := uuid.New(), uuid.New(), uuid.New()

	// Both buyers saw the product active under their own locks in turn;
	// the second one finds zero rows in status active to flip and the
	// whole purchase rolls back.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "products" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(activeProductRows(productID, sellerID))
	mock.ExpectQuery(`INSERT INTO "transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New().String()))
	mock.ExpectExec(`UPDATE "products" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	txn, err := svc.Initiate(productID, buyerID)
	assert.Nil(t, txn)
	assert.Equal(t, apierror.ErrProductNotActive, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitiateSoldProduct(t *testing.T) {
	svc, mock := newMockedTransactionService(t)

	productID, buyerID, sellerID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "products" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(productRowsWithStatus(productID, sellerID, "sold"))
	mock.ExpectRollback()

	_, err := svc.Initiate(productID, buyerID)
	assert.Equal(t, apierror.ErrProductNotActive, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitiateSelfPurchase(t *testing.T) {
	svc, mock := newMockedTransactionService(t)

	productID, sellerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "products" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(activeProductRows(productID, sellerID))
	mock.ExpectRollback()

	_, err := svc.Initiate(productID, sellerID)
	assert.Equal(t, apierror.ErrSelfPurchase, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPaymentTwice(t *testing.T) {
	svc, mock := newMockedTransactionService(t)

	txnID := uuid.New()
	admin := Actor{ID: uuid.New(), Type: models.UserTypeAdmin}

	// The second admin's locked re-read sees payment_verified already
	// written by the first, so the guard fails inside the lock.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "transactions" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(lockedTransactionRows(txnID, uuid.New(), uuid.New(), "payment_verified", false))
	mock.ExpectRollback()

	_, err := svc.VerifyPayment(txnID, admin)
	assert.Equal(t, apierror.ErrInvalidTransition, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkShippedRejectsNonSeller(t *testing.T) {
	svc, mock := newMockedTransactionService(t)

	txnID, sellerID := uuid.New(), uuid.New()
	admin := Actor{ID: uuid.New(), Type: models.UserTypeAdmin}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "transactions" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(lockedTransactionRows(txnID, uuid.New(), sellerID, "payment_verified", true))
	mock.ExpectRollback()

	_, err := svc.MarkShipped(txnID, admin, nil)
	assert.Equal(t, apierror.ErrForbidden, apierror.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundFiresGatewayOnceUnderLock(t *testing.T) {
	svc, mock := newMockedTransactionService(t)
	gateway := &recordingGateway{}
	svc.gateway = gateway

	txnID, buyerID, sellerID := uuid.New(), uuid.New(), uuid.New()
	admin := Actor{ID: uuid.New(), Type: models.UserTypeAdmin}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "transactions" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(lockedTransactionRows(txnID, buyerID, sellerID, "delivered", true))
	// Pending ledger entry gets cancelled, never deleted.
	mock.ExpectQuery(`SELECT (.+) FROM "commission_records" (.+)FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "seller_id", "amount", "rate", "status"}).
			AddRow(uuid.New().String(), txnID.String(), sellerID.String(), "2.00", "2", "pending"))
	mock.ExpectExec(`UPDATE "commission_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Listing parks as inactive for the seller to re-list manually.
	mock.ExpectExec(`UPDATE "products" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "transactions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectReload(mock, lockedTransactionRows(txnID, buyerID, sellerID, "refunded", true), buyerID, sellerID)

	txn, err := svc.Refund(txnID, admin, &RefundRequest{Reason: "item never arrived"})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, txn.Status)
	assert.Equal(t, 1, gateway.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundAlreadyRefundedSkipsGateway(t *testing.T) {
	svc, mock := newMockedTransactionService(t)
	gateway := &recordingGateway{}
	svc.gateway = gateway

	txnID := uuid.New()
	admin := Actor{ID: uuid.New(), Type: models.UserTypeAdmin}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "transactions" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(lockedTransactionRows(txnID, uuid.New(), uuid.New(), "refunded", true))
	mock.ExpectRollback()

	_, err := svc.Refund(txnID, admin, &RefundRequest{Reason: "duplicate request"})
	assert.Equal(t, apierror.ErrInvalidTransition, apierror.CodeOf(err))
	assert.Equal(t, 0, gateway.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundGatewayFailureWritesNothing(t *testing.T) {
	svc, mock := newMockedTransactionService(t)
	gatewayErr := errors.New("stripe refund declined")
	gateway := &recordingGateway{err: gatewayErr}
	svc.gateway = gateway

	txnID := uuid.New()
	admin := Actor{ID: uuid.New(), Type: models.UserTypeAdmin}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "transactions" WHERE id = (.+)FOR UPDATE`).
		WillReturnRows(lockedTransactionRows(txnID, uuid.New(), uuid.New(), "delivered", true))
	mock.ExpectRollback()

	_, err := svc.Refund(txnID, admin, &RefundRequest{Reason: "card dispute"})
	assert.ErrorIs(t, err, gatewayErr)
	assert.Equal(t, 1, gateway.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
