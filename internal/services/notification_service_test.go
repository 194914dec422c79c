// internal/services/notification_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/closetloop/marketplace-backend/internal/models"
	"github.com/closetloop/marketplace-backend/internal/money"
)

func testTransaction() *models.Transaction {
	txn := &models.Transaction{
		BuyerID:        uuid.New(),
		SellerID:       uuid.New(),
		SalePrice:      money.MustParse("100.00"),
		SellerEarnings: money.MustParse("98.00"),
		PayoutAmount:   money.MustParse("98.00"),
	}
	txn.ID = uuid.New()
	return txn
}

func TestNotificationFanOut(t *testing.T) {
	txn := testTransaction()

	cases := []struct {
		event      string
		recipients []uuid.UUID
	}{
		{"transaction.initiated", []uuid.UUID{txn.SellerID}},
		{"transaction.payment_submitted", []uuid.UUID{txn.SellerID}},
		{"transaction.payment_verified", []uuid.UUID{txn.BuyerID, txn.SellerID}},
		{"transaction.platform_collected", []uuid.UUID{txn.SellerID}},
		{"transaction.shipped", []uuid.UUID{txn.BuyerID}},
		{"transaction.delivered", []uuid.UUID{txn.SellerID}},
		{"transaction.completed", []uuid.UUID{txn.SellerID, txn.BuyerID}},
		{"transaction.cancelled", []uuid.UUID{txn.BuyerID, txn.SellerID}},
		{"transaction.refunded", []uuid.UUID{txn.BuyerID, txn.SellerID}},
		{"payout.recorded", []uuid.UUID{txn.SellerID}},
	}

	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			notifications := notificationsForEvent(txn, tc.event)
			assert.Len(t, notifications, len(tc.recipients))
			for i, n := range notifications {
				assert.Equal(t, tc.recipients[i], n.UserID)
				assert.Equal(t, tc.event, n.Type)
				assert.Equal(t, models.NotificationStatusUnread, n.Status)
				assert.Equal(t, "transaction", n.RelatedResourceType)
				assert.Equal(t, txn.ID, *n.RelatedResourceID)
				assert.NotEmpty(t, n.Title)
				assert.NotEmpty(t, n.Message)
			}
		})
	}
}

func TestNotificationUnknownEvent(t *testing.T) {
	assert.Empty(t, notificationsForEvent(testTransaction(), "transaction.unknown"))
}
