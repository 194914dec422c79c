// internal/services/notification_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/models"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

// NotificationService writes in-app notifications for lifecycle events.
// Notification failures never fail the transition that triggered them; they
// are logged and dropped.
type NotificationService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewNotificationService(db *gorm.DB, logger *logrus.Logger) *NotificationService {
	return &NotificationService{db: db, logger: logger}
}

// NotifyTransactionEvent fans a lifecycle event out to the parties who need
// to act on it or know about it.
func (s *NotificationService) NotifyTransactionEvent(txn *models.Transaction, event string) {
	for _, n := range notificationsForEvent(txn, event) {
		if err := s.db.Create(&n).Error; err != nil {
			s.logger.WithFields(logrus.Fields{
				"transaction_id": txn.ID,
				"event":          event,
				"user_id":        n.UserID,
			}).WithError(err).Warn("failed to create notification")
		}
	}
}

func notificationsForEvent(txn *models.Transaction, event string) []models.Notification {
	short := txn.ID.String()[:8]
	base := func(userID uuid.UUID, title, message string) models.Notification {
		id := txn.ID
		return models.Notification{
			UserID:              userID,
			Type:                event,
			Title:               title,
			Message:             message,
			Status:              models.NotificationStatusUnread,
			RelatedResourceType: "transaction",
			RelatedResourceID:   &id,
		}
	}

	switch event {
	case "transaction.initiated":
		return []models.Notification{
			base(txn.SellerID, "Your item sold",
				fmt.Sprintf("Order %s was placed for %s. Awaiting buyer payment.", short, txn.SalePrice)),
		}
	case "transaction.payment_submitted":
		return []models.Notification{
			base(txn.SellerID, "Buyer submitted payment",
				fmt.Sprintf("Payment proof for order %s is awaiting verification.", short)),
		}
	case "transaction.payment_verified":
		return []models.Notification{
			base(txn.BuyerID, "Payment verified",
				fmt.Sprintf("Your payment for order %s was verified.", short)),
			base(txn.SellerID, "Payment verified",
				fmt.Sprintf("Payment for order %s was verified. Shipping unlocks once funds are secured.", short)),
		}
	case "transaction.platform_collected":
		return []models.Notification{
			base(txn.SellerID, "Funds secured, ready to ship",
				fmt.Sprintf("Funds for order %s are held by the platform. You can ship now.", short)),
		}
	case "transaction.shipped":
		return []models.Notification{
			base(txn.BuyerID, "Your order shipped",
				fmt.Sprintf("Order %s is on its way. Confirm delivery when it arrives.", short)),
		}
	case "transaction.delivered":
		return []models.Notification{
			base(txn.SellerID, "Delivery confirmed",
				fmt.Sprintf("The buyer confirmed delivery of order %s.", short)),
		}
	case "transaction.completed":
		return []models.Notification{
			base(txn.SellerID, "Sale completed",
				fmt.Sprintf("Order %s is complete. Your earnings of %s are queued for payout.", short, txn.SellerEarnings)),
			base(txn.BuyerID, "Order completed",
				fmt.Sprintf("Order %s is complete. Thanks for shopping with us.", short)),
		}
	case "transaction.cancelled":
		return []models.Notification{
			base(txn.BuyerID, "Order cancelled",
				fmt.Sprintf("Order %s was cancelled.", short)),
			base(txn.SellerID, "Order cancelled",
				fmt.Sprintf("Order %s was cancelled. Your item is back on sale.", short)),
		}
	case "transaction.refunded":
		return []models.Notification{
			base(txn.BuyerID, "Order refunded",
				fmt.Sprintf("Order %s was refunded.", short)),
			base(txn.SellerID, "Order refunded",
				fmt.Sprintf("Order %s was refunded. Your listing was set inactive.", short)),
		}
	case "payout.recorded":
		return []models.Notification{
			base(txn.SellerID, "Payout sent",
				fmt.Sprintf("Your payout of %s for order %s was sent (ref %s).", txn.PayoutAmount, short, txn.PayoutReference)),
		}
	default:
		return nil
	}
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(userID uuid.UUID, unreadOnly bool, params utils.PaginationParams) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("status = ?", models.NotificationStatusUnread)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at"})
	query = utils.ApplyPagination(query, params)

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(notificationID, userID uuid.UUID) error {
	var notification models.Notification
	err := s.db.Where("id = ? AND user_id = ?", notificationID, userID).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.New(apierror.ErrNotFound, "notification not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	if notification.Status == models.NotificationStatusRead {
		return nil
	}

	now := time.Now()
	return s.db.Model(&notification).Updates(map[string]interface{}{
		"status":  models.NotificationStatusRead,
		"read_at": now,
	}).Error
}

// MarkAllRead marks every unread notification for the user as read.
func (s *NotificationService) MarkAllRead(userID uuid.UUID) error {
	now := time.Now()
	return s.db.Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationStatusUnread).
		Updates(map[string]interface{}{
			"status":  models.NotificationStatusRead,
			"read_at": now,
		}).Error
}
