// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeMember UserType = "member"
	UserTypeAdmin  UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusSold     ProductStatus = "sold"
	ProductStatusRejected ProductStatus = "rejected"
	ProductStatusInactive ProductStatus = "inactive"
)

// TransactionStatus is the escrow lifecycle state. Progression is forward
// only; cancelled and refunded are the explicit exits.
type TransactionStatus string

const (
	TransactionStatusPendingPayment   TransactionStatus = "pending_payment"
	TransactionStatusPaymentSubmitted TransactionStatus = "payment_submitted"
	TransactionStatusPaymentVerified  TransactionStatus = "payment_verified"
	TransactionStatusShipped          TransactionStatus = "shipped"
	TransactionStatusDelivered        TransactionStatus = "delivered"
	TransactionStatusCompleted        TransactionStatus = "completed"
	TransactionStatusCancelled        TransactionStatus = "cancelled"
	TransactionStatusRefunded         TransactionStatus = "refunded"
)

func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

type NotificationStatus string

const (
	NotificationStatusUnread NotificationStatus = "unread"
	NotificationStatusRead   NotificationStatus = "read"
)

func TimePtr(t time.Time) *time.Time {
	return &t
}
