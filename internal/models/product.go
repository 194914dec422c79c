// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/closetloop/marketplace-backend/internal/money"
)

type Product struct {
	BaseModel
	SellerID       uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	Title          string          `json:"title" gorm:"size:255;not null"`
	Description    string          `json:"description" gorm:"type:text"`
	Category       string          `json:"category" gorm:"size:100;index"`
	Brand          string          `json:"brand" gorm:"size:100"`
	Size           string          `json:"size" gorm:"size:20"`
	Condition      string          `json:"condition" gorm:"size:50"`
	Price          money.Money     `json:"price" gorm:"type:decimal(12,2);not null"`
	CommissionRate decimal.Decimal `json:"commission_rate" gorm:"type:decimal(5,2);not null"`
	Images         pq.StringArray  `json:"images" gorm:"type:text[]"`
	Tags           pq.StringArray  `json:"tags" gorm:"type:text[]"`
	Status         ProductStatus   `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	ViewCount      int64           `json:"view_count" gorm:"default:0"`

	// Relationships
	Seller       User          `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:ProductID"`
}

// Purchasable reports whether a buyer can initiate a sale of this product.
func (p *Product) Purchasable() bool {
	return p.Status == ProductStatusActive
}
