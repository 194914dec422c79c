// internal/services/product_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/closetloop/marketplace-backend/internal/apierror"
	"github.com/closetloop/marketplace-backend/internal/commission"
	"github.com/closetloop/marketplace-backend/internal/config"
	"github.com/closetloop/marketplace-backend/internal/models"
	"github.com/closetloop/marketplace-backend/internal/money"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

// ProductService manages listings. Every listing carries its own frozen
// commission rate; the platform default applies only when the seller leaves
// it blank.
type ProductService struct {
	db          *gorm.DB
	defaultRate decimal.Decimal
}

type CreateProductRequest struct {
	Title          string   `json:"title" validate:"required,min=3,max=255"`
	Description    string   `json:"description" validate:"max=5000"`
	Category       string   `json:"category" validate:"required,max=100"`
	Brand          string   `json:"brand" validate:"max=100"`
	Size           string   `json:"size" validate:"max=20"`
	Condition      string   `json:"condition" validate:"max=50"`
	Price          string   `json:"price" validate:"required,money_amount"`
	CommissionRate string   `json:"commission_rate,omitempty" validate:"omitempty,commission_rate"`
	Images         []string `json:"images" validate:"max=10"`
	Tags           []string `json:"tags" validate:"max=20"`
}

type UpdateProductRequest struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category    *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Brand       *string  `json:"brand,omitempty" validate:"omitempty,max=100"`
	Size        *string  `json:"size,omitempty" validate:"omitempty,max=20"`
	Condition   *string  `json:"condition,omitempty" validate:"omitempty,max=50"`
	Price       *string  `json:"price,omitempty" validate:"omitempty,money_amount"`
	Images      []string `json:"images,omitempty" validate:"omitempty,max=10"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,max=20"`
}

type ProductSearchParams struct {
	utils.PaginationParams
	Category string `form:"category"`
	Brand    string `form:"brand"`
	Search   string `form:"search"`
	MinPrice string `form:"min_price"`
	MaxPrice string `form:"max_price"`
}

func NewProductService(db *gorm.DB, paymentCfg config.PaymentConfig) (*ProductService, error) {
	defaultRate, err := decimal.NewFromString(paymentCfg.DefaultCommissionRate)
	if err != nil {
		return nil, fmt.Errorf("invalid default commission rate %q: %w", paymentCfg.DefaultCommissionRate, err)
	}
	if err := commission.ValidateRate(defaultRate); err != nil {
		return nil, fmt.Errorf("invalid default commission rate %q: %w", paymentCfg.DefaultCommissionRate, err)
	}
	return &ProductService{db: db, defaultRate: defaultRate}, nil
}

// Create makes a new listing in pending status, awaiting moderation.
func (s *ProductService) Create(sellerID uuid.UUID, req *CreateProductRequest) (*models.Product, error) {
	price, err := money.Parse(req.Price)
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, apierror.New(apierror.ErrInvalidPrice, "price must be greater than zero")
	}

	rate := s.defaultRate
	if req.CommissionRate != "" {
		parsed, err := decimal.NewFromString(req.CommissionRate)
		if err != nil {
			return nil, apierror.New(apierror.ErrInvalidRate, "commission rate must be a decimal number")
		}
		rate = parsed
	}
	if err := commission.ValidateRate(rate); err != nil {
		return nil, err
	}

	product := &models.Product{
		SellerID:       sellerID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Brand:          req.Brand,
		Size:           req.Size,
		Condition:      req.Condition,
		Price:          price,
		CommissionRate: rate,
		Images:         pq.StringArray(req.Images),
		Tags:           pq.StringArray(req.Tags),
		Status:         models.ProductStatusPending,
	}

	if err := s.db.Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// Update edits a listing that has not sold. Sold listings are frozen; the
// transaction carries its own snapshot anyway, but there is nothing
// legitimate to edit on a sold item.
func (s *ProductService) Update(productID, sellerID uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	product, err := s.Get(productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, apierror.New(apierror.ErrForbidden, "not your listing")
	}
	if product.Status == models.ProductStatusSold {
		return nil, apierror.New(apierror.ErrInvalidState, "sold listings cannot be edited")
	}

	if req.Title != nil {
		product.Title = *req.Title
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
	if req.Size != nil {
		product.Size = *req.Size
	}
	if req.Condition != nil {
		product.Condition = *req.Condition
	}
	if req.Price != nil {
		price, err := money.Parse(*req.Price)
		if err != nil {
			return nil, err
		}
		if !price.IsPositive() {
			return nil, apierror.New(apierror.ErrInvalidPrice, "price must be greater than zero")
		}
		product.Price = price
	}
	if req.Images != nil {
		product.Images = pq.StringArray(req.Images)
	}
	if req.Tags != nil {
		product.Tags = pq.StringArray(req.Tags)
	}

	// Edits to an active listing go back through moderation.
	if product.Status == models.ProductStatusActive {
		product.Status = models.ProductStatusPending
	}

	if err := s.db.Save(product).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// Approve moves a pending listing to active.
func (s *ProductService) Approve(productID uuid.UUID, actor Actor) (*models.Product, error) {
	return s.moderate(productID, actor, models.ProductStatusPending, models.ProductStatusActive)
}

// Reject declines a pending listing.
func (s *ProductService) Reject(productID uuid.UUID, actor Actor) (*models.Product, error) {
	return s.moderate(productID, actor, models.ProductStatusPending, models.ProductStatusRejected)
}

func (s *ProductService) moderate(productID uuid.UUID, actor Actor, from, to models.ProductStatus) (*models.Product, error) {
	if !actor.IsAdmin() {
		return nil, apierror.New(apierror.ErrForbidden, "listing moderation requires an admin")
	}

	product, err := s.Get(productID)
	if err != nil {
		return nil, err
	}

	res := s.db.Model(&models.Product{}).
		Where("id = ? AND status = ?", productID, from).
		Update("status", to)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update product status: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, apierror.NewWithDetails(apierror.ErrInvalidState,
			fmt.Sprintf("listing is %q, expected %q", product.Status, from),
			map[string]string{"status": string(product.Status)})
	}

	product.Status = to
	return product, nil
}

// Deactivate lets a seller pull their own listing off the market.
func (s *ProductService) Deactivate(productID, sellerID uuid.UUID) (*models.Product, error) {
	product, err := s.Get(productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, apierror.New(apierror.ErrForbidden, "not your listing")
	}

	res := s.db.Model(&models.Product{}).
		Where("id = ? AND status IN ?", productID,
			[]models.ProductStatus{models.ProductStatusActive, models.ProductStatusPending}).
		Update("status", models.ProductStatusInactive)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update product status: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, apierror.New(apierror.ErrInvalidState, "listing cannot be deactivated in its current status")
	}

	product.Status = models.ProductStatusInactive
	return product, nil
}

// Get returns a single product with its seller.
func (s *ProductService) Get(productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.Preload("Seller").First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.New(apierror.ErrNotFound, "product not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

// RecordView bumps the view counter without racing concurrent readers.
func (s *ProductService) RecordView(productID uuid.UUID) {
	s.db.Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
}

// Browse is the public catalogue: active listings only.
func (s *ProductService) Browse(params ProductSearchParams) ([]models.Product, int64, error) {
	query := s.db.Model(&models.Product{}).
		Where("status = ?", models.ProductStatusActive).
		Preload("Seller")

	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Brand != "" {
		query = query.Where("brand = ?", params.Brand)
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if params.MinPrice != "" {
		if min, err := money.Parse(params.MinPrice); err == nil {
			query = query.Where("price >= ?", min)
		}
	}
	if params.MaxPrice != "" {
		if max, err := money.Parse(params.MaxPrice); err == nil {
			query = query.Where("price <= ?", max)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "price", "view_count"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, total, nil
}

// ListForSeller returns the seller's own listings in every status.
func (s *ProductService) ListForSeller(sellerID uuid.UUID, params utils.PaginationParams) ([]models.Product, int64, error) {
	query := s.db.Model(&models.Product{}).Where("seller_id = ?", sellerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "price", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, total, nil
}

// ListPending is the moderation queue.
func (s *ProductService) ListPending(actor Actor, params utils.PaginationParams) ([]models.Product, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, apierror.New(apierror.ErrForbidden, "listing moderation requires an admin")
	}

	query := s.db.Model(&models.Product{}).
		Where("status = ?", models.ProductStatusPending).
		Preload("Seller")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at"})
	query = utils.ApplyPagination(query, params)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, total, nil
}
