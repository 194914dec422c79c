// internal/handlers/admin.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/closetloop/marketplace-backend/internal/models"
	"github.com/closetloop/marketplace-backend/internal/services"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

// AdminHandler fronts the operator console: payment verification, escrow
// collection, completion, refunds, payouts, and ledger settlement.
type AdminHandler struct {
	transactionService *services.TransactionService
	ledgerService      *services.LedgerService
	payoutService      *services.PayoutService
	productService     *services.ProductService
}

type collectPaymentRequest struct {
	Reference string `json:"reference,omitempty"`
}

func NewAdminHandler(transactionService *services.TransactionService, ledgerService *services.LedgerService, payoutService *services.PayoutService, productService *services.ProductService) *AdminHandler {
	return &AdminHandler{
		transactionService: transactionService,
		ledgerService:      ledgerService,
		payoutService:      payoutService,
		productService:     productService,
	}
}

// GET /admin/transactions
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.TransactionStatus(c.Query("status"))

	transactions, total, err := h.transactionService.ListByStatus(status, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/transactions/:id/verify-payment
func (h *AdminHandler) VerifyPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactionService.VerifyPayment(id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// POST /admin/transactions/:id/collect
func (h *AdminHandler) CollectPlatformPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req collectPaymentRequest
	_ = c.ShouldBindJSON(&req)

	txn, err := h.transactionService.CollectPlatformPayment(id, actor, req.Reference)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// POST /admin/transactions/:id/complete
func (h *AdminHandler) CompleteTransaction(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactionService.Complete(id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// POST /admin/transactions/:id/refund
func (h *AdminHandler) RefundTransaction(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid input", err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	txn, err := h.transactionService.Refund(id, actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// POST /admin/transactions/:id/payout
func (h *AdminHandler) RecordPayout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.RecordPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid input", err.Error())
		return
	}

	txn, err := h.payoutService.RecordSellerPayout(id, actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// GET /admin/payouts/due
func (h *AdminHandler) DuePayouts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	transactions, total, err := h.payoutService.DuePayouts(time.Now(), params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/commissions/:id/settle
func (h *AdminHandler) SettleCommission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	record, err := h.ledgerService.MarkPaid(id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"commission_record": record})
}

// GET /admin/revenue
func (h *AdminHandler) Revenue(c *gin.Context) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	records, sum, total, err := h.ledgerService.PaidBetween(from, to, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	liability, liabilityCount, err := h.payoutService.OutstandingLiability()
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, gin.H{
		"records":               records,
		"commission_paid_total": sum,
		"outstanding_liability": gin.H{
			"amount": liability,
			"count":  liabilityCount,
		},
	}, gin.H{
		"from":  from,
		"to":    to,
		"total": total,
	})
}

// GET /admin/products/pending
func (h *AdminHandler) PendingProducts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	products, total, err := h.productService.ListPending(actor, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(products, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/products/:id/approve
func (h *AdminHandler) ApproveProduct(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.Approve(id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// POST /admin/products/:id/reject
func (h *AdminHandler) RejectProduct(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.Reject(id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// parseDateRange reads from/to query params as YYYY-MM-DD, defaulting to
// the current month.
func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.BadRequestResponse(c, "invalid from date, expected YYYY-MM-DD", nil)
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.BadRequestResponse(c, "invalid to date, expected YYYY-MM-DD", nil)
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}
	return from, to, true
}
