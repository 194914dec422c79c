// internal/handlers/transaction.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/closetloop/marketplace-backend/internal/services"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

type TransactionHandler struct {
	transactionService *services.TransactionService
	ledgerService      *services.LedgerService
	paymentService     *services.PaymentService
}

type initiateRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

func NewTransactionHandler(transactionService *services.TransactionService, ledgerService *services.LedgerService, paymentService *services.PaymentService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		ledgerService:      ledgerService,
		paymentService:     paymentService,
	}
}

// POST /transactions
func (h *TransactionHandler) Initiate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid input", err.Error())
		return
	}
	if req.ProductID == uuid.Nil {
		utils.BadRequestResponse(c, "product_id is required", nil)
		return
	}

	txn, err := h.transactionService.Initiate(req.ProductID, actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"transaction": txn})
}

// POST /products/:id/purchase
func (h *TransactionHandler) Purchase(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	productID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactionService.Initiate(productID, actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"transaction": txn})
}

// GET /transactions
func (h *TransactionHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	transactions, total, err := h.transactionService.ListForUser(actor.ID, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactionService.GetForActor(id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// POST /transactions/:id/payment
func (h *TransactionHandler) SubmitPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid input", err.Error())
		return
	}

	txn, err := h.transactionService.SubmitPayment(id, actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// POST /transactions/:id/payment-intent
func (h *TransactionHandler) CreatePaymentIntent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactionService.GetForActor(id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}
	if txn.BuyerID != actor.ID {
		utils.ForbiddenResponse(c, "only the buyer can open a card payment")
		return
	}

	intent, err := h.paymentService.CreatePaymentIntent(txn)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, intent)
}

// POST /transactions/:id/ship
func (h *TransactionHandler) MarkShipped(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	// Proof is optional on shipment; an empty body is fine.
	var req services.ShipRequest
	_ = c.ShouldBindJSON(&req)

	txn, err := h.transactionService.MarkShipped(id, actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// POST /transactions/:id/delivery
func (h *TransactionHandler) ConfirmDelivery(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.DeliveryRequest
	_ = c.ShouldBindJSON(&req)

	txn, err := h.transactionService.ConfirmDelivery(id, actor, &req)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// POST /transactions/:id/cancel
func (h *TransactionHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactionService.Cancel(id, actor)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": txn})
}

// GET /transactions/:id/commission
func (h *TransactionHandler) GetCommission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	// Scope check happens on the parent transaction.
	if _, err := h.transactionService.GetForActor(id, actor); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	record, err := h.ledgerService.GetByTransaction(id)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"commission_record": record})
}

// GET /earnings
func (h *TransactionHandler) Earnings(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	summary, err := h.ledgerService.SellerSummary(actor.ID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"earnings": summary})
}

// GET /earnings/records
func (h *TransactionHandler) EarningsRecords(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	records, total, err := h.ledgerService.ListForSeller(actor.ID, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(records, total, params)
	utils.PaginatedResponse(c, result)
}
