// internal/handlers/upload.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/closetloop/marketplace-backend/internal/services"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

type UploadHandler struct {
	storageService *services.StorageService
}

func NewUploadHandler(storageService *services.StorageService) *UploadHandler {
	return &UploadHandler{storageService: storageService}
}

// POST /uploads/:category
// Accepts multipart form field "file". Category is one of the proof
// categories or "listing".
func (h *UploadHandler) Upload(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		return
	}

	category := c.Param("category")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "file is required", err.Error())
		return
	}
	defer file.Close()

	if category == services.CategoryListingImage {
		if err := h.storageService.ValidateImage(file); err != nil {
			utils.ServiceErrorResponse(c, err)
			return
		}
	}

	result, err := h.storageService.UploadProof(file, header, category)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, result)
}

// GET /admin/proofs/url?key=...
// Returns a short-lived presigned URL for reviewing an evidence file.
func (h *UploadHandler) ProofURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		utils.BadRequestResponse(c, "key is required", nil)
		return
	}

	url, err := h.storageService.ProofURL(key, 15*time.Minute)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"url": url, "expires_in": int((15 * time.Minute).Seconds())})
}
