// internal/handlers/common.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/closetloop/marketplace-backend/internal/models"
	"github.com/closetloop/marketplace-backend/internal/services"
	"github.com/closetloop/marketplace-backend/internal/utils"
)

// actorFromContext reconstructs the authenticated actor the middleware put
// in the context. ok is false when the request is unauthenticated or the
// claims are malformed; callers should have already responded in that case.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return services.Actor{}, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "invalid user identity")
		return services.Actor{}, false
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	return services.Actor{ID: userID, Type: models.UserType(userType)}, true
}

// pathUUID parses a :id style path parameter, responding 400 on garbage.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
