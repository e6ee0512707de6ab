package pricing

import (
	"net/http"

	"ticketflow/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{
		service: service,
	}
}

// ValidateDiscount previews a discount code for the authenticated user.
// POST /discounts/validate
func (c *Controller) ValidateDiscount(ctx *gin.Context) {
	var request ValidateDiscountRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	userIDStr, exists := ctx.Get("user_id")
	if !exists {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}
	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid user ID", nil, nil)
		return
	}

	preview, err := c.service.ValidateDiscount(ctx.Request.Context(), userID, request)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Discount code is valid", preview, nil)
}
