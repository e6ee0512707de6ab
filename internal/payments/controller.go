package payments

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

func currentUser(ctx *gin.Context) (uuid.UUID, string, bool) {
	userIDValue, exists := ctx.Get("user_id")
	if !exists {
		return uuid.Nil, "", false
	}
	userIDStr, ok := userIDValue.(string)
	if !ok {
		return uuid.Nil, "", false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, "", false
	}

	role := ""
	if roleValue, exists := ctx.Get("user_role"); exists {
		role, _ = roleValue.(string)
	}
	return userID, role, true
}

// InitiatePayment opens the payment for a pending booking.
// POST /payments/initiate
func (c *Controller) InitiatePayment(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var request InitiatePaymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	payment, err := c.service.Initiate(ctx.Request.Context(), userID, role, request)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Payment initiated", ToPaymentResponse(payment), nil)
}

// GetPayment returns one payment by transaction reference.
// GET /payments/:reference
func (c *Controller) GetPayment(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	payment, err := c.service.GetPayment(ctx.Request.Context(), userID, role, ctx.Param("reference"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment retrieved", ToPaymentResponse(payment), nil)
}

// HandleWebhook receives gateway callbacks. No authentication: gateways sign
// their callbacks and the handler is idempotent, so replays are harmless.
// POST /payments/webhook
func (c *Controller) HandleWebhook(ctx *gin.Context) {
	var request WebhookRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	if err := c.service.HandleWebhook(ctx.Request.Context(), request); err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Webhook processed", nil, nil)
}

// RetryPayment re-opens a failed payment while attempts remain.
// POST /payments/:reference/retry
func (c *Controller) RetryPayment(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	payment, err := c.service.Retry(ctx.Request.Context(), userID, role, ctx.Param("reference"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment retry opened", ToPaymentResponse(payment), nil)
}

// ProcessRefund opens a refund against a completed payment.
// POST /payments/:reference/refund
func (c *Controller) ProcessRefund(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var request RefundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	refund, err := c.service.ProcessRefund(ctx.Request.Context(), userID.String(), ctx.Param("reference"), request)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Refund requested", ToRefundResponse(refund), nil)
}

// CompleteRefund marks a refund as processed by the gateway.
// POST /refunds/:reference/complete
func (c *Controller) CompleteRefund(ctx *gin.Context) {
	refund, err := c.service.CompleteRefund(ctx.Request.Context(), ctx.Param("reference"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Refund completed", ToRefundResponse(refund), nil)
}

// FailRefund marks a refund as rejected by the gateway.
// POST /refunds/:reference/fail
func (c *Controller) FailRefund(ctx *gin.Context) {
	var request FailRefundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	refund, err := c.service.FailRefund(ctx.Request.Context(), ctx.Param("reference"), request.Reason)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Refund marked failed", ToRefundResponse(refund), nil)
}

// SettlePayment transfers a completed payment's net proceeds to the organizer.
// POST /payments/:reference/settle
func (c *Controller) SettlePayment(ctx *gin.Context) {
	settlement, err := c.service.SettleToOrganizer(ctx.Request.Context(), ctx.Param("reference"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Payment settled", ToSettlementResponse(settlement), nil)
}
