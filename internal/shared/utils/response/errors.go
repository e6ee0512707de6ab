package response

import (
	"errors"
	"net/http"

	"ticketflow/internal/shared/apperrors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RespondDomainError maps the shared error taxonomy onto HTTP responses.
// Every rejection carries a machine-readable reason in the errors payload so
// clients can distinguish "only 3 tickets left" from "discount code expired".
func RespondDomainError(c *gin.Context, err error) {
	var (
		validation *apperrors.ValidationError
		inventory  *apperrors.InsufficientInventoryError
		transition *apperrors.InvalidStateTransitionError
		discount   *apperrors.DiscountInvalidError
		checkIn    *apperrors.CheckInError
		transfer   *apperrors.TransferError
		refund     *apperrors.RefundNotAllowedError
		gateway    *apperrors.PaymentGatewayError
		notFound   *apperrors.NotFoundError
	)

	switch {
	case errors.As(err, &validation):
		RespondJSON(c, "error", http.StatusBadRequest, validation.Message, nil, validation.Fields)

	case errors.As(err, &inventory):
		RespondJSON(c, "error", http.StatusBadRequest, inventory.Error(), nil, gin.H{
			"reason":         "insufficient_inventory",
			"ticket_type_id": inventory.TicketTypeID,
			"requested":      inventory.Requested,
			"available":      inventory.Available,
		})

	case errors.As(err, &discount):
		RespondJSON(c, "error", http.StatusBadRequest, discount.Error(), nil, gin.H{
			"reason": discount.Reason,
			"code":   discount.Code,
		})

	case errors.As(err, &transition):
		RespondJSON(c, "error", http.StatusConflict, transition.Error(), nil, gin.H{
			"reason": "invalid_state_transition",
			"entity": transition.Entity,
			"from":   transition.From,
			"to":     transition.To,
		})

	case errors.As(err, &checkIn):
		RespondJSON(c, "error", http.StatusConflict, checkIn.Error(), nil, gin.H{
			"reason":      checkIn.Reason,
			"ticket_code": checkIn.TicketCode,
		})

	case errors.As(err, &transfer):
		RespondJSON(c, "error", http.StatusConflict, transfer.Error(), nil, gin.H{
			"reason":      transfer.Reason,
			"ticket_code": transfer.TicketCode,
		})

	case errors.As(err, &refund):
		RespondJSON(c, "error", http.StatusConflict, refund.Error(), nil, gin.H{
			"reason":      refund.Reason,
			"ticket_code": refund.TicketCode,
		})

	case errors.As(err, &gateway):
		RespondJSON(c, "error", http.StatusBadGateway, gateway.Error(), nil, gin.H{
			"reason":  "gateway_error",
			"gateway": gateway.Gateway,
		})

	case errors.As(err, &notFound):
		RespondJSON(c, "error", http.StatusNotFound, notFound.Error(), nil, nil)

	case errors.Is(err, gorm.ErrRecordNotFound):
		RespondJSON(c, "error", http.StatusNotFound, "resource not found", nil, nil)

	default:
		RespondJSON(c, "error", http.StatusInternalServerError, "internal server error", nil, nil)
	}
}
