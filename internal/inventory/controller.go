package inventory

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

// GetTicketType returns the catalog view of a single ticket type.
// GET /ticket-types/:id
func (c *Controller) GetTicketType(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket type ID", nil, nil)
		return
	}

	ticketType, err := c.service.GetTicketType(ctx.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket type retrieved", ticketType, nil)
}

// GetAvailability returns live availability counters for a ticket type.
// Served from a short-TTL cache so hot events do not hammer the ledger row.
// GET /ticket-types/:id/availability
func (c *Controller) GetAvailability(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket type ID", nil, nil)
		return
	}

	availability, err := c.service.GetAvailability(ctx.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved", availability, nil)
}

// GetEventTicketTypes lists every ticket type for an event with current
// prices and availability.
// GET /events/:event_id/ticket-types
func (c *Controller) GetEventTicketTypes(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("event_id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	ticketTypes, err := c.service.GetEventTicketTypes(ctx.Request.Context(), eventID)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket types retrieved", ticketTypes, nil)
}
