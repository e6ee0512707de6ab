package waitlist

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

// Join adds the caller to a sold-out ticket type's queue.
// POST /events/:event_id/waitlist
func (c *Controller) Join(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	eventID, err := uuid.Parse(ctx.Param("event_id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	var request JoinWaitlistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	entry, err := c.service.Join(ctx.Request.Context(), userID, eventID, request)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Joined waitlist", ToWaitlistEntryResponse(entry), nil)
}

// Leave removes the caller from the queue.
// DELETE /events/:event_id/waitlist
func (c *Controller) Leave(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	ticketTypeID, err := uuid.Parse(ctx.Query("ticket_type_id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket type ID", nil, err.Error())
		return
	}

	if err := c.service.Leave(ctx.Request.Context(), userID, ticketTypeID); err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Left waitlist", nil, nil)
}

// GetPosition reports the caller's current place in the queue.
// GET /events/:event_id/waitlist/position
func (c *Controller) GetPosition(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	ticketTypeID, err := uuid.Parse(ctx.Query("ticket_type_id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket type ID", nil, err.Error())
		return
	}

	position, err := c.service.GetPosition(ctx.Request.Context(), userID, ticketTypeID)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Waitlist position retrieved", position, nil)
}
