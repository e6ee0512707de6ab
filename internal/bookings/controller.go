package bookings

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

// currentUser pulls the authenticated identity that the JWT middleware set.
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

// CreateBooking is the checkout endpoint.
// POST /bookings
func (c *Controller) CreateBooking(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var request CreateBookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	booking, err := c.service.Create(ctx.Request.Context(), userID, request)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking created", ToBookingResponse(booking), nil)
}

// GetBookings lists the authenticated user's bookings.
// GET /bookings
func (c *Controller) GetBookings(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var query ListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	bookings, totalCount, err := c.service.GetUserBookings(ctx.Request.Context(), userID, query)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved", BookingListResponse{
		Bookings:   ToBookingResponses(bookings),
		TotalCount: totalCount,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: CalculateTotalPages(totalCount, query.Limit),
	}, nil)
}

// GetBooking returns one booking by reference.
// GET /bookings/:reference
func (c *Controller) GetBooking(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	booking, err := c.service.GetBooking(ctx.Request.Context(), userID, role, ctx.Param("reference"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved", ToBookingResponse(booking), nil)
}

// ConfirmBooking moves a pending booking to confirmed.
// POST /bookings/:reference/confirm
func (c *Controller) ConfirmBooking(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	reference := ctx.Param("reference")
	if _, err := c.service.GetBooking(ctx.Request.Context(), userID, role, reference); err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	booking, err := c.service.Confirm(ctx.Request.Context(), reference, userID.String())
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking confirmed", ToBookingResponse(booking), nil)
}

// CancelBooking cancels a booking the caller owns.
// POST /bookings/:reference/cancel
func (c *Controller) CancelBooking(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var request CancelBookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	reference := ctx.Param("reference")
	if _, err := c.service.GetBooking(ctx.Request.Context(), userID, role, reference); err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	booking, err := c.service.Cancel(ctx.Request.Context(), reference, userID.String(), request.Reason)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking cancelled", ToBookingResponse(booking), nil)
}

// GetBookingHistory returns the immutable transition audit trail.
// GET /bookings/:reference/history
func (c *Controller) GetBookingHistory(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	history, err := c.service.GetHistory(ctx.Request.Context(), userID, role, ctx.Param("reference"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking history retrieved", history, nil)
}
