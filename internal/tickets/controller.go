package tickets

import (
	"net/http"
	"strconv"

	"ticketflow/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
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

// GetTickets lists the authenticated user's tickets.
// GET /tickets
func (c *Controller) GetTickets(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	tickets, totalCount, err := c.service.GetUserTickets(ctx.Request.Context(), userID, page, limit)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Tickets retrieved", TicketListResponse{
		Tickets:    ToTicketResponses(tickets),
		TotalCount: totalCount,
		Page:       page,
		Limit:      limit,
	}, nil)
}

// GetTicket returns one ticket by code.
// GET /tickets/:code
func (c *Controller) GetTicket(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	ticket, err := c.service.GetTicket(ctx.Request.Context(), userID, role, ctx.Param("code"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket retrieved", ToTicketResponse(ticket), nil)
}

// CheckIn admits a ticket at the gate.
// POST /tickets/:code/check-in
func (c *Controller) CheckIn(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var request CheckInRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	ticket, err := c.service.CheckIn(ctx.Request.Context(), ctx.Param("code"), request.Location, userID.String())
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket checked in", ToTicketResponse(ticket), nil)
}

// Transfer hands the ticket to a new holder.
// POST /tickets/:code/transfer
func (c *Controller) Transfer(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var request TransferRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	ticket, err := c.service.Transfer(ctx.Request.Context(), userID, role, ctx.Param("code"), request)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket transferred", ToTicketResponse(ticket), nil)
}

// RefundTicket opens a per-ticket refund.
// POST /tickets/:code/refund
func (c *Controller) RefundTicket(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var request TicketRefundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		response.RespondBindingError(ctx, err)
		return
	}

	code := ctx.Param("code")
	refundRef, err := c.service.RefundTicket(ctx.Request.Context(), userID, role, code, request)
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusAccepted, "Refund requested", RefundRequestedResponse{
		TicketCode:      code,
		RefundReference: refundRef,
	}, nil)
}

// GetTransfers returns the ticket's transfer history.
// GET /tickets/:code/transfers
func (c *Controller) GetTransfers(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	transfers, err := c.service.GetTransfers(ctx.Request.Context(), userID, role, ctx.Param("code"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Transfers retrieved", ToTransferResponses(transfers), nil)
}

// GetQR renders the ticket's persisted QR payload as a PNG.
// GET /tickets/:code/qr
func (c *Controller) GetQR(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	payload, err := c.service.QRPayload(ctx.Request.Context(), userID, role, ctx.Param("code"))
	if err != nil {
		response.RespondDomainError(ctx, err)
		return
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to render QR code", nil, err.Error())
		return
	}

	ctx.Data(http.StatusOK, "image/png", png)
}
