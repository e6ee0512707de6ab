package tickets

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketResponse is the API view of a ticket instance.
type TicketResponse struct {
	TicketCode string `json:"ticket_code"`
	BookingRef string `json:"booking_reference"`
	EventID    string `json:"event_id"`
	Status     Status `json:"status"`

	TicketTypeName string `json:"ticket_type_name"`
	HolderName     string `json:"holder_name,omitempty"`
	HolderEmail    string `json:"holder_email"`

	UnitPrice  decimal.Decimal `json:"unit_price"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Tax        decimal.Decimal `json:"tax"`

	SeatSection string `json:"seat_section,omitempty"`
	SeatNumber  string `json:"seat_number,omitempty"`

	CheckedIn         bool       `json:"checked_in"`
	CheckedInAt       *time.Time `json:"checked_in_at,omitempty"`
	CheckedInLocation string     `json:"checked_in_location,omitempty"`

	TransferCount int       `json:"transfer_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// TicketListResponse wraps a paginated listing.
type TicketListResponse struct {
	Tickets    []TicketResponse `json:"tickets"`
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
}

type TransferResponse struct {
	FromEmail     string          `json:"from_email"`
	ToEmail       string          `json:"to_email"`
	TransferFee   decimal.Decimal `json:"transfer_fee"`
	TransferredBy string          `json:"transferred_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RefundRequestedResponse acknowledges a per-ticket refund request.
type RefundRequestedResponse struct {
	TicketCode      string `json:"ticket_code"`
	RefundReference string `json:"refund_reference"`
}

func ToTicketResponse(ticket *Ticket) TicketResponse {
	return TicketResponse{
		TicketCode:        ticket.TicketCode,
		BookingRef:        ticket.BookingRef,
		EventID:           ticket.EventID.String(),
		Status:            ticket.Status,
		TicketTypeName:    ticket.TicketTypeName,
		HolderName:        ticket.HolderName,
		HolderEmail:       ticket.HolderEmail,
		UnitPrice:         ticket.UnitPrice,
		ServiceFee:        ticket.ServiceFee,
		Tax:               ticket.Tax,
		SeatSection:       ticket.SeatSection,
		SeatNumber:        ticket.SeatNumber,
		CheckedIn:         ticket.CheckedIn,
		CheckedInAt:       ticket.CheckedInAt,
		CheckedInLocation: ticket.CheckedInLocation,
		TransferCount:     ticket.TransferCount,
		CreatedAt:         ticket.CreatedAt,
	}
}

func ToTicketResponses(tickets []Ticket) []TicketResponse {
	responses := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		responses = append(responses, ToTicketResponse(&tickets[i]))
	}
	return responses
}

func ToTransferResponses(transfers []TicketTransfer) []TransferResponse {
	responses := make([]TransferResponse, 0, len(transfers))
	for _, transfer := range transfers {
		responses = append(responses, TransferResponse{
			FromEmail:     transfer.FromEmail,
			ToEmail:       transfer.ToEmail,
			TransferFee:   transfer.TransferFee,
			TransferredBy: transfer.TransferredBy,
			CreatedAt:     transfer.CreatedAt,
		})
	}
	return responses
}
