package bookings

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingResponse is the API view of a booking.
type BookingResponse struct {
	BookingRef    string    `json:"booking_reference"`
	Status        Status    `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	EventID   string `json:"event_id"`
	EventName string `json:"event_name,omitempty"`

	Items []BookingItemResponse `json:"items"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	ServiceFees    decimal.Decimal `json:"service_fees"`
	Tax            decimal.Decimal `json:"tax"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingItemResponse struct {
	TicketTypeID   string          `json:"ticket_type_id"`
	TicketTypeName string          `json:"ticket_type_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	SeatSection    string          `json:"seat_section,omitempty"`
}

// BookingListResponse wraps a paginated listing.
type BookingListResponse struct {
	Bookings   []BookingResponse `json:"bookings"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// ToBookingResponse flattens a booking row and its items.
func ToBookingResponse(booking *Booking) BookingResponse {
	items := make([]BookingItemResponse, 0, len(booking.Items))
	for _, item := range booking.Items {
		items = append(items, BookingItemResponse{
			TicketTypeID:   item.TicketTypeID.String(),
			TicketTypeName: item.TicketTypeName,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TotalPrice:     item.TotalPrice,
			SeatSection:    item.SeatSection,
		})
	}

	response := BookingResponse{
		BookingRef:     booking.BookingRef,
		Status:         booking.Status,
		PaymentStatus:  booking.PaymentStatus,
		EventID:        booking.EventID.String(),
		Items:          items,
		Subtotal:       booking.Subtotal,
		ServiceFees:    booking.ServiceFees,
		Tax:            booking.Tax,
		DiscountAmount: booking.DiscountAmount,
		TotalAmount:    booking.TotalAmount,
		Currency:       booking.Currency,
		ExpiresAt:      booking.ExpiresAt,
		CreatedAt:      booking.CreatedAt,
	}
	if booking.Event != nil {
		response.EventName = booking.Event.Name
	}
	return response
}

func ToBookingResponses(bookings []Booking) []BookingResponse {
	responses := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		responses = append(responses, ToBookingResponse(&bookings[i]))
	}
	return responses
}
