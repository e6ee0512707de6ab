package bookings

import (
	"ticketflow/internal/pricing"

	"github.com/google/uuid"
)

// CreateBookingRequest is the checkout payload.
type CreateBookingRequest struct {
	EventID      uuid.UUID              `json:"event_id" binding:"required"`
	Items        []pricing.RequestedItem `json:"items" binding:"required,min=1,dive"`
	DiscountCode string                 `json:"discount_code,omitempty"`

	ContactName    string `json:"contact_name,omitempty"`
	ContactEmail   string `json:"contact_email" binding:"required,email"`
	ContactPhone   string `json:"contact_phone,omitempty"`
	BillingAddress string `json:"billing_address,omitempty"`
}

// CancelBookingRequest carries the caller's stated reason.
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}
