package waitlist

import "github.com/google/uuid"

// JoinWaitlistRequest enqueues the caller for a sold-out ticket type.
type JoinWaitlistRequest struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id" binding:"required"`
	Quantity     int       `json:"quantity" binding:"required,min=1,max=10"`
	ContactEmail string    `json:"contact_email" binding:"required,email"`
}
