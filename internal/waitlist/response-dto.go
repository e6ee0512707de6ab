package waitlist

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntryResponse is the API view of a queue entry.
type WaitlistEntryResponse struct {
	EventID          uuid.UUID  `json:"event_id"`
	TicketTypeID     uuid.UUID  `json:"ticket_type_id"`
	Position         int        `json:"position"`
	Quantity         int        `json:"quantity"`
	Status           Status     `json:"status"`
	JoinedAt         time.Time  `json:"joined_at"`
	NotifiedAt       *time.Time `json:"notified_at,omitempty"`
	ResponseDeadline *time.Time `json:"response_deadline,omitempty"`
}

// PositionResponse reports where the caller stands in the queue right now.
type PositionResponse struct {
	TicketTypeID     uuid.UUID  `json:"ticket_type_id"`
	Position         int64      `json:"position"`
	PeopleAhead      int64      `json:"people_ahead"`
	Status           Status     `json:"status"`
	ResponseDeadline *time.Time `json:"response_deadline,omitempty"`
}

func ToWaitlistEntryResponse(entry *WaitlistEntry) WaitlistEntryResponse {
	return WaitlistEntryResponse{
		EventID:          entry.EventID,
		TicketTypeID:     entry.TicketTypeID,
		Position:         entry.Position,
		Quantity:         entry.QuantityRequested,
		Status:           entry.Status,
		JoinedAt:         entry.JoinedAt,
		NotifiedAt:       entry.NotifiedAt,
		ResponseDeadline: entry.ResponseDeadline,
	}
}

func ToPositionResponse(entry *WaitlistEntry, ahead int64) PositionResponse {
	return PositionResponse{
		TicketTypeID:     entry.TicketTypeID,
		Position:         ahead + 1,
		PeopleAhead:      ahead,
		Status:           entry.Status,
		ResponseDeadline: entry.ResponseDeadline,
	}
}
