package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event routed to the notification pipeline.
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingPaid      EventType = "booking.paid"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingExpired   EventType = "booking.expired"

	EventPaymentCompleted  EventType = "payment.completed"
	EventPaymentFailed     EventType = "payment.failed"
	EventRefundCompleted   EventType = "payment.refund_completed"
	EventSettlementCreated EventType = "payment.settlement_created"

	EventTicketsIssued     EventType = "ticket.issued"
	EventTicketCheckedIn   EventType = "ticket.checked_in"
	EventTicketTransferred EventType = "ticket.transferred"

	EventWaitlistJoined   EventType = "waitlist.joined"
	EventWaitlistNotified EventType = "waitlist.capacity_available"
)

// Kafka topics, one per owning subsystem. Delivery (email/SMS/push) is an
// external consumer's job; publishing the event is where this system's
// responsibility ends.
const (
	TopicBookingEvents  = "booking-events"
	TopicPaymentEvents  = "payment-events"
	TopicTicketEvents   = "ticket-events"
	TopicWaitlistEvents = "waitlist-events"
)

var eventTopics = map[EventType]string{
	EventBookingCreated:   TopicBookingEvents,
	EventBookingConfirmed: TopicBookingEvents,
	EventBookingPaid:      TopicBookingEvents,
	EventBookingCancelled: TopicBookingEvents,
	EventBookingExpired:   TopicBookingEvents,

	EventPaymentCompleted:  TopicPaymentEvents,
	EventPaymentFailed:     TopicPaymentEvents,
	EventRefundCompleted:   TopicPaymentEvents,
	EventSettlementCreated: TopicPaymentEvents,

	EventTicketsIssued:     TopicTicketEvents,
	EventTicketCheckedIn:   TopicTicketEvents,
	EventTicketTransferred: TopicTicketEvents,

	EventWaitlistJoined:   TopicWaitlistEvents,
	EventWaitlistNotified: TopicWaitlistEvents,
}

// Topic returns the Kafka topic this event type is routed to.
func (t EventType) Topic() string {
	if topic, ok := eventTopics[t]; ok {
		return topic
	}
	return TopicBookingEvents
}

// Event is the envelope published for every domain occurrence that an
// external notification consumer may act on.
type Event struct {
	ID             string                 `json:"id"`
	Type           EventType              `json:"type"`
	Subject        string                 `json:"subject"`
	RecipientEmail string                 `json:"recipient_email,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
}

// NewEvent builds an event envelope. The subject (booking reference,
// transaction reference, ticket code, ticket type id) doubles as the
// partition key so events about the same entity stay ordered.
func NewEvent(eventType EventType, subject string, data map[string]interface{}) *Event {
	return &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Subject:    subject,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

// WithRecipient attaches the delivery address for the external consumer.
func (e *Event) WithRecipient(email string) *Event {
	e.RecipientEmail = email
	return e
}

// PartitionKey keeps events for the same subject on one partition.
func (e *Event) PartitionKey() string {
	if e.Subject != "" {
		return e.Subject
	}
	return e.ID
}

func (e *Event) ToJSON() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}
