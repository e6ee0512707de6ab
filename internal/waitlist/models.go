package waitlist

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is a user's place in the queue for one sold-out ticket type.
// Position is assigned once at join time under the ticket-type row lock and
// never recomputed; the effective position shown to users is derived from the
// count of live entries ahead.
type WaitlistEntry struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_waitlist_user_ticket_type,where:status IN ('WAITING','NOTIFIED')"`
	EventID      uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	TicketTypeID uuid.UUID `json:"ticket_type_id" gorm:"type:uuid;not null;uniqueIndex:idx_waitlist_user_ticket_type,where:status IN ('WAITING','NOTIFIED');index"`

	Position          int    `json:"position" gorm:"not null;index"`
	QuantityRequested int    `json:"quantity_requested" gorm:"not null"`
	ContactEmail      string `json:"contact_email" gorm:"size:255;not null"`

	Status Status `json:"status" gorm:"type:varchar(20);not null;index"`

	JoinedAt         time.Time  `json:"joined_at" gorm:"not null"`
	NotifiedAt       *time.Time `json:"notified_at,omitempty"`
	ResponseDeadline *time.Time `json:"response_deadline,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (WaitlistEntry) TableName() string {
	return "waitlist_entries"
}

// IsLive reports whether the entry still occupies a place in the queue.
func (e *WaitlistEntry) IsLive() bool {
	return e.Status == StatusWaiting || e.Status == StatusNotified
}

// DeadlinePassed reports whether a notified entry's response window closed.
func (e *WaitlistEntry) DeadlinePassed(now time.Time) bool {
	return e.ResponseDeadline != nil && now.After(*e.ResponseDeadline)
}
