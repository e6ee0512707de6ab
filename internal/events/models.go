package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a read model over the catalog service's events table. Catalog CRUD
// lives elsewhere; the booking core only needs identity, ownership, status
// and the start/end window that gates check-in and refunds.
type Event struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name        string    `json:"name" gorm:"not null;size:255"`
	Description string    `json:"description" gorm:"type:text"`
	Venue       string    `json:"venue" gorm:"not null;size:255"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	Status      Status    `json:"status" gorm:"type:varchar(20);default:'DRAFT'"`
	OrganizerID uuid.UUID `json:"organizer_id" gorm:"type:uuid;not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}

// CheckInOpensAt returns the earliest moment gate check-in is allowed.
func (e *Event) CheckInOpensAt() time.Time {
	return e.StartDate.Add(-2 * time.Hour)
}

// HasStarted reports whether the event start has passed.
func (e *Event) HasStarted(now time.Time) bool {
	return !now.Before(e.StartDate)
}

// HasEnded reports whether the event end has passed.
func (e *Event) HasEnded(now time.Time) bool {
	return now.After(e.EndDate)
}

// IsBookable reports whether bookings may be taken against the event.
func (e *Event) IsBookable(now time.Time) bool {
	return e.Status == StatusPublished && !e.HasEnded(now)
}
