package users

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies what a user may do inside the booking flows. Account
// management itself lives in the external identity service; this module only
// reads the shared users table.
type Role string

const (
	RoleAttendee  Role = "ATTENDEE"
	RoleOrganizer Role = "ORGANIZER"
	RoleAdmin     Role = "ADMIN"
)

func IsValidRole(role string) bool {
	switch role {
	case string(RoleAttendee), string(RoleOrganizer), string(RoleAdmin):
		return true
	default:
		return false
	}
}

type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:uuid_generate_v4()"`
	FirstName string    `json:"first_name" gorm:"not null"`
	LastName  string    `json:"last_name" gorm:"not null"`
	Password  string    `json:"-" gorm:"not null"` // hash written by the identity service
	Role      Role      `json:"role" gorm:"not null;default:'ATTENDEE'"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Phone     string    `json:"phone" gorm:"size:20"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// FullName joins first and last name for notification payloads
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
