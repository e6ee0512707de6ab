package bookings

import (
	"time"

	"ticketflow/internal/events"
	"ticketflow/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking is one checkout transaction. Totals are captured at creation time
// and never recomputed; total_amount = max(0, subtotal - discount) + fees + tax.
type Booking struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingRef string    `gorm:"uniqueIndex;not null;size:20" json:"booking_ref"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	EventID    uuid.UUID `gorm:"type:uuid;index;not null" json:"event_id"`

	Status        Status        `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"payment_status"`

	ContactName    string `gorm:"size:255" json:"contact_name"`
	ContactEmail   string `gorm:"size:255;not null" json:"contact_email"`
	ContactPhone   string `gorm:"size:20" json:"contact_phone,omitempty"`
	BillingAddress string `gorm:"type:text" json:"billing_address,omitempty"`

	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ServiceFees    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"service_fees"`
	Tax            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"tax"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Currency       string          `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`

	DiscountCodeID *uuid.UUID `gorm:"type:uuid" json:"discount_code_id,omitempty"`

	ExpiresAt          time.Time  `gorm:"not null;index" json:"expires_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        string     `gorm:"size:100" json:"cancelled_by,omitempty"`
	CancellationReason string     `gorm:"type:text" json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []BookingItem `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	User  *users.User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Event *events.Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

// IsExpiredAt reports whether the expiry sweep should pick this booking up.
func (b *Booking) IsExpiredAt(now time.Time) bool {
	return b.Status == StatusPending &&
		b.PaymentStatus == PaymentStatusPending &&
		now.After(b.ExpiresAt)
}

func (b *Booking) IsPaid() bool {
	return b.Status == StatusPaid
}

func (b *Booking) IsTerminal() bool {
	return b.Status.IsTerminal()
}

// HoldsReservedInventory reports whether the booking's quantities still sit
// in reserved_count (not yet committed by a payment).
func (b *Booking) HoldsReservedInventory() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// BookingItem is one (ticket type, quantity) line. Prices are snapshots from
// quote time; catalog changes after creation never alter them.
// total_price = unit_price * quantity.
type BookingItem struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID      uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_booking_ticket_type" json:"booking_id"`
	TicketTypeID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_booking_ticket_type" json:"ticket_type_id"`
	TicketTypeName string    `gorm:"size:255;not null" json:"ticket_type_name"`

	Quantity       int             `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	UnitServiceFee decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"unit_service_fee"`
	UnitTax        decimal.Decimal `gorm:"type:numeric(12,4);not null;default:0" json:"unit_tax"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`

	SeatSection string `gorm:"size:100" json:"seat_section,omitempty"`

	// TicketsIssued is the issuance idempotence guard: issuing for an item
	// that already has it set is a no-op.
	TicketsIssued bool `gorm:"not null;default:false" json:"tickets_issued"`

	CreatedAt time.Time `json:"created_at"`
}

func (BookingItem) TableName() string {
	return "booking_items"
}

// BookingStatusHistory is the immutable audit trail: one row per transition,
// never updated or deleted.
type BookingStatusHistory struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID      uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`
	PreviousStatus Status    `gorm:"type:varchar(20);not null" json:"previous_status"`
	NewStatus      Status    `gorm:"type:varchar(20);not null" json:"new_status"`
	ChangedBy      string    `gorm:"size:100;not null" json:"changed_by"`
	IsAutomated    bool      `gorm:"not null;default:false" json:"is_automated"`
	Reason         string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (BookingStatusHistory) TableName() string {
	return "booking_status_history"
}
