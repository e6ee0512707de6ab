package tickets

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ticket is one admission instance materialized from a paid booking item.
// Price fields are snapshots from the booking line; catalog changes after
// issuance never alter them.
type Ticket struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TicketCode string    `gorm:"uniqueIndex;not null;size:30" json:"ticket_code"`

	BookingID     uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`
	BookingItemID uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_item_id"`
	BookingRef    string    `gorm:"not null;size:20" json:"booking_reference"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`

	TicketTypeID   uuid.UUID `gorm:"type:uuid;not null;index" json:"ticket_type_id"`
	TicketTypeName string    `gorm:"size:255;not null" json:"ticket_type_name"`

	// OwnerUserID is the purchasing account; the holder fields track who the
	// ticket currently admits, which diverges after a transfer.
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	HolderName  string    `gorm:"size:255" json:"holder_name"`
	HolderEmail string    `gorm:"size:255;not null" json:"holder_email"`

	UnitPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	ServiceFee decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"service_fee"`
	Tax        decimal.Decimal `gorm:"type:numeric(12,4);not null;default:0" json:"tax"`

	SeatSection string `gorm:"size:100" json:"seat_section,omitempty"`
	SeatNumber  string `gorm:"size:20" json:"seat_number,omitempty"`

	Status Status `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`

	CheckedIn         bool       `gorm:"not null;default:false" json:"checked_in"`
	CheckedInAt       *time.Time `json:"checked_in_at,omitempty"`
	CheckedInLocation string     `gorm:"size:255" json:"checked_in_location,omitempty"`
	CheckedInBy       string     `gorm:"size:100" json:"checked_in_by,omitempty"`

	TransferCount int `gorm:"not null;default:0" json:"transfer_count"`

	// QRPayload is the JSON the gate scanner decodes; persisted so reprints
	// always carry identical content.
	QRPayload string `gorm:"type:text;not null" json:"-"`

	CancellationReason string `gorm:"type:text" json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// FaceValue is what a default per-ticket refund returns: unit price plus its
// share of fees and tax.
func (t *Ticket) FaceValue() decimal.Decimal {
	return t.UnitPrice.Add(t.ServiceFee).Add(t.Tax).Round(2)
}

// IsCheckInable reports whether the gate can still accept this ticket; the
// event window check is the service's job.
func (t *Ticket) IsCheckInable() bool {
	return t.Status == StatusActive && !t.CheckedIn
}

// TicketTransfer is the immutable record of one ownership hand-off.
type TicketTransfer struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TicketID uuid.UUID `gorm:"type:uuid;not null;index" json:"ticket_id"`

	FromName  string `gorm:"size:255" json:"from_name"`
	FromEmail string `gorm:"size:255;not null" json:"from_email"`
	ToName    string `gorm:"size:255" json:"to_name"`
	ToEmail   string `gorm:"size:255;not null" json:"to_email"`

	TransferFee   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"transfer_fee"`
	TransferredBy string          `gorm:"size:100;not null" json:"transferred_by"`

	CreatedAt time.Time `json:"created_at"`
}

func (TicketTransfer) TableName() string {
	return "ticket_transfers"
}
