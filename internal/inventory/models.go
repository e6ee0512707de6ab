package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus is derived from the quantity counters and the sale window at
// read time. It is never stored, so it cannot go stale.
type SaleStatus string

const (
	SaleStatusUpcoming SaleStatus = "UPCOMING"
	SaleStatusOnSale   SaleStatus = "ON_SALE"
	SaleStatusSoldOut  SaleStatus = "SOLD_OUT"
	SaleStatusEnded    SaleStatus = "ENDED"
)

// TicketType is a purchasable category for an event. The quantity counters
// (sold_count, reserved_count) are mutated exclusively through the ledger
// operations in this package so the availability invariant holds under
// concurrent checkouts.
type TicketType struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	EventID     uuid.UUID `json:"event_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"not null;size:255"`
	Description string    `json:"description" gorm:"type:text"`

	Quantity      int `json:"quantity" gorm:"not null"`
	SoldCount     int `json:"sold_count" gorm:"not null;default:0"`
	ReservedCount int `json:"reserved_count" gorm:"not null;default:0"`

	Price          decimal.Decimal  `json:"price" gorm:"type:numeric(12,2);not null"`
	EarlyBirdPrice *decimal.Decimal `json:"early_bird_price,omitempty" gorm:"type:numeric(12,2)"`
	EarlyBirdUntil *time.Time       `json:"early_bird_until,omitempty"`
	ServiceFee     decimal.Decimal  `json:"service_fee" gorm:"type:numeric(12,2);not null;default:0"`
	TaxPercentage  decimal.Decimal  `json:"tax_percentage" gorm:"type:numeric(5,2);not null;default:0"`

	MinPurchase int `json:"min_purchase" gorm:"not null;default:1"`
	MaxPurchase int `json:"max_purchase" gorm:"not null;default:10"`

	IsRefundable   bool `json:"is_refundable" gorm:"not null;default:true"`
	IsTransferable bool `json:"is_transferable" gorm:"not null;default:true"`

	SaleStart      time.Time  `json:"sale_start" gorm:"not null"`
	SaleEnd        time.Time  `json:"sale_end" gorm:"not null"`
	RefundDeadline *time.Time `json:"refund_deadline,omitempty"`
	SeatSection    string     `json:"seat_section,omitempty" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TicketType) TableName() string {
	return "ticket_types"
}

// Available returns quantity - sold - reserved, floored at zero.
func (t *TicketType) Available() int {
	available := t.Quantity - t.SoldCount - t.ReservedCount
	if available < 0 {
		return 0
	}
	return available
}

// CurrentPrice resolves the unit price at the given instant, using the
// early-bird price while the early-bird window is open.
func (t *TicketType) CurrentPrice(at time.Time) decimal.Decimal {
	if t.EarlyBirdPrice != nil && t.EarlyBirdUntil != nil && !at.After(*t.EarlyBirdUntil) {
		return *t.EarlyBirdPrice
	}
	return t.Price
}

// SaleStatusAt derives the sale status from the counters and sale window.
func (t *TicketType) SaleStatusAt(at time.Time) SaleStatus {
	switch {
	case at.Before(t.SaleStart):
		return SaleStatusUpcoming
	case at.After(t.SaleEnd):
		return SaleStatusEnded
	case t.Available() <= 0:
		return SaleStatusSoldOut
	default:
		return SaleStatusOnSale
	}
}

// IsOnSale reports whether new reservations are accepted at the given instant.
func (t *TicketType) IsOnSale(at time.Time) bool {
	return t.SaleStatusAt(at) == SaleStatusOnSale
}

// CanPurchaseQuantity checks the per-order purchase bounds.
func (t *TicketType) CanPurchaseQuantity(quantity int) bool {
	return quantity >= t.MinPurchase && quantity <= t.MaxPurchase
}

// Reservation is a short-lived hold on inventory returned by Reserve. It is
// not persisted anywhere; the reserved_count column is the single source of
// truth and the booking that made the hold is responsible for releasing or
// committing it.
type Reservation struct {
	TicketTypeID uuid.UUID       `json:"ticket_type_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ReservedAt   time.Time       `json:"reserved_at"`
}

// LedgerChange reports availability before and after a ledger mutation so
// callers can react to a sold-out pool reopening.
type LedgerChange struct {
	TicketType      *TicketType
	AvailableBefore int
	AvailableAfter  int
}

// FreedFromSoldOut reports whether this mutation raised availability from zero.
func (c *LedgerChange) FreedFromSoldOut() bool {
	return c.AvailableBefore <= 0 && c.AvailableAfter > 0
}

// FreedQuantity returns how many units this mutation made available.
func (c *LedgerChange) FreedQuantity() int {
	freed := c.AvailableAfter - c.AvailableBefore
	if freed < 0 {
		return 0
	}
	return freed
}
