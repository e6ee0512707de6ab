package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

func (d DiscountType) IsValid() bool {
	return d == DiscountTypePercentage || d == DiscountTypeFixed
}

// DiscountCode is a promotional code. times_used is only ever moved by the
// conditional-update redemption path so the usage_limit invariant holds under
// concurrent checkouts.
type DiscountCode struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Code        string       `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Description string       `json:"description" gorm:"type:text"`
	Type        DiscountType `json:"discount_type" gorm:"column:discount_type;not null;size:20"`

	Value             decimal.Decimal  `json:"value" gorm:"type:numeric(12,2);not null"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty" gorm:"type:numeric(12,2)"`
	MinOrderAmount    decimal.Decimal  `json:"min_order_amount" gorm:"type:numeric(12,2);not null;default:0"`

	UsageLimit          *int `json:"usage_limit,omitempty"`
	TimesUsed           int  `json:"times_used" gorm:"not null;default:0"`
	PerUserLimit        int  `json:"per_user_limit" gorm:"not null;default:1"`
	FirstTimeBuyersOnly bool `json:"first_time_buyers_only" gorm:"not null;default:false"`

	ValidFrom  time.Time `json:"valid_from" gorm:"not null"`
	ValidUntil time.Time `json:"valid_until" gorm:"not null"`
	IsActive   bool      `json:"is_active" gorm:"not null;default:true"`

	// Scope. Nil event and ticket type means the code applies platform-wide.
	EventID      *uuid.UUID `json:"event_id,omitempty" gorm:"type:uuid;index"`
	TicketTypeID *uuid.UUID `json:"ticket_type_id,omitempty" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DiscountCode) TableName() string {
	return "discount_codes"
}

// IsWithinValidity reports whether the code's window is open at the instant.
func (d *DiscountCode) IsWithinValidity(at time.Time) bool {
	return !at.Before(d.ValidFrom) && !at.After(d.ValidUntil)
}

// IsExhausted reports whether the global usage limit has been reached.
func (d *DiscountCode) IsExhausted() bool {
	return d.UsageLimit != nil && d.TimesUsed >= *d.UsageLimit
}

// CalculateDiscount returns the amount this code takes off the given
// subtotal. Percentage discounts honour the optional cap; fixed discounts
// never exceed the subtotal. The result is rounded to 2 decimal places and
// never negative.
func (d *DiscountCode) CalculateDiscount(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch d.Type {
	case DiscountTypePercentage:
		amount = subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)).Round(2)
		if d.MaxDiscountAmount != nil && amount.GreaterThan(*d.MaxDiscountAmount) {
			amount = *d.MaxDiscountAmount
		}
	case DiscountTypeFixed:
		amount = d.Value
	default:
		return decimal.Zero
	}

	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.Sign() < 0 {
		return decimal.Zero
	}
	return amount.Round(2)
}

// DiscountRedemption records one successful application of a code to a
// booking. The (discount_code, booking) pair is unique so a retried checkout
// cannot double-redeem.
type DiscountRedemption struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	DiscountCodeID uuid.UUID       `json:"discount_code_id" gorm:"type:uuid;not null;index;uniqueIndex:idx_redemption_code_booking"`
	UserID         uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	BookingID      uuid.UUID       `json:"booking_id" gorm:"type:uuid;not null;uniqueIndex:idx_redemption_code_booking"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (DiscountRedemption) TableName() string {
	return "discount_redemptions"
}
