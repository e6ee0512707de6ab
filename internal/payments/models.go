package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one payment lifecycle object, 1:1 with its booking. Amount and
// currency are copied from the booking at initiation and never recomputed.
type Payment struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TransactionRef string    `gorm:"uniqueIndex;not null;size:30" json:"transaction_reference"`
	BookingID      uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"booking_id"`
	BookingRef     string    `gorm:"not null;size:20;index" json:"booking_reference"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Amount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency string          `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`

	Gateway       string `gorm:"not null;size:50" json:"gateway"`
	GatewayTxnID  string `gorm:"size:100;index" json:"gateway_transaction_id,omitempty"`
	Status        Status `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	FailureReason string `gorm:"type:text" json:"failure_reason,omitempty"`
	FailureCode   string `gorm:"size:50" json:"failure_code,omitempty"`

	RetryCount int `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries int `gorm:"not null;default:3" json:"max_retries"`

	GatewayFee  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"gateway_fee"`
	PlatformFee decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"platform_fee"`

	PaymentDate *time.Time `json:"payment_date,omitempty"`

	Settled       bool             `gorm:"not null;default:false;index" json:"settled"`
	SettlementRef string           `gorm:"size:40" json:"settlement_reference,omitempty"`
	SettledAmount *decimal.Decimal `gorm:"type:numeric(12,2)" json:"settled_amount,omitempty"`
	SettledAt     *time.Time       `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Refunds []Refund `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"refunds,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

// NetAmount is what remains after gateway and platform fees.
func (p *Payment) NetAmount() decimal.Decimal {
	return p.Amount.Sub(p.GatewayFee).Sub(p.PlatformFee)
}

// CanRetry reports whether another attempt is allowed. The booking-still-
// pending guard is the service's job since it needs a cross-module read.
func (p *Payment) CanRetry() bool {
	return p.Status == StatusFailed && p.RetryCount < p.MaxRetries
}

// IsTerminal folds the exhausted-retries case into the status table's view.
func (p *Payment) IsTerminal() bool {
	if p.Status.IsTerminal() {
		return true
	}
	return p.Status == StatusFailed && p.RetryCount >= p.MaxRetries
}

// IsStaleAt reports whether the staleness sweep should expire this payment.
func (p *Payment) IsStaleAt(now time.Time, pendingExpiry time.Duration) bool {
	return p.Status == StatusPending && now.Sub(p.CreatedAt) > pendingExpiry
}

// Refund is a child of a completed payment; partial or full. Its amount is
// reserved against the payment the moment the row is created so concurrent
// refund requests cannot oversubscribe the original amount.
type Refund struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RefundRef string    `gorm:"uniqueIndex;not null;size:30" json:"refund_reference"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null;index" json:"payment_id"`

	// TicketID is set when this refund was requested for one ticket instance
	// rather than the whole booking.
	TicketID *uuid.UUID `gorm:"type:uuid" json:"ticket_id,omitempty"`

	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	ProcessingFee decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"processing_fee"`
	GatewayFee    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"gateway_fee"`

	Status      RefundStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Reason      string       `gorm:"type:text;not null" json:"reason"`
	RequestedBy string       `gorm:"size:100;not null" json:"requested_by"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Refund) TableName() string {
	return "refunds"
}

// NetAmount is what the payer actually receives back.
func (r *Refund) NetAmount() decimal.Decimal {
	net := r.Amount.Sub(r.ProcessingFee).Sub(r.GatewayFee)
	if net.Sign() < 0 {
		return decimal.Zero
	}
	return net
}

// Settlement records the one-time transfer of net proceeds to the organizer.
type Settlement struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SettlementRef string    `gorm:"uniqueIndex;not null;size:40" json:"settlement_reference"`
	PaymentID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"payment_id"`
	OrganizerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"organizer_id"`

	GrossAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"gross_amount"`
	CommissionRate   decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"commission_rate"`
	CommissionAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"commission_amount"`
	GatewayFee       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"gateway_fee"`
	PlatformFee      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"platform_fee"`
	NetAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"net_amount"`

	SettledAt time.Time `gorm:"not null" json:"settled_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}
