package tickets

import (
	"github.com/shopspring/decimal"
)

// CheckInRequest identifies the gate and the staff member scanning.
type CheckInRequest struct {
	Location string `json:"location" binding:"required,max=255"`
}

// TransferRequest hands the ticket to a new holder.
type TransferRequest struct {
	ToName  string           `json:"to_name,omitempty"`
	ToEmail string           `json:"to_email" binding:"required,email"`
	Fee     *decimal.Decimal `json:"fee,omitempty"`
}

func (r TransferRequest) fee() decimal.Decimal {
	if r.Fee != nil {
		return *r.Fee
	}
	return decimal.Zero
}

// TicketRefundRequest opens a per-ticket refund; a nil amount refunds the
// ticket's face value.
type TicketRefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason" binding:"required,max=500"`
}
