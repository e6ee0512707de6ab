package payments

import (
	"github.com/shopspring/decimal"
)

// InitiatePaymentRequest opens the payment window for a pending booking.
type InitiatePaymentRequest struct {
	BookingReference string `json:"booking_reference" binding:"required"`
	Gateway          string `json:"gateway" binding:"required"`
}

// WebhookRequest is the gateway callback payload. Status uses the gateway's
// own vocabulary; the orchestrator maps it onto the internal state machine.
type WebhookRequest struct {
	TransactionReference string `json:"transaction_reference" binding:"required"`
	GatewayTransactionID string `json:"gateway_transaction_id" binding:"required"`
	Status               string `json:"status" binding:"required"`
	FailureReason        string `json:"failure_reason,omitempty"`
	FailureCode          string `json:"failure_code,omitempty"`

	GatewayFee  *decimal.Decimal `json:"gateway_fee,omitempty"`
	PlatformFee *decimal.Decimal `json:"platform_fee,omitempty"`
}

// RefundRequest opens a refund; a nil amount means refund in full.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason" binding:"required,max=500"`
}

// FailRefundRequest records why a refund could not be processed.
type FailRefundRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}
