package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentResponse is the API view of a payment.
type PaymentResponse struct {
	TransactionRef string `json:"transaction_reference"`
	BookingRef     string `json:"booking_reference"`
	Status         Status `json:"status"`
	Gateway        string `json:"gateway"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	FailureReason    string `json:"failure_reason,omitempty"`
	FailureCode      string `json:"failure_code,omitempty"`
	RetriesRemaining int    `json:"retries_remaining"`

	PaymentDate *time.Time `json:"payment_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	Refunds []RefundResponse `json:"refunds,omitempty"`
}

type RefundResponse struct {
	RefundRef   string          `json:"refund_reference"`
	Status      RefundStatus    `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	TicketID    string          `json:"ticket_id,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type SettlementResponse struct {
	SettlementRef    string          `json:"settlement_reference"`
	OrganizerID      string          `json:"organizer_id"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	SettledAt        time.Time       `json:"settled_at"`
}

func ToPaymentResponse(payment *Payment) PaymentResponse {
	remaining := payment.MaxRetries - payment.RetryCount
	if remaining < 0 {
		remaining = 0
	}

	refunds := make([]RefundResponse, 0, len(payment.Refunds))
	for i := range payment.Refunds {
		refunds = append(refunds, ToRefundResponse(&payment.Refunds[i]))
	}

	return PaymentResponse{
		TransactionRef:   payment.TransactionRef,
		BookingRef:       payment.BookingRef,
		Status:           payment.Status,
		Gateway:          payment.Gateway,
		Amount:           payment.Amount,
		Currency:         payment.Currency,
		FailureReason:    payment.FailureReason,
		FailureCode:      payment.FailureCode,
		RetriesRemaining: remaining,
		PaymentDate:      payment.PaymentDate,
		CreatedAt:        payment.CreatedAt,
		Refunds:          refunds,
	}
}

func ToRefundResponse(refund *Refund) RefundResponse {
	response := RefundResponse{
		RefundRef:   refund.RefundRef,
		Status:      refund.Status,
		Amount:      refund.Amount,
		Reason:      refund.Reason,
		ProcessedAt: refund.ProcessedAt,
		CreatedAt:   refund.CreatedAt,
	}
	if refund.TicketID != nil {
		response.TicketID = refund.TicketID.String()
	}
	return response
}

func ToSettlementResponse(settlement *Settlement) SettlementResponse {
	return SettlementResponse{
		SettlementRef:    settlement.SettlementRef,
		OrganizerID:      settlement.OrganizerID.String(),
		GrossAmount:      settlement.GrossAmount,
		CommissionRate:   settlement.CommissionRate,
		CommissionAmount: settlement.CommissionAmount,
		NetAmount:        settlement.NetAmount,
		SettledAt:        settlement.SettledAt,
	}
}
