package pricing

import (
	"github.com/shopspring/decimal"
)

// DiscountPreviewResponse reports what a code would take off a checkout.
type DiscountPreviewResponse struct {
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discount_type"`
	Value          decimal.Decimal `json:"value"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ServiceFees    decimal.Decimal `json:"service_fees"`
	Tax            decimal.Decimal `json:"tax"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}
