package pricing

import (
	"time"

	"ticketflow/internal/inventory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestedItem is one (ticket type, quantity) line of a checkout request.
type RequestedItem struct {
	TicketTypeID uuid.UUID `json:"ticket_type_id" binding:"required"`
	Quantity     int       `json:"quantity" binding:"required,min=1"`
}

// QuoteItem is one priced line. Line values keep full decimal precision;
// rounding happens once, at the quote aggregates, so multi-line totals do not
// accumulate per-line rounding drift.
type QuoteItem struct {
	TicketTypeID   uuid.UUID       `json:"ticket_type_id"`
	TicketTypeName string          `json:"ticket_type_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	UnitServiceFee decimal.Decimal `json:"unit_service_fee"`
	UnitTax        decimal.Decimal `json:"unit_tax"`
	LineSubtotal   decimal.Decimal `json:"line_subtotal"`
	LineFees       decimal.Decimal `json:"line_fees"`
	LineTax        decimal.Decimal `json:"line_tax"`
}

// Quote is the priced view of a set of requested items. DiscountAmount is
// zero until a discount is applied by the caller.
type Quote struct {
	Items          []QuoteItem     `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	ServiceFees    decimal.Decimal `json:"service_fees"`
	Tax            decimal.Decimal `json:"tax"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PricedAt       time.Time       `json:"priced_at"`
}

// Total computes the payable amount:
//
//	max(0, subtotal - discount) + service fees + tax
//
// The discount reduces the subtotal only; fees and tax are charged on the
// undiscounted base.
func (q *Quote) Total() decimal.Decimal {
	discounted := q.Subtotal.Sub(q.DiscountAmount)
	if discounted.Sign() < 0 {
		discounted = decimal.Zero
	}
	return discounted.Add(q.ServiceFees).Add(q.Tax).Round(2)
}

// buildQuote prices the items against their ticket types at the given
// instant. The caller has already verified every ticket type exists.
func buildQuote(items []RequestedItem, ticketTypes map[uuid.UUID]*inventory.TicketType, at time.Time) *Quote {
	quote := &Quote{
		Items:          make([]QuoteItem, 0, len(items)),
		Subtotal:       decimal.Zero,
		ServiceFees:    decimal.Zero,
		Tax:            decimal.Zero,
		DiscountAmount: decimal.Zero,
		PricedAt:       at,
	}

	hundred := decimal.NewFromInt(100)
	for _, item := range items {
		ticketType := ticketTypes[item.TicketTypeID]
		quantity := decimal.NewFromInt(int64(item.Quantity))

		unitPrice := ticketType.CurrentPrice(at)
		unitTax := unitPrice.Add(ticketType.ServiceFee).Mul(ticketType.TaxPercentage).Div(hundred)

		line := QuoteItem{
			TicketTypeID:   ticketType.ID,
			TicketTypeName: ticketType.Name,
			Quantity:       item.Quantity,
			UnitPrice:      unitPrice,
			UnitServiceFee: ticketType.ServiceFee,
			UnitTax:        unitTax,
			LineSubtotal:   unitPrice.Mul(quantity),
			LineFees:       ticketType.ServiceFee.Mul(quantity),
			LineTax:        unitTax.Mul(quantity),
		}
		quote.Items = append(quote.Items, line)

		quote.Subtotal = quote.Subtotal.Add(line.LineSubtotal)
		quote.ServiceFees = quote.ServiceFees.Add(line.LineFees)
		quote.Tax = quote.Tax.Add(line.LineTax)
	}

	// The single rounding point for the whole quote.
	quote.Subtotal = quote.Subtotal.Round(2)
	quote.ServiceFees = quote.ServiceFees.Round(2)
	quote.Tax = quote.Tax.Round(2)
	return quote
}
