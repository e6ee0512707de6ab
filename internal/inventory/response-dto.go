package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// AvailabilityResponse is the live availability view served to clients. The
// counters come straight from the ledger row; sale_status is derived at read
// time.
type AvailabilityResponse struct {
	TicketTypeID string     `json:"ticket_type_id"`
	EventID      string     `json:"event_id"`
	Name         string     `json:"name"`
	Available    int        `json:"available"`
	Quantity     int        `json:"quantity"`
	SoldCount    int        `json:"sold_count"`
	SaleStatus   SaleStatus `json:"sale_status"`
}

// TicketTypeResponse is the catalog view of a ticket type, with the price
// effective right now (early-bird aware).
type TicketTypeResponse struct {
	ID             string          `json:"id"`
	EventID        string          `json:"event_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	ServiceFee     decimal.Decimal `json:"service_fee"`
	TaxPercentage  decimal.Decimal `json:"tax_percentage"`
	Available      int             `json:"available"`
	MinPurchase    int             `json:"min_purchase"`
	MaxPurchase    int             `json:"max_purchase"`
	IsRefundable   bool            `json:"is_refundable"`
	IsTransferable bool            `json:"is_transferable"`
	SaleStatus     SaleStatus      `json:"sale_status"`
	SaleStart      time.Time       `json:"sale_start"`
	SaleEnd        time.Time       `json:"sale_end"`
	SeatSection    string          `json:"seat_section,omitempty"`
}

func ToAvailabilityResponse(t *TicketType, at time.Time) *AvailabilityResponse {
	return &AvailabilityResponse{
		TicketTypeID: t.ID.String(),
		EventID:      t.EventID.String(),
		Name:         t.Name,
		Available:    t.Available(),
		Quantity:     t.Quantity,
		SoldCount:    t.SoldCount,
		SaleStatus:   t.SaleStatusAt(at),
	}
}

func ToTicketTypeResponse(t *TicketType, at time.Time) TicketTypeResponse {
	return TicketTypeResponse{
		ID:             t.ID.String(),
		EventID:        t.EventID.String(),
		Name:           t.Name,
		Description:    t.Description,
		Price:          t.Price,
		CurrentPrice:   t.CurrentPrice(at),
		ServiceFee:     t.ServiceFee,
		TaxPercentage:  t.TaxPercentage,
		Available:      t.Available(),
		MinPurchase:    t.MinPurchase,
		MaxPurchase:    t.MaxPurchase,
		IsRefundable:   t.IsRefundable,
		IsTransferable: t.IsTransferable,
		SaleStatus:     t.SaleStatusAt(at),
		SaleStart:      t.SaleStart,
		SaleEnd:        t.SaleEnd,
		SeatSection:    t.SeatSection,
	}
}

func ToTicketTypeResponses(ticketTypes []TicketType, at time.Time) []TicketTypeResponse {
	responses := make([]TicketTypeResponse, 0, len(ticketTypes))
	for i := range ticketTypes {
		responses = append(responses, ToTicketTypeResponse(&ticketTypes[i], at))
	}
	return responses
}
