package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTicketTypeAvailable(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		sold     int
		reserved int
		want     int
	}{
		{"untouched pool", 100, 0, 0, 100},
		{"partially sold", 100, 40, 10, 50},
		{"sold out", 100, 100, 0, 0},
		{"fully reserved", 100, 0, 100, 0},
		{"overcommitted counters clamp to zero", 100, 90, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticketType := &TicketType{
				Quantity:      tt.quantity,
				SoldCount:     tt.sold,
				ReservedCount: tt.reserved,
			}
			if got := ticketType.Available(); got != tt.want {
				t.Errorf("Available() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSaleStatusAt(t *testing.T) {
	saleStart := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	saleEnd := time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		at       time.Time
		sold     int
		reserved int
		want     SaleStatus
	}{
		{"before sale start", saleStart.Add(-time.Hour), 0, 0, SaleStatusUpcoming},
		{"at sale start", saleStart, 0, 0, SaleStatusOnSale},
		{"mid window with stock", saleStart.Add(48 * time.Hour), 20, 5, SaleStatusOnSale},
		{"mid window sold out", saleStart.Add(48 * time.Hour), 100, 0, SaleStatusSoldOut},
		{"mid window fully reserved", saleStart.Add(48 * time.Hour), 60, 40, SaleStatusSoldOut},
		{"at sale end", saleEnd, 0, 0, SaleStatusOnSale},
		{"after sale end", saleEnd.Add(time.Minute), 0, 0, SaleStatusEnded},
		{"after sale end and sold out", saleEnd.Add(time.Minute), 100, 0, SaleStatusEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticketType := &TicketType{
				Quantity:      100,
				SoldCount:     tt.sold,
				ReservedCount: tt.reserved,
				SaleStart:     saleStart,
				SaleEnd:       saleEnd,
			}
			if got := ticketType.SaleStatusAt(tt.at); got != tt.want {
				t.Errorf("SaleStatusAt(%v) = %s, want %s", tt.at, got, tt.want)
			}
		})
	}
}

func TestCurrentPrice(t *testing.T) {
	regular := decimal.NewFromInt(1500)
	earlyBird := decimal.NewFromInt(1200)
	until := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		earlyPrice *decimal.Decimal
		earlyUntil *time.Time
		at         time.Time
		want       decimal.Decimal
	}{
		{"no early bird configured", nil, nil, until.Add(-time.Hour), regular},
		{"early bird window open", &earlyBird, &until, until.Add(-time.Hour), earlyBird},
		{"early bird boundary is inclusive", &earlyBird, &until, until, earlyBird},
		{"early bird window closed", &earlyBird, &until, until.Add(time.Second), regular},
		{"price set but no deadline", &earlyBird, nil, until.Add(-time.Hour), regular},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticketType := &TicketType{
				Price:          regular,
				EarlyBirdPrice: tt.earlyPrice,
				EarlyBirdUntil: tt.earlyUntil,
			}
			got := ticketType.CurrentPrice(tt.at)
			if !got.Equal(tt.want) {
				t.Errorf("CurrentPrice(%v) = %s, want %s", tt.at, got, tt.want)
			}
		})
	}
}

func TestCanPurchaseQuantity(t *testing.T) {
	ticketType := &TicketType{MinPurchase: 2, MaxPurchase: 6}

	tests := []struct {
		quantity int
		want     bool
	}{
		{1, false},
		{2, true},
		{4, true},
		{6, true},
		{7, false},
	}

	for _, tt := range tests {
		if got := ticketType.CanPurchaseQuantity(tt.quantity); got != tt.want {
			t.Errorf("CanPurchaseQuantity(%d) = %v, want %v", tt.quantity, got, tt.want)
		}
	}
}

func TestLedgerChangeFreedFromSoldOut(t *testing.T) {
	tests := []struct {
		name   string
		before int
		after  int
		want   bool
	}{
		{"pool reopened", 0, 2, true},
		{"still sold out", 0, 0, false},
		{"was never sold out", 3, 5, false},
		{"availability dropped", 2, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := &LedgerChange{AvailableBefore: tt.before, AvailableAfter: tt.after}
			if got := change.FreedFromSoldOut(); got != tt.want {
				t.Errorf("FreedFromSoldOut() with before=%d after=%d = %v, want %v",
					tt.before, tt.after, got, tt.want)
			}
		})
	}
}
