package database

import (
	"ticketflow/internal/bookings"
	"ticketflow/internal/events"
	"ticketflow/internal/inventory"
	"ticketflow/internal/payments"
	"ticketflow/internal/pricing"
	"ticketflow/internal/tickets"
	"ticketflow/internal/users"
	"ticketflow/internal/waitlist"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&events.Event{},
		&inventory.TicketType{},
		&pricing.DiscountCode{},
		&pricing.DiscountRedemption{},
		&bookings.Booking{},
		&bookings.BookingItem{},
		&bookings.BookingStatusHistory{},
		&payments.Payment{},
		&payments.Refund{},
		&payments.Settlement{},
		&tickets.Ticket{},
		&tickets.TicketTransfer{},
		&waitlist.WaitlistEntry{},
	)
}
