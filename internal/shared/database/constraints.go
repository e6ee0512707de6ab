package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the constraints AutoMigrate cannot express. They
// back the invariants the guarded updates rely on: one live payment per
// booking, one live waitlist entry per user and ticket type, and non-negative
// inventory counters.
func MigrateConstraints(db *gorm.DB) error {
	statements := []string{
		// One non-terminal payment per booking.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_live_per_booking
			ON payments (booking_id)
			WHERE status IN ('PENDING', 'PROCESSING', 'FAILED');`,

		// One live waitlist entry per user and ticket type.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_waitlist_user_ticket_type
			ON waitlist_entries (user_id, ticket_type_id)
			WHERE status IN ('WAITING', 'NOTIFIED');`,

		// The ledger counters can never go negative or oversell.
		`ALTER TABLE ticket_types DROP CONSTRAINT IF EXISTS chk_ticket_types_counters;`,
		`ALTER TABLE ticket_types ADD CONSTRAINT chk_ticket_types_counters
			CHECK (sold_count >= 0 AND reserved_count >= 0 AND sold_count + reserved_count <= quantity);`,

		// One settlement per payment.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_settlements_payment
			ON settlements (payment_id);`,
	}

	for _, statement := range statements {
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}
