package main

import (
	"fmt"
	"log"
	"time"

	"ticketflow/internal/events"
	"ticketflow/internal/inventory"
	"ticketflow/internal/pricing"
	"ticketflow/internal/shared/config"
	"ticketflow/internal/shared/database"
	"ticketflow/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Seeder fills a development database with enough data to exercise the whole
// booking flow: users of every role, published events, ticket types at
// several price points (one sold out for the waitlist) and discount codes.
type Seeder struct {
	db *database.DB

	organizerID uuid.UUID
	eventIDs    []uuid.UUID
}

func main() {
	fmt.Println("Starting TicketFlow database seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}

	fmt.Println("Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	fmt.Println("Seeding completed. Database is ready for testing.")
}

// CleanDatabase truncates all tables in reverse dependency order.
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"waitlist_entries",
		"ticket_transfers",
		"tickets",
		"settlements",
		"refunds",
		"payments",
		"discount_redemptions",
		"booking_status_histories",
		"booking_items",
		"bookings",
		"discount_codes",
		"ticket_types",
		"events",
		"users",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Exec("SET CONSTRAINTS ALL DEFERRED").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to defer constraints: %w", err)
	}

	for _, table := range tables {
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

func (s *Seeder) SeedAll() error {
	if err := s.seedUsers(); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if err := s.seedEvents(); err != nil {
		return fmt.Errorf("seed events: %w", err)
	}
	if err := s.seedTicketTypes(); err != nil {
		return fmt.Errorf("seed ticket types: %w", err)
	}
	if err := s.seedDiscountCodes(); err != nil {
		return fmt.Errorf("seed discount codes: %w", err)
	}
	return nil
}

func (s *Seeder) seedUsers() error {
	hash, err := bcrypt.GenerateFromPassword([]byte("Password@123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.organizerID = uuid.New()

	seedUsers := []users.User{
		{
			ID:        uuid.New(),
			FirstName: "Priya",
			LastName:  "Sharma",
			Email:     "admin@ticketflow.dev",
			Password:  string(hash),
			Role:      users.RoleAdmin,
			Phone:     "+919800000001",
		},
		{
			ID:        s.organizerID,
			FirstName: "Rahul",
			LastName:  "Mehta",
			Email:     "organizer@ticketflow.dev",
			Password:  string(hash),
			Role:      users.RoleOrganizer,
			Phone:     "+919800000002",
		},
		{
			ID:        uuid.New(),
			FirstName: "Ananya",
			LastName:  "Iyer",
			Email:     "ananya@example.com",
			Password:  string(hash),
			Role:      users.RoleAttendee,
			Phone:     "+919800000003",
		},
		{
			ID:        uuid.New(),
			FirstName: "Vikram",
			LastName:  "Rao",
			Email:     "vikram@example.com",
			Password:  string(hash),
			Role:      users.RoleAttendee,
			Phone:     "+919800000004",
		},
	}

	for i := range seedUsers {
		if err := s.db.PostgreSQL.Create(&seedUsers[i]).Error; err != nil {
			return err
		}
	}
	fmt.Printf("  Created %d users (password: Password@123)\n", len(seedUsers))
	return nil
}

func (s *Seeder) seedEvents() error {
	now := time.Now()

	seedEvents := []events.Event{
		{
			ID:          uuid.New(),
			Name:        "Indie Nights: Live in Bengaluru",
			Description: "An evening of indie rock across two stages.",
			Venue:       "Phoenix Arena, Bengaluru",
			StartDate:   now.Add(30 * 24 * time.Hour),
			EndDate:     now.Add(30*24*time.Hour + 6*time.Hour),
			Status:      events.StatusPublished,
			OrganizerID: s.organizerID,
		},
		{
			ID:          uuid.New(),
			Name:        "TechConf India 2026",
			Description: "Two-day engineering conference with workshops.",
			Venue:       "HICC, Hyderabad",
			StartDate:   now.Add(60 * 24 * time.Hour),
			EndDate:     now.Add(61 * 24 * time.Hour),
			Status:      events.StatusPublished,
			OrganizerID: s.organizerID,
		},
		{
			ID:          uuid.New(),
			Name:        "Standup Saturday",
			Description: "Headliner comedy night, one show only.",
			Venue:       "Canvas Club, Mumbai",
			StartDate:   now.Add(7 * 24 * time.Hour),
			EndDate:     now.Add(7*24*time.Hour + 3*time.Hour),
			Status:      events.StatusPublished,
			OrganizerID: s.organizerID,
		},
	}

	for i := range seedEvents {
		if err := s.db.PostgreSQL.Create(&seedEvents[i]).Error; err != nil {
			return err
		}
		s.eventIDs = append(s.eventIDs, seedEvents[i].ID)
	}
	fmt.Printf("  Created %d events\n", len(seedEvents))
	return nil
}

func (s *Seeder) seedTicketTypes() error {
	now := time.Now()
	earlyBird := decimal.NewFromInt(999)
	earlyBirdUntil := now.Add(10 * 24 * time.Hour)

	ticketTypes := []inventory.TicketType{
		{
			ID:             uuid.New(),
			EventID:        s.eventIDs[0],
			Name:           "General Admission",
			Description:    "Standing, both stages.",
			Quantity:       500,
			Price:          decimal.NewFromInt(1499),
			EarlyBirdPrice: &earlyBird,
			EarlyBirdUntil: &earlyBirdUntil,
			ServiceFee:     decimal.NewFromInt(75),
			TaxPercentage:  decimal.NewFromInt(18),
			MinPurchase:    1,
			MaxPurchase:    6,
			IsRefundable:   true,
			IsTransferable: true,
			SaleStart:      now.Add(-24 * time.Hour),
			SaleEnd:        now.Add(29 * 24 * time.Hour),
		},
		{
			ID:             uuid.New(),
			EventID:        s.eventIDs[0],
			Name:           "VIP Lounge",
			Description:    "Lounge access with a dedicated bar.",
			Quantity:       50,
			SoldCount:      50, // sold out, exercises the waitlist
			Price:          decimal.NewFromInt(4999),
			ServiceFee:     decimal.NewFromInt(250),
			TaxPercentage:  decimal.NewFromInt(18),
			MinPurchase:    1,
			MaxPurchase:    4,
			IsRefundable:   true,
			IsTransferable: false,
			SaleStart:      now.Add(-24 * time.Hour),
			SaleEnd:        now.Add(29 * 24 * time.Hour),
		},
		{
			ID:             uuid.New(),
			EventID:        s.eventIDs[1],
			Name:           "Conference Pass",
			Description:    "Both days, all tracks.",
			Quantity:       1200,
			Price:          decimal.NewFromInt(8500),
			ServiceFee:     decimal.NewFromInt(425),
			TaxPercentage:  decimal.NewFromInt(18),
			MinPurchase:    1,
			MaxPurchase:    10,
			IsRefundable:   true,
			IsTransferable: true,
			SaleStart:      now.Add(-24 * time.Hour),
			SaleEnd:        now.Add(59 * 24 * time.Hour),
		},
		{
			ID:             uuid.New(),
			EventID:        s.eventIDs[2],
			Name:           "Front Row",
			Description:    "First two rows.",
			Quantity:       20,
			Price:          decimal.NewFromInt(1999),
			ServiceFee:     decimal.NewFromInt(100),
			TaxPercentage:  decimal.NewFromInt(18),
			MinPurchase:    1,
			MaxPurchase:    2,
			IsRefundable:   false,
			IsTransferable: true,
			SaleStart:      now.Add(-24 * time.Hour),
			SaleEnd:        now.Add(6 * 24 * time.Hour),
			SeatSection:    "A",
		},
	}

	for i := range ticketTypes {
		if err := s.db.PostgreSQL.Create(&ticketTypes[i]).Error; err != nil {
			return err
		}
	}
	fmt.Printf("  Created %d ticket types\n", len(ticketTypes))
	return nil
}

func (s *Seeder) seedDiscountCodes() error {
	now := time.Now()
	maxDiscount := decimal.NewFromInt(500)
	usageLimit := 100

	codes := []pricing.DiscountCode{
		{
			ID:                uuid.New(),
			Code:              "WELCOME10",
			Description:       "10% off for first-time buyers, capped at 500.",
			Type:              pricing.DiscountTypePercentage,
			Value:             decimal.NewFromInt(10),
			MaxDiscountAmount: &maxDiscount,
			MinOrderAmount:    decimal.NewFromInt(500),
			UsageLimit:        &usageLimit,
			PerUserLimit:      1,

			FirstTimeBuyersOnly: true,
			ValidFrom:           now.Add(-24 * time.Hour),
			ValidUntil:          now.Add(90 * 24 * time.Hour),
			IsActive:            true,
		},
		{
			ID:             uuid.New(),
			Code:           "FLAT200",
			Description:    "Flat 200 off orders over 2000.",
			Type:           pricing.DiscountTypeFixed,
			Value:          decimal.NewFromInt(200),
			MinOrderAmount: decimal.NewFromInt(2000),
			PerUserLimit:   3,
			ValidFrom:      now.Add(-24 * time.Hour),
			ValidUntil:     now.Add(30 * 24 * time.Hour),
			IsActive:       true,
		},
		{
			ID:             uuid.New(),
			Code:           "TECHCONF15",
			Description:    "15% off conference passes.",
			Type:           pricing.DiscountTypePercentage,
			Value:          decimal.NewFromInt(15),
			MinOrderAmount: decimal.Zero,
			PerUserLimit:   1,
			ValidFrom:      now.Add(-24 * time.Hour),
			ValidUntil:     now.Add(59 * 24 * time.Hour),
			IsActive:       true,
			EventID:        &s.eventIDs[1],
		},
	}

	for i := range codes {
		if err := s.db.PostgreSQL.Create(&codes[i]).Error; err != nil {
			return err
		}
	}
	fmt.Printf("  Created %d discount codes\n", len(codes))
	return nil
}
