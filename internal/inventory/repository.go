package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketflow/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrCommitExceedsReserved is returned when a commit asks for more units than
// are currently reserved. The ledger rejects the whole commit instead of
// silently drawing the shortfall from open availability.
var ErrCommitExceedsReserved = errors.New("commit quantity exceeds reserved count")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*TicketType, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]TicketType, error)
	GetByEventID(ctx context.Context, eventID uuid.UUID) ([]TicketType, error)

	// Ledger mutations. Each runs in its own transaction with a FOR UPDATE
	// row lock so concurrent callers serialize per ticket type.
	Reserve(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*LedgerChange, error)
	Release(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*LedgerChange, error)
	Commit(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*LedgerChange, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	var ticketType TicketType
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticketType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "ticket type", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}
	return &ticketType, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]TicketType, error) {
	var ticketTypes []TicketType
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&ticketTypes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket types: %w", err)
	}
	return ticketTypes, nil
}

func (r *repository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]TicketType, error) {
	var ticketTypes []TicketType
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("price ASC").
		Find(&ticketTypes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket types for event: %w", err)
	}
	return ticketTypes, nil
}

// lockTicketType loads the ticket type row with a FOR UPDATE lock inside tx.
// All counter math happens while this lock is held.
func lockTicketType(tx *gorm.DB, id uuid.UUID) (*TicketType, error) {
	var ticketType TicketType
	err := tx.
		Set("gorm:query_option", "FOR UPDATE").
		Where("id = ?", id).
		First(&ticketType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "ticket type", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to lock ticket type: %w", err)
	}
	return &ticketType, nil
}

// Reserve atomically checks availability and increments reserved_count.
// Fails with InsufficientInventoryError when the request exceeds what is
// available; it never partially reserves.
func (r *repository) Reserve(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*LedgerChange, error) {
	var change *LedgerChange

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticketType, err := lockTicketType(tx, ticketTypeID)
		if err != nil {
			return err
		}

		availableBefore := ticketType.Available()
		if quantity > availableBefore {
			return &apperrors.InsufficientInventoryError{
				TicketTypeID:   ticketType.ID,
				TicketTypeName: ticketType.Name,
				Requested:      quantity,
				Available:      availableBefore,
			}
		}

		err = tx.Model(&TicketType{}).
			Where("id = ?", ticketTypeID).
			Updates(map[string]interface{}{
				"reserved_count": gorm.Expr("reserved_count + ?", quantity),
				"updated_at":     time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to increment reserved count: %w", err)
		}

		ticketType.ReservedCount += quantity
		change = &LedgerChange{
			TicketType:      ticketType,
			AvailableBefore: availableBefore,
			AvailableAfter:  ticketType.Available(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// Release decrements reserved_count, clamped at zero so a raced double
// release (scheduler sweep vs. user cancellation) can never drive the
// counter negative.
func (r *repository) Release(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*LedgerChange, error) {
	var change *LedgerChange

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticketType, err := lockTicketType(tx, ticketTypeID)
		if err != nil {
			return err
		}

		availableBefore := ticketType.Available()

		toRelease := quantity
		if toRelease > ticketType.ReservedCount {
			toRelease = ticketType.ReservedCount
		}

		if toRelease > 0 {
			err = tx.Model(&TicketType{}).
				Where("id = ?", ticketTypeID).
				Updates(map[string]interface{}{
					"reserved_count": gorm.Expr("reserved_count - ?", toRelease),
					"updated_at":     time.Now(),
				}).Error
			if err != nil {
				return fmt.Errorf("failed to decrement reserved count: %w", err)
			}
		}

		ticketType.ReservedCount -= toRelease
		change = &LedgerChange{
			TicketType:      ticketType,
			AvailableBefore: availableBefore,
			AvailableAfter:  ticketType.Available(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// Commit converts reserved units into sold units on payment success. The
// quantity must already be reserved; commits exceeding reserved_count fail
// with ErrCommitExceedsReserved.
func (r *repository) Commit(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*LedgerChange, error) {
	var change *LedgerChange

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticketType, err := lockTicketType(tx, ticketTypeID)
		if err != nil {
			return err
		}

		if quantity > ticketType.ReservedCount {
			return fmt.Errorf("%w: requested %d, reserved %d for ticket type %s",
				ErrCommitExceedsReserved, quantity, ticketType.ReservedCount, ticketType.ID)
		}

		availableBefore := ticketType.Available()

		err = tx.Model(&TicketType{}).
			Where("id = ?", ticketTypeID).
			Updates(map[string]interface{}{
				"reserved_count": gorm.Expr("reserved_count - ?", quantity),
				"sold_count":     gorm.Expr("sold_count + ?", quantity),
				"updated_at":     time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to commit reservation: %w", err)
		}

		ticketType.ReservedCount -= quantity
		ticketType.SoldCount += quantity
		change = &LedgerChange{
			TicketType:      ticketType,
			AvailableBefore: availableBefore,
			AvailableAfter:  ticketType.Available(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}
