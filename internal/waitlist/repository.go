package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketflow/internal/inventory"
	"ticketflow/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// Join assigns the next queue position and inserts the entry, both under
	// the ticket-type row lock so two concurrent joins cannot share a
	// position.
	Join(ctx context.Context, entry *WaitlistEntry) error

	GetByID(ctx context.Context, id uuid.UUID) (*WaitlistEntry, error)

	// GetLiveEntry returns the user's WAITING or NOTIFIED entry for a ticket
	// type, if any.
	GetLiveEntry(ctx context.Context, userID, ticketTypeID uuid.UUID) (*WaitlistEntry, error)

	// CountAhead counts live entries queued before the given one; the
	// effective position is that count plus one.
	CountAhead(ctx context.Context, entry *WaitlistEntry) (int64, error)

	CountWaiting(ctx context.Context, ticketTypeID uuid.UUID) (int64, error)

	// Transition performs a guarded status change; callers racing for the
	// same entry settle on one winner.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, updates map[string]interface{}) error

	// ListNotifiableBatch returns the frontmost WAITING entries whose
	// requested quantity fits within the freed capacity.
	ListNotifiableBatch(ctx context.Context, ticketTypeID uuid.UUID, freed, limit int) ([]WaitlistEntry, error)

	// ListStaleNotified returns NOTIFIED entries whose response deadline has
	// passed.
	ListStaleNotified(ctx context.Context, cutoff time.Time, limit int) ([]WaitlistEntry, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

var liveStatuses = []Status{StatusWaiting, StatusNotified}

func (r *repository) Join(ctx context.Context, entry *WaitlistEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The ticket-type row lock serializes position assignment with other
		// joins and with the capacity notifier.
		var ticketType inventory.TicketType
		err := tx.
			Set("gorm:query_option", "FOR UPDATE").
			Where("id = ?", entry.TicketTypeID).
			First(&ticketType).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &apperrors.NotFoundError{Resource: "ticket type", ID: entry.TicketTypeID.String()}
			}
			return fmt.Errorf("failed to lock ticket type: %w", err)
		}

		var existing int64
		err = tx.Model(&WaitlistEntry{}).
			Where("user_id = ? AND ticket_type_id = ? AND status IN ?", entry.UserID, entry.TicketTypeID, liveStatuses).
			Count(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to check existing waitlist entry: %w", err)
		}
		if existing > 0 {
			return apperrors.NewValidationError("already on the waitlist for this ticket type")
		}

		var maxPosition int64
		err = tx.Model(&WaitlistEntry{}).
			Where("ticket_type_id = ?", entry.TicketTypeID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&maxPosition).Error
		if err != nil {
			return fmt.Errorf("failed to compute waitlist position: %w", err)
		}

		entry.Position = int(maxPosition) + 1
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create waitlist entry: %w", err)
		}
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*WaitlistEntry, error) {
	var entry WaitlistEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "waitlist entry", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return &entry, nil
}

func (r *repository) GetLiveEntry(ctx context.Context, userID, ticketTypeID uuid.UUID) (*WaitlistEntry, error) {
	var entry WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ticket_type_id = ? AND status IN ?", userID, ticketTypeID, liveStatuses).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "waitlist entry", ID: ticketTypeID.String()}
		}
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return &entry, nil
}

func (r *repository) CountAhead(ctx context.Context, entry *WaitlistEntry) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&WaitlistEntry{}).
		Where("ticket_type_id = ? AND position < ? AND status IN ?", entry.TicketTypeID, entry.Position, liveStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count entries ahead: %w", err)
	}
	return count, nil
}

func (r *repository) CountWaiting(ctx context.Context, ticketTypeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&WaitlistEntry{}).
		Where("ticket_type_id = ? AND status = ?", ticketTypeID, StatusWaiting).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count waiting entries: %w", err)
	}
	return count, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to Status, updates map[string]interface{}) error {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for key, value := range updates {
		values[key] = value
	}

	result := r.db.WithContext(ctx).Model(&WaitlistEntry{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to transition waitlist entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return &apperrors.InvalidStateTransitionError{
			Entity: "waitlist entry",
			From:   current.Status.String(),
			To:     to.String(),
		}
	}
	return nil
}

func (r *repository) ListNotifiableBatch(ctx context.Context, ticketTypeID uuid.UUID, freed, limit int) ([]WaitlistEntry, error) {
	var entries []WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("ticket_type_id = ? AND status = ? AND quantity_requested <= ?", ticketTypeID, StatusWaiting, freed).
		Order("position ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifiable entries: %w", err)
	}
	return entries, nil
}

func (r *repository) ListStaleNotified(ctx context.Context, cutoff time.Time, limit int) ([]WaitlistEntry, error) {
	var entries []WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND response_deadline IS NOT NULL AND response_deadline < ?", StatusNotified, cutoff).
		Order("response_deadline ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale notified entries: %w", err)
	}
	return entries, nil
}
