package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketflow/internal/bookings"
	"ticketflow/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// IssueForItem creates the item's tickets and flips its tickets_issued
	// flag in one transaction. The conditional flag update is the idempotence
	// guard: a second issuance attempt for the same item creates nothing and
	// returns issued=false.
	IssueForItem(ctx context.Context, itemID uuid.UUID, tickets []Ticket) (bool, error)

	GetByCode(ctx context.Context, code string) (*Ticket, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetByBooking(ctx context.Context, bookingID uuid.UUID) ([]Ticket, error)
	GetUserTickets(ctx context.Context, userID uuid.UUID, page, limit int) ([]Ticket, int64, error)

	// CheckIn is a guarded conditional update; exactly one of two concurrent
	// scans of the same code wins.
	CheckIn(ctx context.Context, ticketID uuid.UUID, location, by string, at time.Time) error

	// Transfer swaps the holder and appends the immutable transfer record in
	// one transaction, guarded on the ticket still being active and unscanned.
	Transfer(ctx context.Context, ticketID uuid.UUID, transfer *TicketTransfer) error

	// TransitionStatus is the guarded status move used for cancellation and
	// refund completion.
	TransitionStatus(ctx context.Context, ticketID uuid.UUID, from, to Status, updates map[string]interface{}) error

	CancelActiveByBooking(ctx context.Context, bookingID uuid.UUID, reason string) (int, error)

	GetTransfers(ctx context.Context, ticketID uuid.UUID) ([]TicketTransfer, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) IssueForItem(ctx context.Context, itemID uuid.UUID, tickets []Ticket) (bool, error) {
	issued := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&bookings.BookingItem{}).
			Where("id = ? AND tickets_issued = ?", itemID, false).
			Update("tickets_issued", true)
		if result.Error != nil {
			return fmt.Errorf("failed to mark booking item issued: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Already issued; nothing to create.
			return nil
		}
		if err := tx.Create(&tickets).Error; err != nil {
			return fmt.Errorf("failed to create tickets: %w", err)
		}
		issued = true
		return nil
	})
	return issued, err
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Ticket, error) {
	var ticket Ticket
	err := r.db.WithContext(ctx).Where("ticket_code = ?", code).First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "ticket", ID: code}
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var ticket Ticket
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "ticket", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

func (r *repository) GetByBooking(ctx context.Context, bookingID uuid.UUID) ([]Ticket, error) {
	var tickets []Ticket
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list booking tickets: %w", err)
	}
	return tickets, nil
}

func (r *repository) GetUserTickets(ctx context.Context, userID uuid.UUID, page, limit int) ([]Ticket, int64, error) {
	query := r.db.WithContext(ctx).Model(&Ticket{}).Where("owner_user_id = ?", userID)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	var tickets []Ticket
	offset := (page - 1) * limit
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tickets).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, totalCount, nil
}

func (r *repository) CheckIn(ctx context.Context, ticketID uuid.UUID, location, by string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&Ticket{}).
		Where("id = ? AND status = ? AND checked_in = ?", ticketID, StatusActive, false).
		Updates(map[string]interface{}{
			"status":              StatusUsed,
			"checked_in":          true,
			"checked_in_at":       at,
			"checked_in_location": location,
			"checked_in_by":       by,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to check in ticket: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var current Ticket
		if err := r.db.WithContext(ctx).Select("ticket_code", "checked_in").Where("id = ?", ticketID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &apperrors.NotFoundError{Resource: "ticket", ID: ticketID.String()}
			}
			return fmt.Errorf("failed to re-read ticket: %w", err)
		}
		if current.CheckedIn {
			return &apperrors.CheckInError{TicketCode: current.TicketCode, Reason: apperrors.CheckInAlreadyCheckedIn}
		}
		return &apperrors.CheckInError{TicketCode: current.TicketCode, Reason: apperrors.CheckInInvalidTicket}
	}
	return nil
}

func (r *repository) Transfer(ctx context.Context, ticketID uuid.UUID, transfer *TicketTransfer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Ticket{}).
			Where("id = ? AND status = ? AND checked_in = ?", ticketID, StatusActive, false).
			Updates(map[string]interface{}{
				"holder_name":    transfer.ToName,
				"holder_email":   transfer.ToEmail,
				"transfer_count": gorm.Expr("transfer_count + 1"),
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to transfer ticket: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return &apperrors.TransferError{Reason: apperrors.TransferTicketNotActive}
		}

		transfer.TicketID = ticketID
		if err := tx.Create(transfer).Error; err != nil {
			return fmt.Errorf("failed to record transfer: %w", err)
		}
		return nil
	})
}

func (r *repository) TransitionStatus(ctx context.Context, ticketID uuid.UUID, from, to Status, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&Ticket{}).
		Where("id = ? AND status = ?", ticketID, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update ticket status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &apperrors.InvalidStateTransitionError{
			Entity: "ticket",
			From:   from.String(),
			To:     to.String(),
		}
	}
	return nil
}

func (r *repository) CancelActiveByBooking(ctx context.Context, bookingID uuid.UUID, reason string) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&Ticket{}).
		Where("booking_id = ? AND status = ?", bookingID, StatusActive).
		Updates(map[string]interface{}{
			"status":              StatusCancelled,
			"cancellation_reason": reason,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cancel booking tickets: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *repository) GetTransfers(ctx context.Context, ticketID uuid.UUID) ([]TicketTransfer, error) {
	var transfers []TicketTransfer
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&transfers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}
