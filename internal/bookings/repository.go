package bookings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ticketflow/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CreateWithItems(ctx context.Context, booking *Booking, history *BookingStatusHistory) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByRef(ctx context.Context, bookingRef string) (*Booking, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, query ListQuery) ([]Booking, int64, error)
	GetHistory(ctx context.Context, bookingID uuid.UUID) ([]BookingStatusHistory, error)

	// Transition moves a booking between states with a guarded conditional
	// update: the WHERE clause pins the expected current status, so when a
	// sweep and a user action race only one mover wins. The loser gets an
	// InvalidStateTransitionError. A history row is appended in the same
	// transaction.
	Transition(ctx context.Context, bookingID uuid.UUID, from, to Status, updates map[string]interface{}, history *BookingStatusHistory) error

	UpdatePaymentStatus(ctx context.Context, bookingID uuid.UUID, paymentStatus PaymentStatus) error
	MarkItemsIssued(ctx context.Context, bookingID uuid.UUID, itemIDs []uuid.UUID) error

	ListExpired(ctx context.Context, now time.Time, limit int) ([]Booking, error)
	HasPriorPaidBooking(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ListQuery carries pagination and filters for booking listings.
type ListQuery struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	Status   string `form:"status"`
	EventID  string `form:"event_id"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateWithItems(ctx context.Context, booking *Booking, history *BookingStatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		history.BookingID = booking.ID
		if err := tx.Create(history).Error; err != nil {
			return fmt.Errorf("failed to create booking history: %w", err)
		}
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "booking", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *repository) GetByRef(ctx context.Context, bookingRef string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Event").
		Where("booking_ref = ?", bookingRef).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "booking", ID: bookingRef}
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *repository) GetUserBookings(ctx context.Context, userID uuid.UUID, query ListQuery) ([]Booking, int64, error) {
	var bookings []Booking
	var totalCount int64

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}

	baseQuery := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("user_id = ?", userID)
	baseQuery = r.applyFilters(baseQuery, query)

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Preload("Items").
		Preload("Event").
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, totalCount, nil
}

func (r *repository) GetHistory(ctx context.Context, bookingID uuid.UUID) ([]BookingStatusHistory, error) {
	var history []BookingStatusHistory
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get booking history: %w", err)
	}
	return history, nil
}

func (r *repository) Transition(ctx context.Context, bookingID uuid.UUID, from, to Status, updates map[string]interface{}, history *BookingStatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if updates == nil {
			updates = map[string]interface{}{}
		}
		updates["status"] = to
		updates["updated_at"] = time.Now()

		result := tx.Model(&Booking{}).
			Where("id = ? AND status = ?", bookingID, from).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update booking status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Someone else moved the booking first, or the caller's view
			// is stale. Re-read for an accurate error.
			var current Booking
			if err := tx.Select("status").Where("id = ?", bookingID).First(&current).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &apperrors.NotFoundError{Resource: "booking", ID: bookingID.String()}
				}
				return fmt.Errorf("failed to re-read booking: %w", err)
			}
			return &apperrors.InvalidStateTransitionError{
				Entity: "booking",
				From:   current.Status.String(),
				To:     to.String(),
			}
		}

		history.BookingID = bookingID
		history.PreviousStatus = from
		history.NewStatus = to
		if err := tx.Create(history).Error; err != nil {
			return fmt.Errorf("failed to append booking history: %w", err)
		}
		return nil
	})
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, bookingID uuid.UUID, paymentStatus PaymentStatus) error {
	err := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"payment_status": paymentStatus,
			"updated_at":     time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

func (r *repository) MarkItemsIssued(ctx context.Context, bookingID uuid.UUID, itemIDs []uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&BookingItem{}).
		Where("booking_id = ? AND id IN ?", bookingID, itemIDs).
		Update("tickets_issued", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark items issued: %w", err)
	}
	return nil
}

func (r *repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	var bookings []Booking
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND payment_status = ? AND expires_at < ?",
			StatusPending, PaymentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bookings: %w", err)
	}
	return bookings, nil
}

func (r *repository) HasPriorPaidBooking(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("user_id = ? AND status IN ?", userID,
			[]Status{StatusPaid, StatusRefunded, StatusPartiallyRefunded}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check purchase history: %w", err)
	}
	return count > 0, nil
}

// applyFilters applies list filters to the GORM query.
func (r *repository) applyFilters(query *gorm.DB, filters ListQuery) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.EventID != "" {
		if eventID, err := uuid.Parse(filters.EventID); err == nil {
			query = query.Where("event_id = ?", eventID)
		}
	}

	if filters.DateFrom != "" {
		if dateFrom, err := time.Parse("2006-01-02", filters.DateFrom); err == nil {
			query = query.Where("created_at >= ?", dateFrom)
		}
	}

	if filters.DateTo != "" {
		if dateTo, err := time.Parse("2006-01-02", filters.DateTo); err == nil {
			dateTo = dateTo.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
			query = query.Where("created_at <= ?", dateTo)
		}
	}

	return query
}

// CalculateTotalPages is used by the listing responses.
func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}
