package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ticketflow/internal/shared/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByTxnRef(ctx context.Context, txnRef string) (*Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error)

	// Transition moves a payment between states with a guarded conditional
	// update pinning the expected current status; the loser of a raced
	// transition gets an InvalidStateTransitionError.
	Transition(ctx context.Context, paymentID uuid.UUID, from, to Status, updates map[string]interface{}) error

	// RecordRetry atomically re-opens a failed payment, guarded by the
	// retry budget inside the WHERE clause.
	RecordRetry(ctx context.Context, paymentID uuid.UUID) error

	CreateRefund(ctx context.Context, refund *Refund) error
	GetRefundByRef(ctx context.Context, refundRef string) (*Refund, error)
	TransitionRefund(ctx context.Context, refundID uuid.UUID, from, to RefundStatus, updates map[string]interface{}) error

	// SumActiveRefunds totals refunds that are holding a slice of the
	// payment amount (pending, processing or completed).
	SumActiveRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	SumCompletedRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)

	// CreateSettlement writes the settlement row and flips the payment's
	// settled flag in one transaction; the conditional update makes
	// settlement one-way and one-time.
	CreateSettlement(ctx context.Context, settlement *Settlement) error

	ListUnsettledCompleted(ctx context.Context, limit int) ([]Payment, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Payment, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment *Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *repository) GetByTxnRef(ctx context.Context, txnRef string) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).
		Preload("Refunds").
		Where("transaction_ref = ?", txnRef).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "payment", ID: txnRef}
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "payment", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *repository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "payment", ID: bookingID.String()}
		}
		return nil, fmt.Errorf("failed to get payment by booking: %w", err)
	}
	return &payment, nil
}

func (r *repository) Transition(ctx context.Context, paymentID uuid.UUID, from, to Status, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND status = ?", paymentID, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update payment status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var current Payment
		if err := r.db.WithContext(ctx).Select("status").Where("id = ?", paymentID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &apperrors.NotFoundError{Resource: "payment", ID: paymentID.String()}
			}
			return fmt.Errorf("failed to re-read payment: %w", err)
		}
		return &apperrors.InvalidStateTransitionError{
			Entity: "payment",
			From:   current.Status.String(),
			To:     to.String(),
		}
	}
	return nil
}

func (r *repository) RecordRetry(ctx context.Context, paymentID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND status = ? AND retry_count < max_retries", paymentID, StatusFailed).
		Updates(map[string]interface{}{
			"status":         StatusPending,
			"retry_count":    gorm.Expr("retry_count + 1"),
			"failure_reason": "",
			"failure_code":   "",
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record payment retry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &apperrors.InvalidStateTransitionError{
			Entity: "payment",
			From:   StatusFailed.String(),
			To:     StatusPending.String(),
		}
	}
	return nil
}

func (r *repository) CreateRefund(ctx context.Context, refund *Refund) error {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

func (r *repository) GetRefundByRef(ctx context.Context, refundRef string) (*Refund, error) {
	var refund Refund
	err := r.db.WithContext(ctx).
		Where("refund_ref = ?", refundRef).
		First(&refund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "refund", ID: refundRef}
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return &refund, nil
}

func (r *repository) TransitionRefund(ctx context.Context, refundID uuid.UUID, from, to RefundStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&Refund{}).
		Where("id = ? AND status = ?", refundID, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update refund status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var current Refund
		if err := r.db.WithContext(ctx).Select("status").Where("id = ?", refundID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &apperrors.NotFoundError{Resource: "refund", ID: refundID.String()}
			}
			return fmt.Errorf("failed to re-read refund: %w", err)
		}
		return &apperrors.InvalidStateTransitionError{
			Entity: "refund",
			From:   current.Status.String(),
			To:     to.String(),
		}
	}
	return nil
}

func (r *repository) SumActiveRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	return r.sumRefunds(ctx, paymentID,
		[]RefundStatus{RefundStatusPending, RefundStatusProcessing, RefundStatusCompleted})
}

func (r *repository) SumCompletedRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	return r.sumRefunds(ctx, paymentID, []RefundStatus{RefundStatusCompleted})
}

func (r *repository) sumRefunds(ctx context.Context, paymentID uuid.UUID, statuses []RefundStatus) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&Refund{}).
		Select("SUM(amount)").
		Where("payment_id = ? AND status IN ?", paymentID, statuses).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum refunds: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repository) CreateSettlement(ctx context.Context, settlement *Settlement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Payment{}).
			Where("id = ? AND settled = ?", settlement.PaymentID, false).
			Updates(map[string]interface{}{
				"settled":        true,
				"settlement_ref": settlement.SettlementRef,
				"settled_amount": settlement.NetAmount,
				"settled_at":     settlement.SettledAt,
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark payment settled: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return &apperrors.InvalidStateTransitionError{
				Entity: "payment",
				From:   "settled",
				To:     "settled",
			}
		}

		if err := tx.Create(settlement).Error; err != nil {
			return fmt.Errorf("failed to create settlement: %w", err)
		}
		return nil
	})
}

func (r *repository) ListUnsettledCompleted(ctx context.Context, limit int) ([]Payment, error) {
	var payments []Payment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND settled = ?", []Status{StatusCompleted, StatusPartiallyRefunded}, false).
		Order("payment_date ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled payments: %w", err)
	}
	return payments, nil
}

func (r *repository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Payment, error) {
	var payments []Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	return payments, nil
}
