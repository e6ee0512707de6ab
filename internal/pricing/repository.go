package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketflow/internal/shared/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	GetCodeByCode(ctx context.Context, code string) (*DiscountCode, error)
	CountRedemptions(ctx context.Context, discountCodeID, userID uuid.UUID) (int64, error)

	// Redeem atomically increments times_used, guarded by the usage limit,
	// and records the redemption. Fails with DiscountInvalidError
	// (usage_exhausted) when the conditional update matches no row.
	Redeem(ctx context.Context, discountCodeID, userID, bookingID uuid.UUID, amount decimal.Decimal) error

	// ReleaseByBooking undoes a redemption when the owning checkout fails
	// after the redeem step. Idempotent: a missing redemption is a no-op.
	ReleaseByBooking(ctx context.Context, bookingID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetCodeByCode(ctx context.Context, code string) (*DiscountCode, error) {
	var discountCode DiscountCode
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		First(&discountCode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.DiscountInvalidError{
				Code:    code,
				Reason:  apperrors.DiscountNotApplicable,
				Message: "code not found",
			}
		}
		return nil, fmt.Errorf("failed to get discount code: %w", err)
	}
	return &discountCode, nil
}

func (r *repository) CountRedemptions(ctx context.Context, discountCodeID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&DiscountRedemption{}).
		Where("discount_code_id = ? AND user_id = ?", discountCodeID, userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}

func (r *repository) Redeem(ctx context.Context, discountCodeID, userID, bookingID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional increment: the WHERE clause re-checks the usage limit
		// so two concurrent redemptions of the last use cannot both win.
		result := tx.Model(&DiscountCode{}).
			Where("id = ? AND is_active = ? AND (usage_limit IS NULL OR times_used < usage_limit)",
				discountCodeID, true).
			Updates(map[string]interface{}{
				"times_used": gorm.Expr("times_used + 1"),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to increment discount usage: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return &apperrors.DiscountInvalidError{
				Code:    discountCodeID.String(),
				Reason:  apperrors.DiscountUsageExhausted,
				Message: "usage limit reached",
			}
		}

		redemption := &DiscountRedemption{
			DiscountCodeID: discountCodeID,
			UserID:         userID,
			BookingID:      bookingID,
			Amount:         amount,
		}
		if err := tx.Create(redemption).Error; err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		return nil
	})
}

func (r *repository) ReleaseByBooking(ctx context.Context, bookingID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var redemption DiscountRedemption
		err := tx.Where("booking_id = ?", bookingID).First(&redemption).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load redemption: %w", err)
		}

		err = tx.Model(&DiscountCode{}).
			Where("id = ?", redemption.DiscountCodeID).
			Updates(map[string]interface{}{
				"times_used": gorm.Expr("GREATEST(times_used - 1, 0)"),
				"updated_at": time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to decrement discount usage: %w", err)
		}

		if err := tx.Delete(&redemption).Error; err != nil {
			return fmt.Errorf("failed to delete redemption: %w", err)
		}
		return nil
	})
}
