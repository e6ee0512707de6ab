package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ticketflow/internal/shared/apperrors"
)

// Repository is a read-only view of the catalog service's events table.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Resource: "event", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}
