package inventory

import (
	"context"
	"time"

	"ticketflow/internal/shared/apperrors"
	"ticketflow/internal/shared/constants"
	"ticketflow/pkg/cache"
	"ticketflow/pkg/logger"
	"ticketflow/pkg/metrics"

	"github.com/google/uuid"
)

// CapacityListener is notified when a sold-out ticket type becomes available
// again (a reservation released or capacity otherwise freed). Implemented by
// the waitlist module and wired at startup; kept as a narrow interface so the
// ledger never imports waitlist code.
type CapacityListener interface {
	NotifyOnCapacity(ctx context.Context, ticketTypeID uuid.UUID, freedQuantity int) error
}

// Service is the inventory ledger: the single source of truth for ticket-type
// capacity. All capacity changes anywhere in the system go through Reserve,
// Release and Commit.
type Service interface {
	GetTicketType(ctx context.Context, id uuid.UUID) (*TicketType, error)
	GetTicketTypes(ctx context.Context, ids []uuid.UUID) ([]TicketType, error)
	GetEventTicketTypes(ctx context.Context, eventID uuid.UUID) ([]TicketTypeResponse, error)
	GetAvailability(ctx context.Context, ticketTypeID uuid.UUID) (*AvailabilityResponse, error)

	Reserve(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*Reservation, error)
	Release(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error
	Commit(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error

	// SetCapacityListener wires the waitlist notifier after construction so
	// neither package constructs the other.
	SetCapacityListener(listener CapacityListener)
}

type service struct {
	repo         Repository
	cacheService cache.Service
	logger       *logger.Logger
	listener     CapacityListener
}

func NewService(repo Repository, cacheService cache.Service, log *logger.Logger) Service {
	return &service{
		repo:         repo,
		cacheService: cacheService,
		logger:       log,
	}
}

func (s *service) SetCapacityListener(listener CapacityListener) {
	s.listener = listener
}

func (s *service) GetTicketType(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetTicketTypes(ctx context.Context, ids []uuid.UUID) ([]TicketType, error) {
	return s.repo.GetByIDs(ctx, ids)
}

func (s *service) GetEventTicketTypes(ctx context.Context, eventID uuid.UUID) ([]TicketTypeResponse, error) {
	var responses []TicketTypeResponse

	cacheKey := constants.BuildEventTicketTypesKey(eventID.String())
	err := s.cacheService.GetOrSet(ctx, cacheKey, constants.TTL_EVENT_TICKET_TYPE, func() (interface{}, error) {
		ticketTypes, err := s.repo.GetByEventID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		return ToTicketTypeResponses(ticketTypes, time.Now()), nil
	}, &responses)
	if err != nil {
		return nil, err
	}

	return responses, nil
}

func (s *service) GetAvailability(ctx context.Context, ticketTypeID uuid.UUID) (*AvailabilityResponse, error) {
	var response AvailabilityResponse

	cacheKey := constants.BuildAvailabilityKey(ticketTypeID.String())
	err := s.cacheService.GetOrSet(ctx, cacheKey, constants.TTL_AVAILABILITY, func() (interface{}, error) {
		ticketType, err := s.repo.GetByID(ctx, ticketTypeID)
		if err != nil {
			return nil, err
		}
		return ToAvailabilityResponse(ticketType, time.Now()), nil
	}, &response)
	if err != nil {
		return nil, err
	}

	return &response, nil
}

// Reserve places a hold on inventory. The sale-window check and the
// availability check both happen under the row lock inside the repository
// transaction, so two concurrent calls for the last unit cannot both succeed.
func (s *service) Reserve(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*Reservation, error) {
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("reservation quantity must be positive")
	}

	ticketType, err := s.repo.GetByID(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch ticketType.SaleStatusAt(now) {
	case SaleStatusUpcoming:
		return nil, apperrors.NewValidationError("ticket sales have not started for " + ticketType.Name)
	case SaleStatusEnded:
		return nil, apperrors.NewValidationError("ticket sales have ended for " + ticketType.Name)
	}

	change, err := s.repo.Reserve(ctx, ticketTypeID, quantity)
	if err != nil {
		if apperrors.IsInsufficientInventory(err) {
			metrics.RecordReservationRejected()
			s.logger.LogInventoryRejection(ctx, ticketTypeID.String(), quantity, ticketType.Available())
		}
		return nil, err
	}

	s.invalidateAvailability(ctx, change.TicketType)

	return &Reservation{
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
		UnitPrice:    change.TicketType.CurrentPrice(now),
		ReservedAt:   now,
	}, nil
}

// Release frees a hold that will not become a sale (expiry, cancellation,
// failed checkout). Over-release is clamped inside the repository, so calling
// this twice for the same hold is safe.
func (s *service) Release(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	change, err := s.repo.Release(ctx, ticketTypeID, quantity)
	if err != nil {
		return err
	}

	s.invalidateAvailability(ctx, change.TicketType)
	s.notifyIfFreed(ctx, change)
	return nil
}

// Commit converts a hold into a sale on payment success.
func (s *service) Commit(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	change, err := s.repo.Commit(ctx, ticketTypeID, quantity)
	if err != nil {
		return err
	}

	s.invalidateAvailability(ctx, change.TicketType)
	s.notifyIfFreed(ctx, change)
	return nil
}

// notifyIfFreed hands freed capacity to the waitlist. Notification failures
// are logged and dropped; inventory truth is independent of notification
// success.
func (s *service) notifyIfFreed(ctx context.Context, change *LedgerChange) {
	if s.listener == nil || !change.FreedFromSoldOut() {
		return
	}

	ticketTypeID := change.TicketType.ID
	if err := s.listener.NotifyOnCapacity(ctx, ticketTypeID, change.AvailableAfter); err != nil {
		s.logger.ErrorWithContext(ctx, "waitlist capacity notification failed", err, map[string]interface{}{
			"ticket_type_id": ticketTypeID.String(),
			"freed":          change.AvailableAfter,
		})
	}
}

func (s *service) invalidateAvailability(ctx context.Context, ticketType *TicketType) {
	if err := s.cacheService.Delete(ctx, constants.BuildAvailabilityKey(ticketType.ID.String())); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate availability cache",
			"ticket_type_id", ticketType.ID.String(), "error", err.Error())
	}
	if err := s.cacheService.Delete(ctx, constants.BuildEventTicketTypesKey(ticketType.EventID.String())); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate event ticket types cache",
			"event_id", ticketType.EventID.String(), "error", err.Error())
	}
}
