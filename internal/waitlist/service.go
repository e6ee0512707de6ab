package waitlist

import (
	"context"
	"time"

	"ticketflow/internal/inventory"
	"ticketflow/internal/notifications"
	"ticketflow/internal/shared/apperrors"
	"ticketflow/internal/shared/config"
	"ticketflow/internal/shared/constants"
	"ticketflow/pkg/cache"
	"ticketflow/pkg/logger"
	"ticketflow/pkg/metrics"

	"github.com/google/uuid"
)

// TicketTypeSource exposes the inventory read the waitlist needs: the current
// availability of a ticket type. Satisfied by the inventory service.
type TicketTypeSource interface {
	GetTicketType(ctx context.Context, id uuid.UUID) (*inventory.TicketType, error)
}

// Service manages queues for sold-out ticket types. It implements the
// inventory ledger's CapacityListener so freed capacity flows straight into
// notification offers.
type Service interface {
	// Join enqueues the user for a sold-out ticket type and returns the
	// created entry with its assigned position.
	Join(ctx context.Context, userID, eventID uuid.UUID, req JoinWaitlistRequest) (*WaitlistEntry, error)

	// Leave cancels the user's live entry and frees their position.
	Leave(ctx context.Context, userID, ticketTypeID uuid.UUID) error

	// GetPosition returns the user's effective position: one plus the number
	// of live entries queued before them.
	GetPosition(ctx context.Context, userID, ticketTypeID uuid.UUID) (*PositionResponse, error)

	// NotifyOnCapacity offers freed capacity to the frontmost waiting entries
	// whose requested quantity fits. Called by the inventory ledger whenever
	// a sold-out ticket type frees units.
	NotifyOnCapacity(ctx context.Context, ticketTypeID uuid.UUID, freedQuantity int) error

	// ExpireStaleNotifications closes response windows that lapsed without a
	// booking. Run by the scheduler.
	ExpireStaleNotifications(ctx context.Context) (int, error)
}

type service struct {
	repo         Repository
	source       TicketTypeSource
	publisher    notifications.Publisher
	cacheService cache.Service
	cfg          *config.Config
	logger       *logger.Logger
}

func NewService(
	repo Repository,
	source TicketTypeSource,
	publisher notifications.Publisher,
	cacheService cache.Service,
	cfg *config.Config,
	log *logger.Logger,
) Service {
	return &service{
		repo:         repo,
		source:       source,
		publisher:    publisher,
		cacheService: cacheService,
		cfg:          cfg,
		logger:       log,
	}
}

func (s *service) Join(ctx context.Context, userID, eventID uuid.UUID, req JoinWaitlistRequest) (*WaitlistEntry, error) {
	ticketType, err := s.source.GetTicketType(ctx, req.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if ticketType.EventID != eventID {
		return nil, apperrors.NewValidationError("ticket type does not belong to this event")
	}
	if ticketType.Available() > 0 {
		return nil, apperrors.NewValidationError("tickets are still available for " + ticketType.Name)
	}

	entry := &WaitlistEntry{
		UserID:            userID,
		EventID:           eventID,
		TicketTypeID:      req.TicketTypeID,
		QuantityRequested: req.Quantity,
		ContactEmail:      req.ContactEmail,
		Status:            StatusWaiting,
		JoinedAt:          time.Now(),
	}
	if err := s.repo.Join(ctx, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.NewEvent(notifications.EventWaitlistJoined, ticketType.Name, map[string]interface{}{
		"event_id":       eventID.String(),
		"ticket_type_id": req.TicketTypeID.String(),
		"position":       entry.Position,
		"quantity":       entry.QuantityRequested,
	}).WithRecipient(entry.ContactEmail))

	s.logger.InfoWithContext(ctx, "waitlist joined", map[string]interface{}{
		"ticket_type_id": req.TicketTypeID.String(),
		"position":       entry.Position,
	})
	return entry, nil
}

func (s *service) Leave(ctx context.Context, userID, ticketTypeID uuid.UUID) error {
	entry, err := s.repo.GetLiveEntry(ctx, userID, ticketTypeID)
	if err != nil {
		return err
	}

	if err := s.repo.Transition(ctx, entry.ID, entry.Status, StatusCancelled, nil); err != nil {
		return err
	}

	s.invalidatePosition(ctx, ticketTypeID, userID)
	return nil
}

func (s *service) GetPosition(ctx context.Context, userID, ticketTypeID uuid.UUID) (*PositionResponse, error) {
	var response PositionResponse

	cacheKey := constants.BuildWaitlistPositionKey(ticketTypeID.String(), userID.String())
	err := s.cacheService.GetOrSet(ctx, cacheKey, constants.TTL_WAITLIST_POSITION, func() (interface{}, error) {
		entry, err := s.repo.GetLiveEntry(ctx, userID, ticketTypeID)
		if err != nil {
			return nil, err
		}
		ahead, err := s.repo.CountAhead(ctx, entry)
		if err != nil {
			return nil, err
		}
		return ToPositionResponse(entry, ahead), nil
	}, &response)
	if err != nil {
		return nil, err
	}

	return &response, nil
}

// NotifyOnCapacity walks the front of the queue and opens response windows
// until the freed units are spoken for. Entries whose requested quantity does
// not fit the remaining budget are left waiting; a later, larger release will
// reach them.
func (s *service) NotifyOnCapacity(ctx context.Context, ticketTypeID uuid.UUID, freedQuantity int) error {
	if freedQuantity <= 0 {
		return nil
	}

	entries, err := s.repo.ListNotifiableBatch(ctx, ticketTypeID, freedQuantity, s.cfg.Waitlist.NotificationBatchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	deadline := now.Add(s.cfg.Waitlist.ResponseWindow)
	budget := freedQuantity
	notified := 0

	for i := range entries {
		entry := &entries[i]
		if entry.QuantityRequested > budget {
			continue
		}

		err := s.repo.Transition(ctx, entry.ID, StatusWaiting, StatusNotified, map[string]interface{}{
			"notified_at":       now,
			"response_deadline": deadline,
		})
		if err != nil {
			// A raced leave or a concurrent notifier already moved this
			// entry; the budget stays with the remaining candidates.
			if apperrors.IsInvalidStateTransition(err) {
				continue
			}
			return err
		}

		budget -= entry.QuantityRequested
		notified++

		s.publish(ctx, notifications.NewEvent(notifications.EventWaitlistNotified, ticketTypeID.String(), map[string]interface{}{
			"event_id":          entry.EventID.String(),
			"ticket_type_id":    ticketTypeID.String(),
			"quantity":          entry.QuantityRequested,
			"response_deadline": deadline.UTC().Format(time.RFC3339),
		}).WithRecipient(entry.ContactEmail))

		s.invalidatePosition(ctx, ticketTypeID, entry.UserID)

		if budget == 0 {
			break
		}
	}

	if notified > 0 {
		metrics.RecordWaitlistNotified(notified)
		s.logger.LogWaitlistNotified(ctx, ticketTypeID.String(), notified)
	}
	return nil
}

func (s *service) ExpireStaleNotifications(ctx context.Context) (int, error) {
	entries, err := s.repo.ListStaleNotified(ctx, time.Now(), s.cfg.Sweep.BatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range entries {
		entry := &entries[i]
		err := s.repo.Transition(ctx, entry.ID, StatusNotified, StatusExpired, nil)
		if err != nil {
			// Raced with a leave; the entry is already settled.
			if apperrors.IsInvalidStateTransition(err) {
				continue
			}
			return expired, err
		}
		expired++
		s.invalidatePosition(ctx, entry.TicketTypeID, entry.UserID)
	}
	return expired, nil
}

func (s *service) invalidatePosition(ctx context.Context, ticketTypeID, userID uuid.UUID) {
	key := constants.BuildWaitlistPositionKey(ticketTypeID.String(), userID.String())
	if err := s.cacheService.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate waitlist position cache",
			"ticket_type_id", ticketTypeID.String(), "error", err.Error())
	}
}

func (s *service) publish(ctx context.Context, event *notifications.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to publish waitlist event", err,
			map[string]interface{}{"event_type": string(event.Type)})
	}
}
