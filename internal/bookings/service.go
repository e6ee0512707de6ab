package bookings

import (
	"context"
	"fmt"
	"time"

	"ticketflow/internal/events"
	"ticketflow/internal/inventory"
	"ticketflow/internal/notifications"
	"ticketflow/internal/pricing"
	"ticketflow/internal/shared/apperrors"
	"ticketflow/internal/shared/config"
	"ticketflow/internal/shared/constants"
	"ticketflow/internal/users"
	"ticketflow/pkg/cache"
	"ticketflow/pkg/logger"
	"ticketflow/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryLedger is the slice of the inventory service the state machine
// drives. Reserve happens at checkout, Release on every failure/expiry path,
// Commit only when a payment completes.
type InventoryLedger interface {
	GetTicketTypes(ctx context.Context, ids []uuid.UUID) ([]inventory.TicketType, error)
	Reserve(ctx context.Context, ticketTypeID uuid.UUID, quantity int) (*inventory.Reservation, error)
	Release(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error
	Commit(ctx context.Context, ticketTypeID uuid.UUID, quantity int) error
}

// PricingEngine quotes totals and handles discount validation, redemption and
// compensating release.
type PricingEngine interface {
	PriceItems(ctx context.Context, items []pricing.RequestedItem) (*pricing.Quote, error)
	ApplyDiscount(ctx context.Context, code string, dctx pricing.DiscountContext) (*pricing.DiscountResult, error)
	RedeemDiscount(ctx context.Context, discountCodeID, userID, bookingID uuid.UUID, amount decimal.Decimal) error
	ReleaseDiscount(ctx context.Context, bookingID uuid.UUID) error
}

// TicketIssuer materializes and cancels ticket instances. Implemented by the
// tickets module and wired at startup; a narrow interface so bookings never
// imports ticket code.
type TicketIssuer interface {
	IssueForBooking(ctx context.Context, bookingID uuid.UUID) (int, error)
	CancelForBooking(ctx context.Context, bookingID uuid.UUID, reason string) (int, error)
}

// EventCatalog is the external catalog collaborator.
type EventCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error)
}

// ContactDirectory resolves booking contacts from the external identity service.
type ContactDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Service is the booking state machine. It owns every lifecycle transition
// and orchestrates the inventory ledger and pricing engine so that a checkout
// either fully succeeds or leaves no trace.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateBookingRequest) (*Booking, error)
	Confirm(ctx context.Context, bookingRef string, by string) (*Booking, error)
	Cancel(ctx context.Context, bookingRef string, by string, reason string) (*Booking, error)

	GetBooking(ctx context.Context, userID uuid.UUID, role string, bookingRef string) (*Booking, error)
	GetUserBookings(ctx context.Context, userID uuid.UUID, query ListQuery) ([]Booking, int64, error)

	// GetBookingByID is the internal read used by the payment orchestrator;
	// it bypasses ownership checks and must not be exposed over HTTP.
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetHistory(ctx context.Context, userID uuid.UUID, role string, bookingRef string) ([]BookingStatusHistory, error)

	// MarkPaid is the idempotent choke point the payment orchestrator calls
	// on payment success. It commits reserved inventory and triggers ticket
	// issuance exactly once per booking.
	MarkPaid(ctx context.Context, bookingID uuid.UUID) error

	// MarkPaymentFailed mirrors a terminally failed payment onto the booking.
	MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error

	// MarkRefunded moves a paid booking to refunded/partially refunded when
	// its payment's refunds complete.
	MarkRefunded(ctx context.Context, bookingID uuid.UUID, partial bool) error

	// Expire releases a pending booking whose hold ran out. ExpireOverdue is
	// the sweep entry point.
	Expire(ctx context.Context, bookingID uuid.UUID) error
	ExpireOverdue(ctx context.Context, batchSize int) (int, error)

	// HasPriorPaidBooking backs the pricing engine's first-time-buyer check.
	HasPriorPaidBooking(ctx context.Context, userID uuid.UUID) (bool, error)

	// SetTicketIssuer wires the tickets module after construction so neither
	// package constructs the other.
	SetTicketIssuer(issuer TicketIssuer)
}

type service struct {
	repo         Repository
	ledger       InventoryLedger
	pricer       PricingEngine
	catalog      EventCatalog
	contacts     ContactDirectory
	issuer       TicketIssuer
	publisher    notifications.Publisher
	cacheService cache.Service
	logger       *logger.Logger
	expiry       time.Duration
	currency     string
}

func NewService(
	repo Repository,
	ledger InventoryLedger,
	pricer PricingEngine,
	catalog EventCatalog,
	contacts ContactDirectory,
	publisher notifications.Publisher,
	cacheService cache.Service,
	cfg *config.Config,
	log *logger.Logger,
) Service {
	return &service{
		repo:         repo,
		ledger:       ledger,
		pricer:       pricer,
		catalog:      catalog,
		contacts:     contacts,
		publisher:    publisher,
		cacheService: cacheService,
		logger:       log,
		expiry:       cfg.Booking.ExpiryDuration,
		currency:     cfg.Payment.DefaultCurrency,
	}
}

func (s *service) SetTicketIssuer(issuer TicketIssuer) {
	s.issuer = issuer
}

// reservedItem tracks one successful hold so a later failure in the same
// checkout can compensate it.
type reservedItem struct {
	ticketTypeID uuid.UUID
	quantity     int
}

// Create runs the whole checkout: validate, reserve every line, price, apply
// the discount, persist. Any failure after the first successful reservation
// releases everything already held before returning, so a rejected checkout
// leaves no inventory footprint.
func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateBookingRequest) (*Booking, error) {
	started := time.Now()

	event, err := s.catalog.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsBookable(started) {
		return nil, apperrors.NewValidationError("event is not open for booking")
	}

	ticketTypeIDs := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		ticketTypeIDs = append(ticketTypeIDs, item.TicketTypeID)
	}

	ticketTypes, err := s.ledger.GetTicketTypes(ctx, ticketTypeIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*inventory.TicketType, len(ticketTypes))
	for i := range ticketTypes {
		byID[ticketTypes[i].ID] = &ticketTypes[i]
	}

	for _, item := range req.Items {
		ticketType, ok := byID[item.TicketTypeID]
		if !ok {
			return nil, &apperrors.NotFoundError{Resource: "ticket type", ID: item.TicketTypeID.String()}
		}
		if ticketType.EventID != req.EventID {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("ticket type %s does not belong to this event", ticketType.Name))
		}
		if !ticketType.CanPurchaseQuantity(item.Quantity) {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("quantity for %s must be between %d and %d",
					ticketType.Name, ticketType.MinPurchase, ticketType.MaxPurchase))
		}
	}

	quote, err := s.pricer.PriceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	// Reserve line by line; compensate everything held so far on the first
	// failure so partially reserved checkouts never escape this function.
	reserved := make([]reservedItem, 0, len(req.Items))
	for _, item := range req.Items {
		if _, err := s.ledger.Reserve(ctx, item.TicketTypeID, item.Quantity); err != nil {
			s.releaseAll(ctx, reserved)
			return nil, err
		}
		reserved = append(reserved, reservedItem{ticketTypeID: item.TicketTypeID, quantity: item.Quantity})
	}

	var discountResult *pricing.DiscountResult
	if req.DiscountCode != "" {
		discountResult, err = s.pricer.ApplyDiscount(ctx, req.DiscountCode, pricing.DiscountContext{
			UserID:        userID,
			EventID:       req.EventID,
			TicketTypeIDs: ticketTypeIDs,
			Subtotal:      quote.Subtotal,
		})
		if err != nil {
			s.releaseAll(ctx, reserved)
			return nil, err
		}
		quote.DiscountAmount = discountResult.Amount
	}

	booking := s.buildBooking(userID, req, quote, discountResult)
	history := &BookingStatusHistory{
		NewStatus: StatusPending,
		ChangedBy: userID.String(),
		Reason:    "booking created",
	}
	if err := s.repo.CreateWithItems(ctx, booking, history); err != nil {
		s.releaseAll(ctx, reserved)
		return nil, err
	}

	if discountResult != nil {
		err := s.pricer.RedeemDiscount(ctx, discountResult.Code.ID, userID, booking.ID, discountResult.Amount)
		if err != nil {
			// The booking row exists but its discount could not be claimed
			// (raced out of the last use). Tear the checkout down.
			s.releaseAll(ctx, reserved)
			s.abandonBooking(ctx, booking, "discount redemption failed")
			return nil, err
		}
	}

	metrics.RecordBookingCreated()
	metrics.ObserveCheckoutDuration(time.Since(started))
	s.logger.LogBookingCreated(ctx, booking.BookingRef, booking.EventID.String(), userID.String())
	s.invalidateUserBookings(ctx, userID)
	s.publish(ctx, notifications.NewEvent(notifications.EventBookingCreated, booking.BookingRef, map[string]interface{}{
		"booking_reference": booking.BookingRef,
		"event_id":          booking.EventID.String(),
		"total_amount":      booking.TotalAmount.StringFixed(2),
		"expires_at":        booking.ExpiresAt,
	}).WithRecipient(booking.ContactEmail))

	return booking, nil
}

func (s *service) buildBooking(userID uuid.UUID, req CreateBookingRequest, quote *pricing.Quote, discount *pricing.DiscountResult) *Booking {
	now := time.Now()

	booking := &Booking{
		BookingRef:     NewBookingRef(),
		UserID:         userID,
		EventID:        req.EventID,
		Status:         StatusPending,
		PaymentStatus:  PaymentStatusPending,
		ContactName:    req.ContactName,
		ContactEmail:   req.ContactEmail,
		ContactPhone:   req.ContactPhone,
		BillingAddress: req.BillingAddress,
		Subtotal:       quote.Subtotal,
		ServiceFees:    quote.ServiceFees,
		Tax:            quote.Tax,
		DiscountAmount: quote.DiscountAmount,
		TotalAmount:    quote.Total(),
		Currency:       s.currency,
		ExpiresAt:      now.Add(s.expiry),
	}
	if discount != nil {
		codeID := discount.Code.ID
		booking.DiscountCodeID = &codeID
	}

	for _, line := range quote.Items {
		booking.Items = append(booking.Items, BookingItem{
			TicketTypeID:   line.TicketTypeID,
			TicketTypeName: line.TicketTypeName,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			UnitServiceFee: line.UnitServiceFee,
			UnitTax:        line.UnitTax,
			TotalPrice:     line.LineSubtotal.Round(2),
		})
	}
	return booking
}

// abandonBooking cancels a booking whose checkout failed after persistence.
func (s *service) abandonBooking(ctx context.Context, booking *Booking, reason string) {
	err := s.repo.Transition(ctx, booking.ID, StatusPending, StatusCancelled,
		map[string]interface{}{
			"cancelled_at":        time.Now(),
			"cancelled_by":        "system",
			"cancellation_reason": reason,
		},
		&BookingStatusHistory{ChangedBy: "system", IsAutomated: true, Reason: reason})
	if err != nil {
		s.logger.ErrorWithContext(ctx, "failed to abandon booking after checkout failure", err,
			map[string]interface{}{"booking_reference": booking.BookingRef})
	}
}

func (s *service) Confirm(ctx context.Context, bookingRef string, by string) (*Booking, error) {
	booking, err := s.repo.GetByRef(ctx, bookingRef)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.repo.Transition(ctx, booking.ID, StatusPending, StatusConfirmed,
		map[string]interface{}{"confirmed_at": now},
		&BookingStatusHistory{ChangedBy: by})
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingTransition(StatusConfirmed.String())
	s.invalidateBooking(ctx, booking)
	s.publish(ctx, notifications.NewEvent(notifications.EventBookingConfirmed, booking.BookingRef, map[string]interface{}{
		"booking_reference": booking.BookingRef,
	}).WithRecipient(booking.ContactEmail))

	return s.repo.GetByRef(ctx, bookingRef)
}

// MarkPaid flips the booking to paid, converts every reservation into a sale
// and issues tickets. Exactly one caller wins the transition; every later
// call observes the paid state and returns nil, so a replayed webhook cannot
// double-issue.
func (s *service) MarkPaid(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.IsPaid() {
		return nil
	}
	if !booking.Status.CanTransitionTo(StatusPaid) {
		return &apperrors.InvalidStateTransitionError{
			Entity: "booking",
			From:   booking.Status.String(),
			To:     StatusPaid.String(),
		}
	}

	now := time.Now()
	err = s.repo.Transition(ctx, booking.ID, booking.Status, StatusPaid,
		map[string]interface{}{
			"paid_at":        now,
			"payment_status": PaymentStatusPaid,
		},
		&BookingStatusHistory{ChangedBy: "payment-orchestrator", IsAutomated: true})
	if err != nil {
		// A concurrent completer may have won; paid-now means done-now.
		if apperrors.IsInvalidStateTransition(err) {
			if current, readErr := s.repo.GetByID(ctx, bookingID); readErr == nil && current.IsPaid() {
				return nil
			}
		}
		return err
	}

	for _, item := range booking.Items {
		if err := s.ledger.Commit(ctx, item.TicketTypeID, item.Quantity); err != nil {
			return fmt.Errorf("failed to commit inventory for ticket type %s: %w", item.TicketTypeID, err)
		}
	}

	if s.issuer != nil {
		count, err := s.issuer.IssueForBooking(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("failed to issue tickets: %w", err)
		}
		s.logger.LogTicketsIssued(ctx, booking.BookingRef, count)
	}

	metrics.RecordBookingTransition(StatusPaid.String())
	s.invalidateBooking(ctx, booking)
	s.publish(ctx, notifications.NewEvent(notifications.EventBookingPaid, booking.BookingRef, map[string]interface{}{
		"booking_reference": booking.BookingRef,
		"total_amount":      booking.TotalAmount.StringFixed(2),
	}).WithRecipient(booking.ContactEmail))

	return nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error {
	return s.repo.UpdatePaymentStatus(ctx, bookingID, PaymentStatusFailed)
}

func (s *service) MarkRefunded(ctx context.Context, bookingID uuid.UUID, partial bool) error {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	target := StatusRefunded
	if partial {
		target = StatusPartiallyRefunded
	}
	if booking.Status == target {
		return nil
	}
	if !booking.Status.CanTransitionTo(target) {
		return &apperrors.InvalidStateTransitionError{
			Entity: "booking",
			From:   booking.Status.String(),
			To:     target.String(),
		}
	}

	updates := map[string]interface{}{}
	if !partial {
		updates["payment_status"] = PaymentStatusRefunded
	}
	err = s.repo.Transition(ctx, booking.ID, booking.Status, target, updates,
		&BookingStatusHistory{ChangedBy: "payment-orchestrator", IsAutomated: true})
	if err != nil {
		return err
	}

	metrics.RecordBookingTransition(target.String())
	s.invalidateBooking(ctx, booking)
	return nil
}

// Cancel is allowed from pending, confirmed and paid. Unpaid bookings give
// their holds back to the pool; paid bookings get their tickets cancelled and
// rely on the caller to create the reconciling refund.
func (s *service) Cancel(ctx context.Context, bookingRef string, by string, reason string) (*Booking, error) {
	booking, err := s.repo.GetByRef(ctx, bookingRef)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanBeCancelled() {
		return nil, &apperrors.InvalidStateTransitionError{
			Entity: "booking",
			From:   booking.Status.String(),
			To:     StatusCancelled.String(),
		}
	}

	heldReservations := booking.HoldsReservedInventory()
	wasPaid := booking.IsPaid()

	err = s.repo.Transition(ctx, booking.ID, booking.Status, StatusCancelled,
		map[string]interface{}{
			"cancelled_at":        time.Now(),
			"cancelled_by":        by,
			"cancellation_reason": reason,
		},
		&BookingStatusHistory{ChangedBy: by, Reason: reason})
	if err != nil {
		return nil, err
	}

	if heldReservations {
		for _, item := range booking.Items {
			if err := s.ledger.Release(ctx, item.TicketTypeID, item.Quantity); err != nil {
				s.logger.ErrorWithContext(ctx, "failed to release inventory on cancellation", err,
					map[string]interface{}{"booking_reference": booking.BookingRef, "ticket_type_id": item.TicketTypeID.String()})
			}
		}
		if err := s.pricer.ReleaseDiscount(ctx, booking.ID); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to release discount on cancellation", err,
				map[string]interface{}{"booking_reference": booking.BookingRef})
		}
	}

	if wasPaid && s.issuer != nil {
		if _, err := s.issuer.CancelForBooking(ctx, booking.ID, reason); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to cancel issued tickets", err,
				map[string]interface{}{"booking_reference": booking.BookingRef})
		}
	}

	metrics.RecordBookingTransition(StatusCancelled.String())
	s.logger.LogBookingCancelled(ctx, booking.BookingRef, by)
	s.invalidateBooking(ctx, booking)
	s.publish(ctx, notifications.NewEvent(notifications.EventBookingCancelled, booking.BookingRef, map[string]interface{}{
		"booking_reference": booking.BookingRef,
		"reason":            reason,
	}).WithRecipient(booking.ContactEmail))

	return s.repo.GetByRef(ctx, bookingRef)
}

// Expire is the sweep's per-booking action. The conditional transition makes
// a racing user cancellation and sweep run settle on exactly one winner.
func (s *service) Expire(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	now := time.Now()
	if !booking.IsExpiredAt(now) {
		if booking.Status == StatusExpired {
			return nil
		}
		return &apperrors.InvalidStateTransitionError{
			Entity: "booking",
			From:   booking.Status.String(),
			To:     StatusExpired.String(),
		}
	}

	err = s.repo.Transition(ctx, booking.ID, StatusPending, StatusExpired, nil,
		&BookingStatusHistory{ChangedBy: "expiration-sweep", IsAutomated: true, Reason: "reservation hold expired"})
	if err != nil {
		if apperrors.IsInvalidStateTransition(err) {
			// Lost the race to a cancel or a payment; nothing to release here.
			return nil
		}
		return err
	}

	for _, item := range booking.Items {
		if err := s.ledger.Release(ctx, item.TicketTypeID, item.Quantity); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to release inventory on expiration", err,
				map[string]interface{}{"booking_reference": booking.BookingRef, "ticket_type_id": item.TicketTypeID.String()})
		}
	}
	if err := s.pricer.ReleaseDiscount(ctx, booking.ID); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to release discount on expiration", err,
			map[string]interface{}{"booking_reference": booking.BookingRef})
	}

	metrics.RecordBookingTransition(StatusExpired.String())
	s.logger.LogBookingExpired(ctx, booking.BookingRef)
	s.invalidateBooking(ctx, booking)
	s.publish(ctx, notifications.NewEvent(notifications.EventBookingExpired, booking.BookingRef, map[string]interface{}{
		"booking_reference": booking.BookingRef,
	}).WithRecipient(booking.ContactEmail))

	return nil
}

func (s *service) ExpireOverdue(ctx context.Context, batchSize int) (int, error) {
	overdue, err := s.repo.ListExpired(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range overdue {
		if err := s.Expire(ctx, overdue[i].ID); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to expire booking", err,
				map[string]interface{}{"booking_reference": overdue[i].BookingRef})
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *service) GetBooking(ctx context.Context, userID uuid.UUID, role string, bookingRef string) (*Booking, error) {
	booking, err := s.repo.GetByRef(ctx, bookingRef)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(booking, userID, role) {
		return nil, &apperrors.NotFoundError{Resource: "booking", ID: bookingRef}
	}
	return booking, nil
}

func (s *service) GetUserBookings(ctx context.Context, userID uuid.UUID, query ListQuery) ([]Booking, int64, error) {
	return s.repo.GetUserBookings(ctx, userID, query)
}

func (s *service) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetHistory(ctx context.Context, userID uuid.UUID, role string, bookingRef string) ([]BookingStatusHistory, error) {
	booking, err := s.repo.GetByRef(ctx, bookingRef)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(booking, userID, role) {
		return nil, &apperrors.NotFoundError{Resource: "booking", ID: bookingRef}
	}
	return s.repo.GetHistory(ctx, booking.ID)
}

func (s *service) HasPriorPaidBooking(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.repo.HasPriorPaidBooking(ctx, userID)
}

// canAccess hides other users' bookings; staff roles see everything.
func (s *service) canAccess(booking *Booking, userID uuid.UUID, role string) bool {
	if booking.UserID == userID {
		return true
	}
	return role == string(users.RoleAdmin) || role == string(users.RoleOrganizer)
}

func (s *service) releaseAll(ctx context.Context, reserved []reservedItem) {
	for _, item := range reserved {
		if err := s.ledger.Release(ctx, item.ticketTypeID, item.quantity); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to release reservation during checkout rollback", err,
				map[string]interface{}{"ticket_type_id": item.ticketTypeID.String(), "quantity": item.quantity})
		}
	}
}

// publish hands an event to the notification pipeline. Failures are logged
// and dropped; booking state never depends on notification delivery.
func (s *service) publish(ctx context.Context, event *notifications.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to publish booking event", err,
			map[string]interface{}{"event_type": string(event.Type)})
	}
}

func (s *service) invalidateUserBookings(ctx context.Context, userID uuid.UUID) {
	pattern := constants.PATTERN_INVALIDATE_BOOKINGS_USER + userID.String() + "*"
	if err := s.cacheService.DeletePattern(ctx, pattern); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate user bookings cache",
			"user_id", userID.String(), "error", err.Error())
	}
}

func (s *service) invalidateBooking(ctx context.Context, booking *Booking) {
	if err := s.cacheService.Delete(ctx, constants.BuildBookingDetailKey(booking.BookingRef)); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate booking cache",
			"booking_reference", booking.BookingRef, "error", err.Error())
	}
	s.invalidateUserBookings(ctx, booking.UserID)
}
