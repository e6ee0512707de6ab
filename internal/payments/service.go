package payments

import (
	"context"
	"strings"
	"time"

	"ticketflow/internal/bookings"
	"ticketflow/internal/events"
	"ticketflow/internal/notifications"
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

// BookingGateway is the slice of the booking state machine the orchestrator
// drives. MarkPaid is the single choke point for payment success; it is
// idempotent on the booking side, so a replayed completion is harmless.
type BookingGateway interface {
	GetBooking(ctx context.Context, userID uuid.UUID, role string, bookingRef string) (*bookings.Booking, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
	MarkPaid(ctx context.Context, bookingID uuid.UUID) error
	MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error
	MarkRefunded(ctx context.Context, bookingID uuid.UUID, partial bool) error
}

// TicketNotifier lets a completed per-ticket refund flip its ticket to
// refunded. Implemented by the tickets module and wired at startup.
type TicketNotifier interface {
	MarkTicketRefunded(ctx context.Context, ticketID uuid.UUID) error
}

// EventCatalog resolves the organizer receiving a settlement.
type EventCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error)
}

// Service is the payment orchestrator: one payment per booking, gateway
// callbacks folded into a guarded state machine, refunds conserved against
// the original amount, and one-time organizer settlements.
type Service interface {
	Initiate(ctx context.Context, userID uuid.UUID, role string, req InitiatePaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, userID uuid.UUID, role string, txnRef string) (*Payment, error)

	// HandleWebhook folds one gateway callback into the payment state
	// machine. Replays of the same (txn, gateway txn, status) identity are
	// suppressed; out-of-order terminal callbacks lose the guarded
	// transition and are dropped.
	HandleWebhook(ctx context.Context, req WebhookRequest) error

	Retry(ctx context.Context, userID uuid.UUID, role string, txnRef string) (*Payment, error)

	ProcessRefund(ctx context.Context, requestedBy string, txnRef string, req RefundRequest) (*Refund, error)
	CompleteRefund(ctx context.Context, refundRef string) (*Refund, error)
	FailRefund(ctx context.Context, refundRef string, reason string) (*Refund, error)

	// RequestTicketRefund is the per-ticket entry point the tickets module
	// calls; it creates a pending refund row against the booking's payment.
	RequestTicketRefund(ctx context.Context, bookingID uuid.UUID, ticketID uuid.UUID, amount decimal.Decimal, reason, requestedBy string) (string, error)

	SettleToOrganizer(ctx context.Context, txnRef string) (*Settlement, error)

	// SettleCompleted and ExpireStale are the sweep entry points.
	SettleCompleted(ctx context.Context, batchSize int) (int, error)
	ExpireStale(ctx context.Context, batchSize int) (int, error)

	// SetTicketNotifier wires the tickets module after construction.
	SetTicketNotifier(notifier TicketNotifier)
}

type service struct {
	repo      Repository
	gateway   BookingGateway
	catalog   EventCatalog
	notifier  TicketNotifier
	publisher notifications.Publisher
	guard     *cache.Guard
	logger    *logger.Logger
	cfg       *config.Config
}

func NewService(
	repo Repository,
	gateway BookingGateway,
	catalog EventCatalog,
	publisher notifications.Publisher,
	guard *cache.Guard,
	cfg *config.Config,
	log *logger.Logger,
) Service {
	return &service{
		repo:      repo,
		gateway:   gateway,
		catalog:   catalog,
		publisher: publisher,
		guard:     guard,
		logger:    log,
		cfg:       cfg,
	}
}

func (s *service) SetTicketNotifier(notifier TicketNotifier) {
	s.notifier = notifier
}

// Initiate opens the payment for a booking. A booking gets exactly one
// payment row; re-initiating while that payment is still live returns the
// existing row instead of erroring, so a double-submitted checkout page
// behaves.
func (s *service) Initiate(ctx context.Context, userID uuid.UUID, role string, req InitiatePaymentRequest) (*Payment, error) {
	if !s.cfg.IsGatewaySupported(req.Gateway) {
		return nil, apperrors.NewValidationError("unsupported payment gateway: " + req.Gateway)
	}

	booking, err := s.gateway.GetBooking(ctx, userID, role, req.BookingReference)
	if err != nil {
		return nil, err
	}
	if !booking.HoldsReservedInventory() {
		return nil, &apperrors.InvalidStateTransitionError{
			Entity: "payment",
			From:   booking.Status.String(),
			To:     StatusPending.String(),
		}
	}
	if time.Now().After(booking.ExpiresAt) {
		return nil, apperrors.NewValidationError("booking reservation has expired")
	}

	if existing, err := s.repo.GetByBookingID(ctx, booking.ID); err == nil {
		if existing.IsTerminal() {
			return nil, apperrors.NewValidationError("booking already has a finished payment")
		}
		return existing, nil
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	payment := &Payment{
		TransactionRef: NewTransactionRef(),
		BookingID:      booking.ID,
		BookingRef:     booking.BookingRef,
		UserID:         booking.UserID,
		Amount:         booking.TotalAmount,
		Currency:       booking.Currency,
		Gateway:        strings.ToLower(req.Gateway),
		Status:         StatusPending,
		MaxRetries:     s.cfg.Payment.MaxRetries,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "payment initiated", map[string]interface{}{
		"transaction_reference": payment.TransactionRef,
		"booking_reference":     payment.BookingRef,
		"gateway":               payment.Gateway,
		"amount":                payment.Amount.StringFixed(2),
	})
	return payment, nil
}

func (s *service) GetPayment(ctx context.Context, userID uuid.UUID, role string, txnRef string) (*Payment, error) {
	payment, err := s.repo.GetByTxnRef(ctx, txnRef)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(payment, userID, role) {
		return nil, &apperrors.NotFoundError{Resource: "payment", ID: txnRef}
	}
	return payment, nil
}

// gateway status vocabulary folded into the internal state machine. Every
// integrated gateway's terminal words must appear here; an unknown word is a
// client error, not a silent drop.
var webhookStatusMap = map[string]Status{
	"captured":   StatusCompleted,
	"success":    StatusCompleted,
	"succeeded":  StatusCompleted,
	"completed":  StatusCompleted,
	"failed":     StatusFailed,
	"declined":   StatusFailed,
	"authorized": StatusProcessing,
	"processing": StatusProcessing,
	"pending":    StatusProcessing,
}

func (s *service) HandleWebhook(ctx context.Context, req WebhookRequest) error {
	target, ok := webhookStatusMap[strings.ToLower(req.Status)]
	if !ok {
		return apperrors.NewValidationError("unrecognized gateway status: " + req.Status)
	}

	// Replay suppression keyed on the full callback identity. Claiming the
	// guard before processing means the second delivery of the same webhook
	// sees the marker and returns without touching the payment.
	guardKey := constants.BuildWebhookGuardKey(req.TransactionReference, req.GatewayTransactionID, strings.ToLower(req.Status))
	if s.guard != nil {
		first, err := s.guard.AcquireOnce(ctx, guardKey, s.cfg.Redis.WebhookGuardTTL)
		if err != nil {
			// Redis being down must not stall payment processing; the state
			// machine's guarded transitions still reject true duplicates.
			s.logger.ErrorWithContext(ctx, "webhook guard unavailable, continuing without replay suppression", err,
				map[string]interface{}{"transaction_reference": req.TransactionReference})
		} else if !first {
			s.logger.InfoWithContext(ctx, "duplicate webhook suppressed", map[string]interface{}{
				"transaction_reference":  req.TransactionReference,
				"gateway_transaction_id": req.GatewayTransactionID,
				"status":                 req.Status,
			})
			return nil
		}
	}

	var err error
	switch target {
	case StatusCompleted:
		err = s.markCompleted(ctx, req)
	case StatusFailed:
		err = s.markFailed(ctx, req)
	case StatusProcessing:
		err = s.markProcessing(ctx, req)
	}
	if err != nil && s.guard != nil {
		// Let the gateway's retry of this callback through next time.
		if releaseErr := s.guard.Release(ctx, guardKey); releaseErr != nil {
			s.logger.ErrorWithContext(ctx, "failed to release webhook guard", releaseErr,
				map[string]interface{}{"transaction_reference": req.TransactionReference})
		}
	}
	return err
}

func (s *service) markProcessing(ctx context.Context, req WebhookRequest) error {
	payment, err := s.repo.GetByTxnRef(ctx, req.TransactionReference)
	if err != nil {
		return err
	}
	if payment.Status != StatusPending {
		// Late or out-of-order intermediate callback; the payment moved on.
		return nil
	}
	return s.repo.Transition(ctx, payment.ID, StatusPending, StatusProcessing,
		map[string]interface{}{"gateway_txn_id": req.GatewayTransactionID})
}

// markCompleted settles a successful payment. The guarded transition picks
// one winner; a caller observing an already-completed payment returns nil so
// retried success callbacks converge instead of erroring.
func (s *service) markCompleted(ctx context.Context, req WebhookRequest) error {
	payment, err := s.repo.GetByTxnRef(ctx, req.TransactionReference)
	if err != nil {
		return err
	}
	if payment.Status == StatusCompleted {
		return nil
	}
	if !payment.Status.CanTransitionTo(StatusCompleted) {
		return &apperrors.InvalidStateTransitionError{
			Entity: "payment",
			From:   payment.Status.String(),
			To:     StatusCompleted.String(),
		}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"gateway_txn_id": req.GatewayTransactionID,
		"payment_date":   now,
	}
	if req.GatewayFee != nil {
		updates["gateway_fee"] = *req.GatewayFee
	}
	if req.PlatformFee != nil {
		updates["platform_fee"] = *req.PlatformFee
	}
	err = s.repo.Transition(ctx, payment.ID, payment.Status, StatusCompleted, updates)
	if err != nil {
		if apperrors.IsInvalidStateTransition(err) {
			if current, readErr := s.repo.GetByTxnRef(ctx, req.TransactionReference); readErr == nil && current.Status == StatusCompleted {
				return nil
			}
		}
		return err
	}

	// The booking side is idempotent, so a crash between the transition above
	// and this call is recovered by replaying the webhook.
	if err := s.gateway.MarkPaid(ctx, payment.BookingID); err != nil {
		if apperrors.IsInvalidStateTransition(err) {
			// The expiration sweep moved the booking on before this success
			// landed. The payment is already completed and replays of this
			// webhook short-circuit above, so without compensation the
			// captured amount would strand; return it to the payer in full.
			return s.refundOrphanedPayment(ctx, payment, err)
		}
		return err
	}

	metrics.RecordPaymentOutcome(StatusCompleted.String())
	s.logger.LogPaymentCompleted(ctx, payment.TransactionRef, payment.BookingRef, payment.Amount.StringFixed(2))
	s.publish(ctx, notifications.NewEvent(notifications.EventPaymentCompleted, payment.TransactionRef, map[string]interface{}{
		"transaction_reference": payment.TransactionRef,
		"booking_reference":     payment.BookingRef,
		"amount":                payment.Amount.StringFixed(2),
	}))
	return nil
}

// refundOrphanedPayment opens a full refund for a payment whose success
// callback lost the race against booking expiration: the money was captured
// but the booking can no longer be marked paid. The refund then flows through
// the normal completion path.
func (s *service) refundOrphanedPayment(ctx context.Context, payment *Payment, cause error) error {
	s.logger.ErrorWithContext(ctx, "payment completed against an expired booking, opening full refund", cause,
		map[string]interface{}{
			"transaction_reference": payment.TransactionRef,
			"booking_reference":     payment.BookingRef,
			"amount":                payment.Amount.StringFixed(2),
		})

	refund := &Refund{
		RefundRef:   NewRefundRef(),
		PaymentID:   payment.ID,
		Amount:      payment.Amount,
		Status:      RefundStatusPending,
		Reason:      "booking expired before payment success arrived",
		RequestedBy: "system",
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		return err
	}

	metrics.RecordPaymentOutcome(StatusCompleted.String())
	s.publish(ctx, notifications.NewEvent(notifications.EventPaymentCompleted, payment.TransactionRef, map[string]interface{}{
		"transaction_reference": payment.TransactionRef,
		"booking_reference":     payment.BookingRef,
		"amount":                payment.Amount.StringFixed(2),
		"refund_reference":      refund.RefundRef,
		"booking_expired":       true,
	}))
	return nil
}

func (s *service) markFailed(ctx context.Context, req WebhookRequest) error {
	payment, err := s.repo.GetByTxnRef(ctx, req.TransactionReference)
	if err != nil {
		return err
	}
	if payment.Status == StatusFailed {
		return nil
	}
	if !payment.Status.CanTransitionTo(StatusFailed) {
		// A success already landed; failure callbacks arriving after the
		// terminal state are gateway noise.
		return nil
	}

	err = s.repo.Transition(ctx, payment.ID, payment.Status, StatusFailed,
		map[string]interface{}{
			"gateway_txn_id": req.GatewayTransactionID,
			"failure_reason": req.FailureReason,
			"failure_code":   req.FailureCode,
		})
	if err != nil {
		if apperrors.IsInvalidStateTransition(err) {
			return nil
		}
		return err
	}

	s.logger.LogPaymentFailed(ctx, payment.TransactionRef, req.FailureReason, payment.RetryCount)

	// Only a terminally failed payment (retries exhausted) is mirrored onto
	// the booking; while retries remain the booking keeps waiting.
	if payment.RetryCount >= payment.MaxRetries {
		metrics.RecordPaymentOutcome(StatusFailed.String())
		if err := s.gateway.MarkPaymentFailed(ctx, payment.BookingID); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to mirror payment failure onto booking", err,
				map[string]interface{}{"booking_reference": payment.BookingRef})
		}
	}

	s.publish(ctx, notifications.NewEvent(notifications.EventPaymentFailed, payment.TransactionRef, map[string]interface{}{
		"transaction_reference": payment.TransactionRef,
		"booking_reference":     payment.BookingRef,
		"failure_reason":        req.FailureReason,
		"retries_remaining":     payment.MaxRetries - payment.RetryCount,
	}))
	return nil
}

// Retry re-opens a failed payment while the retry budget and the booking's
// reservation both still hold. The counter guard lives inside the conditional
// update, so two concurrent retries cannot both consume the last attempt.
func (s *service) Retry(ctx context.Context, userID uuid.UUID, role string, txnRef string) (*Payment, error) {
	payment, err := s.GetPayment(ctx, userID, role, txnRef)
	if err != nil {
		return nil, err
	}
	if !payment.CanRetry() {
		return nil, &apperrors.InvalidStateTransitionError{
			Entity: "payment",
			From:   payment.Status.String(),
			To:     StatusPending.String(),
		}
	}

	booking, err := s.gateway.GetBookingByID(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.HoldsReservedInventory() || time.Now().After(booking.ExpiresAt) {
		return nil, apperrors.NewValidationError("booking is no longer payable")
	}

	if err := s.repo.RecordRetry(ctx, payment.ID); err != nil {
		return nil, err
	}
	return s.repo.GetByTxnRef(ctx, txnRef)
}

// ProcessRefund opens a refund against a completed payment. The conservation
// check runs against every refund that is pending, processing or completed,
// so concurrent requests cannot jointly exceed the original amount.
func (s *service) ProcessRefund(ctx context.Context, requestedBy string, txnRef string, req RefundRequest) (*Refund, error) {
	payment, err := s.repo.GetByTxnRef(ctx, txnRef)
	if err != nil {
		return nil, err
	}
	if payment.Status != StatusCompleted && payment.Status != StatusPartiallyRefunded {
		return nil, &apperrors.InvalidStateTransitionError{
			Entity: "payment",
			From:   payment.Status.String(),
			To:     StatusRefunded.String(),
		}
	}

	amount := payment.Amount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount.Sign() <= 0 {
		return nil, apperrors.NewValidationError("refund amount must be positive")
	}

	reserved, err := s.repo.SumActiveRefunds(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if reserved.Add(amount).GreaterThan(payment.Amount) {
		return nil, apperrors.NewValidationError(
			"refund amount exceeds the refundable remainder of " + payment.Amount.Sub(reserved).StringFixed(2))
	}

	refund := &Refund{
		RefundRef:   NewRefundRef(),
		PaymentID:   payment.ID,
		Amount:      amount,
		Status:      RefundStatusPending,
		Reason:      req.Reason,
		RequestedBy: requestedBy,
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "refund requested", map[string]interface{}{
		"refund_reference":      refund.RefundRef,
		"transaction_reference": payment.TransactionRef,
		"amount":                amount.StringFixed(2),
	})
	return refund, nil
}

func (s *service) RequestTicketRefund(ctx context.Context, bookingID uuid.UUID, ticketID uuid.UUID, amount decimal.Decimal, reason, requestedBy string) (string, error) {
	payment, err := s.repo.GetByBookingID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if payment.Status != StatusCompleted && payment.Status != StatusPartiallyRefunded {
		return "", &apperrors.InvalidStateTransitionError{
			Entity: "payment",
			From:   payment.Status.String(),
			To:     StatusRefunded.String(),
		}
	}
	if amount.Sign() <= 0 {
		return "", apperrors.NewValidationError("refund amount must be positive")
	}

	reserved, err := s.repo.SumActiveRefunds(ctx, payment.ID)
	if err != nil {
		return "", err
	}
	if reserved.Add(amount).GreaterThan(payment.Amount) {
		return "", apperrors.NewValidationError("refund amount exceeds the refundable remainder")
	}

	refund := &Refund{
		RefundRef:   NewRefundRef(),
		PaymentID:   payment.ID,
		TicketID:    &ticketID,
		Amount:      amount,
		Status:      RefundStatusPending,
		Reason:      reason,
		RequestedBy: requestedBy,
	}
	if err := s.repo.CreateRefund(ctx, refund); err != nil {
		return "", err
	}
	return refund.RefundRef, nil
}

// CompleteRefund finishes a refund: the payment flips to refunded once the
// completed total covers the original amount, partially refunded before
// that, and the booking and any per-ticket state follow.
func (s *service) CompleteRefund(ctx context.Context, refundRef string) (*Refund, error) {
	refund, err := s.repo.GetRefundByRef(ctx, refundRef)
	if err != nil {
		return nil, err
	}
	if refund.Status == RefundStatusCompleted {
		return refund, nil
	}

	now := time.Now()
	err = s.repo.TransitionRefund(ctx, refund.ID, refund.Status, RefundStatusCompleted,
		map[string]interface{}{"processed_at": now})
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.GetByID(ctx, refund.PaymentID)
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.SumCompletedRefunds(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	full := completed.GreaterThanOrEqual(payment.Amount)

	target := StatusPartiallyRefunded
	if full {
		target = StatusRefunded
	}
	if payment.Status != target && payment.Status.CanTransitionTo(target) {
		if err := s.repo.Transition(ctx, payment.ID, payment.Status, target, nil); err != nil && !apperrors.IsInvalidStateTransition(err) {
			return nil, err
		}
	}

	if err := s.gateway.MarkRefunded(ctx, payment.BookingID, !full); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to mirror refund onto booking", err,
			map[string]interface{}{"booking_reference": payment.BookingRef})
	}
	if refund.TicketID != nil && s.notifier != nil {
		if err := s.notifier.MarkTicketRefunded(ctx, *refund.TicketID); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to mark ticket refunded", err,
				map[string]interface{}{"ticket_id": refund.TicketID.String()})
		}
	}

	metrics.RecordRefundCompleted()
	s.publish(ctx, notifications.NewEvent(notifications.EventRefundCompleted, payment.TransactionRef, map[string]interface{}{
		"refund_reference":      refund.RefundRef,
		"transaction_reference": payment.TransactionRef,
		"amount":                refund.Amount.StringFixed(2),
		"full_refund":           full,
	}))

	return s.repo.GetRefundByRef(ctx, refundRef)
}

func (s *service) FailRefund(ctx context.Context, refundRef string, reason string) (*Refund, error) {
	refund, err := s.repo.GetRefundByRef(ctx, refundRef)
	if err != nil {
		return nil, err
	}
	if refund.Status == RefundStatusFailed {
		return refund, nil
	}

	err = s.repo.TransitionRefund(ctx, refund.ID, refund.Status, RefundStatusFailed,
		map[string]interface{}{"reason": refund.Reason + " (failed: " + reason + ")"})
	if err != nil {
		return nil, err
	}
	return s.repo.GetRefundByRef(ctx, refundRef)
}

// SettleToOrganizer transfers a completed payment's net proceeds once. The
// gross is the amount net of completed refunds; commission comes off the
// gross, gateway and platform fees off the remainder.
func (s *service) SettleToOrganizer(ctx context.Context, txnRef string) (*Settlement, error) {
	payment, err := s.repo.GetByTxnRef(ctx, txnRef)
	if err != nil {
		return nil, err
	}
	// Partially refunded payments settle their remainder; fully refunded ones
	// have nothing left to transfer.
	if payment.Status != StatusCompleted && payment.Status != StatusPartiallyRefunded {
		return nil, &apperrors.InvalidStateTransitionError{
			Entity: "payment",
			From:   payment.Status.String(),
			To:     "settled",
		}
	}
	if payment.Settled {
		return nil, apperrors.NewValidationError("payment is already settled")
	}

	booking, err := s.gateway.GetBookingByID(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	event, err := s.catalog.GetByID(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}

	refunded, err := s.repo.SumCompletedRefunds(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	gross := payment.Amount.Sub(refunded)
	if gross.Sign() <= 0 {
		return nil, apperrors.NewValidationError("nothing left to settle after refunds")
	}

	rate := decimal.NewFromFloat(s.cfg.Payment.CommissionPercent)
	commission := gross.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	net := gross.Sub(commission).Sub(payment.GatewayFee).Sub(payment.PlatformFee)
	if net.Sign() < 0 {
		net = decimal.Zero
	}

	settlement := &Settlement{
		SettlementRef:    NewSettlementRef(),
		PaymentID:        payment.ID,
		OrganizerID:      event.OrganizerID,
		GrossAmount:      gross,
		CommissionRate:   rate,
		CommissionAmount: commission,
		GatewayFee:       payment.GatewayFee,
		PlatformFee:      payment.PlatformFee,
		NetAmount:        net,
		SettledAt:        time.Now(),
	}
	if err := s.repo.CreateSettlement(ctx, settlement); err != nil {
		return nil, err
	}

	metrics.RecordSettlementCreated()
	s.logger.LogSettlementCreated(ctx, payment.TransactionRef, settlement.SettlementRef, net.StringFixed(2))
	s.publish(ctx, notifications.NewEvent(notifications.EventSettlementCreated, payment.TransactionRef, map[string]interface{}{
		"settlement_reference":  settlement.SettlementRef,
		"transaction_reference": payment.TransactionRef,
		"net_amount":            net.StringFixed(2),
	}))
	return settlement, nil
}

func (s *service) SettleCompleted(ctx context.Context, batchSize int) (int, error) {
	payments, err := s.repo.ListUnsettledCompleted(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range payments {
		if _, err := s.SettleToOrganizer(ctx, payments[i].TransactionRef); err != nil {
			s.logger.ErrorWithContext(ctx, "failed to settle payment", err,
				map[string]interface{}{"transaction_reference": payments[i].TransactionRef})
			continue
		}
		settled++
	}
	return settled, nil
}

// ExpireStale closes out pending payments whose gateway never called back.
// The booking expiration sweep releases the inventory independently.
func (s *service) ExpireStale(ctx context.Context, batchSize int) (int, error) {
	cutoff := time.Now().Add(-s.cfg.Payment.PendingExpiry)
	stale, err := s.repo.ListStalePending(ctx, cutoff, batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		err := s.repo.Transition(ctx, stale[i].ID, StatusPending, StatusExpired, nil)
		if err != nil {
			if apperrors.IsInvalidStateTransition(err) {
				// Lost the race to a late webhook; that outcome stands.
				continue
			}
			s.logger.ErrorWithContext(ctx, "failed to expire stale payment", err,
				map[string]interface{}{"transaction_reference": stale[i].TransactionRef})
			continue
		}
		metrics.RecordPaymentOutcome(StatusExpired.String())
		expired++
	}
	return expired, nil
}

func (s *service) canAccess(payment *Payment, userID uuid.UUID, role string) bool {
	if payment.UserID == userID {
		return true
	}
	return role == string(users.RoleAdmin) || role == string(users.RoleOrganizer)
}

func (s *service) publish(ctx context.Context, event *notifications.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to publish payment event", err,
			map[string]interface{}{"event_type": string(event.Type)})
	}
}
