package tickets

import (
	"context"
	"encoding/json"
	"time"

	"ticketflow/internal/bookings"
	"ticketflow/internal/events"
	"ticketflow/internal/inventory"
	"ticketflow/internal/notifications"
	"ticketflow/internal/shared/apperrors"
	"ticketflow/internal/users"
	"ticketflow/pkg/logger"
	"ticketflow/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingSource resolves the booking a ticket batch materializes from.
type BookingSource interface {
	GetBookingByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
}

// TicketCatalog exposes the ticket-type flags that gate transfer and refund.
type TicketCatalog interface {
	GetTicketTypes(ctx context.Context, ids []uuid.UUID) ([]inventory.TicketType, error)
}

// EventCatalog provides the event window for check-in and refund deadlines.
type EventCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error)
}

// RefundRequester opens a per-ticket refund with the payment orchestrator.
// Implemented by the payments module and wired at startup.
type RefundRequester interface {
	RequestTicketRefund(ctx context.Context, bookingID uuid.UUID, ticketID uuid.UUID, amount decimal.Decimal, reason, requestedBy string) (string, error)
}

// Service owns ticket instances from issuance to the gate: materialization
// for paid bookings, check-in, ownership transfer and per-ticket refunds.
type Service interface {
	// IssueForBooking materializes tickets for every not-yet-issued item of a
	// paid booking. Safe to replay; already-issued items are skipped.
	IssueForBooking(ctx context.Context, bookingID uuid.UUID) (int, error)

	// CancelForBooking voids all still-active tickets of a booking.
	CancelForBooking(ctx context.Context, bookingID uuid.UUID, reason string) (int, error)

	CheckIn(ctx context.Context, code, location, by string) (*Ticket, error)
	Transfer(ctx context.Context, userID uuid.UUID, role string, code string, req TransferRequest) (*Ticket, error)
	RefundTicket(ctx context.Context, userID uuid.UUID, role string, code string, req TicketRefundRequest) (string, error)

	// MarkTicketRefunded finishes a per-ticket refund once the payment
	// orchestrator completes it.
	MarkTicketRefunded(ctx context.Context, ticketID uuid.UUID) error

	GetTicket(ctx context.Context, userID uuid.UUID, role string, code string) (*Ticket, error)
	GetUserTickets(ctx context.Context, userID uuid.UUID, page, limit int) ([]Ticket, int64, error)
	GetTransfers(ctx context.Context, userID uuid.UUID, role string, code string) ([]TicketTransfer, error)

	// QRPayload returns the persisted scanner payload for rendering.
	QRPayload(ctx context.Context, userID uuid.UUID, role string, code string) (string, error)

	// SetRefundRequester wires the payments module after construction.
	SetRefundRequester(requester RefundRequester)
}

type service struct {
	repo      Repository
	source    BookingSource
	catalog   TicketCatalog
	eventCat  EventCatalog
	refunder  RefundRequester
	publisher notifications.Publisher
	logger    *logger.Logger
}

func NewService(
	repo Repository,
	source BookingSource,
	catalog TicketCatalog,
	eventCat EventCatalog,
	publisher notifications.Publisher,
	log *logger.Logger,
) Service {
	return &service{
		repo:      repo,
		source:    source,
		catalog:   catalog,
		eventCat:  eventCat,
		publisher: publisher,
		logger:    log,
	}
}

func (s *service) SetRefundRequester(requester RefundRequester) {
	s.refunder = requester
}

// qrPayload is the JSON the gate scanner decodes.
type qrPayload struct {
	TicketCode string `json:"ticket_code"`
	BookingRef string `json:"booking_reference"`
	EventID    string `json:"event_id"`
	TicketType string `json:"ticket_type"`
	Holder     string `json:"holder"`
	IssuedAt   string `json:"issued_at"`
}

func (s *service) IssueForBooking(ctx context.Context, bookingID uuid.UUID) (int, error) {
	booking, err := s.source.GetBookingByID(ctx, bookingID)
	if err != nil {
		return 0, err
	}

	issued := 0
	now := time.Now()
	for _, item := range booking.Items {
		if item.TicketsIssued {
			continue
		}

		batch := make([]Ticket, 0, item.Quantity)
		for i := 0; i < item.Quantity; i++ {
			ticket := Ticket{
				TicketCode:     NewTicketCode(),
				BookingID:      booking.ID,
				BookingItemID:  item.ID,
				BookingRef:     booking.BookingRef,
				EventID:        booking.EventID,
				TicketTypeID:   item.TicketTypeID,
				TicketTypeName: item.TicketTypeName,
				OwnerUserID:    booking.UserID,
				HolderName:     booking.ContactName,
				HolderEmail:    booking.ContactEmail,
				UnitPrice:      item.UnitPrice,
				ServiceFee:     item.UnitServiceFee,
				Tax:            item.UnitTax,
				SeatSection:    item.SeatSection,
				Status:         StatusActive,
			}
			payload, err := json.Marshal(qrPayload{
				TicketCode: ticket.TicketCode,
				BookingRef: booking.BookingRef,
				EventID:    booking.EventID.String(),
				TicketType: item.TicketTypeName,
				Holder:     booking.ContactEmail,
				IssuedAt:   now.UTC().Format(time.RFC3339),
			})
			if err != nil {
				return issued, err
			}
			ticket.QRPayload = string(payload)
			batch = append(batch, ticket)
		}

		created, err := s.repo.IssueForItem(ctx, item.ID, batch)
		if err != nil {
			return issued, err
		}
		if created {
			issued += len(batch)
		}
	}

	if issued > 0 {
		metrics.RecordTicketsIssued(issued)
		s.publish(ctx, notifications.NewEvent(notifications.EventTicketsIssued, booking.BookingRef, map[string]interface{}{
			"booking_reference": booking.BookingRef,
			"count":             issued,
		}).WithRecipient(booking.ContactEmail))
	}
	return issued, nil
}

func (s *service) CancelForBooking(ctx context.Context, bookingID uuid.UUID, reason string) (int, error) {
	return s.repo.CancelActiveByBooking(ctx, bookingID, reason)
}

// CheckIn admits a ticket at the gate. The window is [event start - 2h,
// event end]; the conditional update in the repository settles concurrent
// scans of the same code on one winner.
func (s *service) CheckIn(ctx context.Context, code, location, by string) (*Ticket, error) {
	ticket, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ticket.CheckedIn {
		return nil, &apperrors.CheckInError{TicketCode: code, Reason: apperrors.CheckInAlreadyCheckedIn}
	}
	if ticket.Status != StatusActive {
		return nil, &apperrors.CheckInError{TicketCode: code, Reason: apperrors.CheckInInvalidTicket}
	}

	event, err := s.eventCat.GetByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if now.Before(event.CheckInOpensAt()) {
		return nil, &apperrors.CheckInError{TicketCode: code, Reason: apperrors.CheckInEventNotYetOpen}
	}
	if event.HasEnded(now) {
		return nil, &apperrors.CheckInError{TicketCode: code, Reason: apperrors.CheckInEventEnded}
	}

	if err := s.repo.CheckIn(ctx, ticket.ID, location, by, now); err != nil {
		return nil, err
	}

	metrics.RecordTicketCheckedIn()
	s.logger.LogTicketCheckedIn(ctx, code, location, by)
	s.publish(ctx, notifications.NewEvent(notifications.EventTicketCheckedIn, code, map[string]interface{}{
		"ticket_code": code,
		"location":    location,
	}).WithRecipient(ticket.HolderEmail))

	return s.repo.GetByCode(ctx, code)
}

func (s *service) Transfer(ctx context.Context, userID uuid.UUID, role string, code string, req TransferRequest) (*Ticket, error) {
	ticket, err := s.GetTicket(ctx, userID, role, code)
	if err != nil {
		return nil, err
	}
	if ticket.CheckedIn {
		return nil, &apperrors.TransferError{TicketCode: code, Reason: apperrors.TransferAlreadyCheckedIn}
	}
	if ticket.Status != StatusActive {
		return nil, &apperrors.TransferError{TicketCode: code, Reason: apperrors.TransferTicketNotActive}
	}

	ticketType, err := s.ticketType(ctx, ticket.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if !ticketType.IsTransferable {
		return nil, &apperrors.TransferError{TicketCode: code, Reason: apperrors.TransferNotTransferable}
	}

	event, err := s.eventCat.GetByID(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	if event.HasStarted(time.Now()) {
		return nil, &apperrors.TransferError{TicketCode: code, Reason: apperrors.TransferEventStarted}
	}

	transfer := &TicketTransfer{
		FromName:      ticket.HolderName,
		FromEmail:     ticket.HolderEmail,
		ToName:        req.ToName,
		ToEmail:       req.ToEmail,
		TransferFee:   req.fee(),
		TransferredBy: userID.String(),
	}
	if err := s.repo.Transfer(ctx, ticket.ID, transfer); err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.NewEvent(notifications.EventTicketTransferred, code, map[string]interface{}{
		"ticket_code": code,
		"from":        transfer.FromEmail,
		"to":          transfer.ToEmail,
	}).WithRecipient(transfer.ToEmail))

	return s.repo.GetByCode(ctx, code)
}

// RefundTicket opens a per-ticket refund. The money side belongs to the
// payment orchestrator; the ticket flips to refunded only when that refund
// completes.
func (s *service) RefundTicket(ctx context.Context, userID uuid.UUID, role string, code string, req TicketRefundRequest) (string, error) {
	ticket, err := s.GetTicket(ctx, userID, role, code)
	if err != nil {
		return "", err
	}
	if ticket.CheckedIn {
		return "", &apperrors.RefundNotAllowedError{TicketCode: code, Reason: apperrors.RefundAlreadyCheckedIn}
	}
	if ticket.Status != StatusActive {
		return "", &apperrors.RefundNotAllowedError{TicketCode: code, Reason: apperrors.RefundTicketNotActive}
	}

	ticketType, err := s.ticketType(ctx, ticket.TicketTypeID)
	if err != nil {
		return "", err
	}
	if !ticketType.IsRefundable {
		return "", &apperrors.RefundNotAllowedError{TicketCode: code, Reason: apperrors.RefundNotRefundable}
	}

	event, err := s.eventCat.GetByID(ctx, ticket.EventID)
	if err != nil {
		return "", err
	}
	deadline := event.StartDate.Add(-24 * time.Hour)
	if ticketType.RefundDeadline != nil {
		deadline = *ticketType.RefundDeadline
	}
	if time.Now().After(deadline) {
		return "", &apperrors.RefundNotAllowedError{TicketCode: code, Reason: apperrors.RefundDeadlinePassed}
	}

	if s.refunder == nil {
		return "", apperrors.NewValidationError("refunds are not available")
	}

	amount := ticket.FaceValue()
	if req.Amount != nil {
		amount = *req.Amount
	}

	refundRef, err := s.refunder.RequestTicketRefund(ctx, ticket.BookingID, ticket.ID, amount, req.Reason, userID.String())
	if err != nil {
		return "", err
	}

	s.logger.InfoWithContext(ctx, "ticket refund requested", map[string]interface{}{
		"ticket_code":      code,
		"refund_reference": refundRef,
		"amount":           amount.StringFixed(2),
	})
	return refundRef, nil
}

func (s *service) MarkTicketRefunded(ctx context.Context, ticketID uuid.UUID) error {
	err := s.repo.TransitionStatus(ctx, ticketID, StatusActive, StatusRefunded, nil)
	if err != nil && apperrors.IsInvalidStateTransition(err) {
		// A raced cancellation already took the ticket out of circulation.
		if current, readErr := s.repo.GetByID(ctx, ticketID); readErr == nil && current.Status != StatusActive {
			return nil
		}
	}
	return err
}

func (s *service) GetTicket(ctx context.Context, userID uuid.UUID, role string, code string) (*Ticket, error) {
	ticket, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !s.canAccess(ticket, userID, role) {
		return nil, &apperrors.NotFoundError{Resource: "ticket", ID: code}
	}
	return ticket, nil
}

func (s *service) GetUserTickets(ctx context.Context, userID uuid.UUID, page, limit int) ([]Ticket, int64, error) {
	return s.repo.GetUserTickets(ctx, userID, page, limit)
}

func (s *service) GetTransfers(ctx context.Context, userID uuid.UUID, role string, code string) ([]TicketTransfer, error) {
	ticket, err := s.GetTicket(ctx, userID, role, code)
	if err != nil {
		return nil, err
	}
	return s.repo.GetTransfers(ctx, ticket.ID)
}

func (s *service) QRPayload(ctx context.Context, userID uuid.UUID, role string, code string) (string, error) {
	ticket, err := s.GetTicket(ctx, userID, role, code)
	if err != nil {
		return "", err
	}
	return ticket.QRPayload, nil
}

func (s *service) ticketType(ctx context.Context, id uuid.UUID) (*inventory.TicketType, error) {
	ticketTypes, err := s.catalog.GetTicketTypes(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(ticketTypes) == 0 {
		return nil, &apperrors.NotFoundError{Resource: "ticket type", ID: id.String()}
	}
	return &ticketTypes[0], nil
}

func (s *service) canAccess(ticket *Ticket, userID uuid.UUID, role string) bool {
	if ticket.OwnerUserID == userID {
		return true
	}
	return role == string(users.RoleAdmin) || role == string(users.RoleOrganizer)
}

func (s *service) publish(ctx context.Context, event *notifications.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to publish ticket event", err,
			map[string]interface{}{"event_type": string(event.Type)})
	}
}
