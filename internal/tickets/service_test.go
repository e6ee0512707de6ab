package tickets

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ticketflow/internal/bookings"
	"ticketflow/internal/events"
	"ticketflow/internal/inventory"
	"ticketflow/internal/shared/apperrors"
	"ticketflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicketRepo struct {
	mu          sync.Mutex
	tickets     map[uuid.UUID]*Ticket
	issuedItems map[uuid.UUID]bool
	transfers   []TicketTransfer
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets:     make(map[uuid.UUID]*Ticket),
		issuedItems: make(map[uuid.UUID]bool),
	}
}

func (f *fakeTicketRepo) IssueForItem(ctx context.Context, itemID uuid.UUID, tickets []Ticket) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issuedItems[itemID] {
		return false, nil
	}
	f.issuedItems[itemID] = true
	for i := range tickets {
		ticket := tickets[i]
		if ticket.ID == uuid.Nil {
			ticket.ID = uuid.New()
		}
		ticket.CreatedAt = time.Now()
		f.tickets[ticket.ID] = &ticket
	}
	return true, nil
}

func (f *fakeTicketRepo) GetByCode(ctx context.Context, code string) (*Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ticket := range f.tickets {
		if ticket.TicketCode == code {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, &apperrors.NotFoundError{Resource: "ticket", ID: code}
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "ticket", ID: id.String()}
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) GetByBooking(ctx context.Context, bookingID uuid.UUID) ([]Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Ticket
	for _, ticket := range f.tickets {
		if ticket.BookingID == bookingID {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (f *fakeTicketRepo) GetUserTickets(ctx context.Context, userID uuid.UUID, page, limit int) ([]Ticket, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Ticket
	for _, ticket := range f.tickets {
		if ticket.OwnerUserID == userID {
			result = append(result, *ticket)
		}
	}
	return result, int64(len(result)), nil
}

func (f *fakeTicketRepo) CheckIn(ctx context.Context, ticketID uuid.UUID, location, by string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "ticket", ID: ticketID.String()}
	}
	if ticket.Status != StatusActive || ticket.CheckedIn {
		if ticket.CheckedIn {
			return &apperrors.CheckInError{TicketCode: ticket.TicketCode, Reason: apperrors.CheckInAlreadyCheckedIn}
		}
		return &apperrors.CheckInError{TicketCode: ticket.TicketCode, Reason: apperrors.CheckInInvalidTicket}
	}
	ticket.Status = StatusUsed
	ticket.CheckedIn = true
	ticket.CheckedInAt = &at
	ticket.CheckedInLocation = location
	ticket.CheckedInBy = by
	return nil
}

func (f *fakeTicketRepo) Transfer(ctx context.Context, ticketID uuid.UUID, transfer *TicketTransfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "ticket", ID: ticketID.String()}
	}
	if ticket.Status != StatusActive || ticket.CheckedIn {
		return &apperrors.TransferError{TicketCode: ticket.TicketCode, Reason: apperrors.TransferTicketNotActive}
	}
	ticket.HolderName = transfer.ToName
	ticket.HolderEmail = transfer.ToEmail
	ticket.TransferCount++
	transfer.TicketID = ticketID
	f.transfers = append(f.transfers, *transfer)
	return nil
}

func (f *fakeTicketRepo) TransitionStatus(ctx context.Context, ticketID uuid.UUID, from, to Status, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket, ok := f.tickets[ticketID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "ticket", ID: ticketID.String()}
	}
	if ticket.Status != from {
		return &apperrors.InvalidStateTransitionError{Entity: "ticket", From: ticket.Status.String(), To: to.String()}
	}
	ticket.Status = to
	return nil
}

func (f *fakeTicketRepo) CancelActiveByBooking(ctx context.Context, bookingID uuid.UUID, reason string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cancelled := 0
	for _, ticket := range f.tickets {
		if ticket.BookingID == bookingID && ticket.Status == StatusActive {
			ticket.Status = StatusCancelled
			ticket.CancellationReason = reason
			cancelled++
		}
	}
	return cancelled, nil
}

func (f *fakeTicketRepo) GetTransfers(ctx context.Context, ticketID uuid.UUID) ([]TicketTransfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []TicketTransfer
	for _, transfer := range f.transfers {
		if transfer.TicketID == ticketID {
			result = append(result, transfer)
		}
	}
	return result, nil
}

type fakeBookingSource struct {
	bookings map[uuid.UUID]*bookings.Booking
}

func (f *fakeBookingSource) GetBookingByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	if booking, ok := f.bookings[id]; ok {
		copied := *booking
		return &copied, nil
	}
	return nil, &apperrors.NotFoundError{Resource: "booking", ID: id.String()}
}

type fakeTicketCatalog struct {
	ticketTypes map[uuid.UUID]*inventory.TicketType
}

func (f *fakeTicketCatalog) GetTicketTypes(ctx context.Context, ids []uuid.UUID) ([]inventory.TicketType, error) {
	var result []inventory.TicketType
	for _, id := range ids {
		if ticketType, ok := f.ticketTypes[id]; ok {
			result = append(result, *ticketType)
		}
	}
	return result, nil
}

type fakeEventCatalog struct {
	events map[uuid.UUID]*events.Event
}

func (f *fakeEventCatalog) GetByID(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	if event, ok := f.events[id]; ok {
		copied := *event
		return &copied, nil
	}
	return nil, &apperrors.NotFoundError{Resource: "event", ID: id.String()}
}

type fakeRefundRequester struct {
	mu       sync.Mutex
	requests []decimal.Decimal
	fail     bool
}

func (f *fakeRefundRequester) RequestTicketRefund(ctx context.Context, bookingID uuid.UUID, ticketID uuid.UUID, amount decimal.Decimal, reason, requestedBy string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("payment orchestrator unavailable")
	}
	f.requests = append(f.requests, amount)
	return "REF-20250114-TESTAB12", nil
}

func setupTicketService(t *testing.T) (Service, *fakeTicketRepo, *fakeBookingSource, *fakeTicketCatalog, *fakeEventCatalog, *fakeRefundRequester) {
	t.Helper()
	repo := newFakeTicketRepo()
	source := &fakeBookingSource{bookings: make(map[uuid.UUID]*bookings.Booking)}
	catalog := &fakeTicketCatalog{ticketTypes: make(map[uuid.UUID]*inventory.TicketType)}
	eventCat := &fakeEventCatalog{events: make(map[uuid.UUID]*events.Event)}
	requester := &fakeRefundRequester{}

	svc := NewService(repo, source, catalog, eventCat, nil, logger.New())
	svc.SetRefundRequester(requester)
	return svc, repo, source, catalog, eventCat, requester
}

func paidBooking(itemQuantities ...int) *bookings.Booking {
	booking := &bookings.Booking{
		ID:           uuid.New(),
		BookingRef:   "BKG-20250114-TESTXX",
		UserID:       uuid.New(),
		EventID:      uuid.New(),
		Status:       bookings.StatusPaid,
		ContactName:  "Asha Rao",
		ContactEmail: "asha@example.com",
	}
	for _, quantity := range itemQuantities {
		booking.Items = append(booking.Items, bookings.BookingItem{
			ID:             uuid.New(),
			BookingID:      booking.ID,
			TicketTypeID:   uuid.New(),
			TicketTypeName: "General",
			Quantity:       quantity,
			UnitPrice:      decimal.RequireFromString("500.00"),
			UnitServiceFee: decimal.RequireFromString("25.00"),
			UnitTax:        decimal.RequireFromString("94.50"),
		})
	}
	return booking
}

func TestIssueForBookingCreatesOneTicketPerUnit(t *testing.T) {
	svc, repo, source, _, _, _ := setupTicketService(t)
	booking := paidBooking(3, 2)
	source.bookings[booking.ID] = booking

	issued, err := svc.IssueForBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, issued)

	tickets, err := repo.GetByBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 5)
	for _, ticket := range tickets {
		assert.True(t, strings.HasPrefix(ticket.TicketCode, "TKT-"))
		assert.Equal(t, StatusActive, ticket.Status)
		assert.Equal(t, booking.UserID, ticket.OwnerUserID)
		assert.Equal(t, "asha@example.com", ticket.HolderEmail)
		assert.NotEmpty(t, ticket.QRPayload)
		assert.Contains(t, ticket.QRPayload, ticket.TicketCode)
	}
}

func TestIssueForBookingIsIdempotent(t *testing.T) {
	svc, repo, source, _, _, _ := setupTicketService(t)
	booking := paidBooking(2)
	source.bookings[booking.ID] = booking

	first, err := svc.IssueForBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	// Replayed issuance (e.g. a retried payment webhook) creates nothing.
	second, err := svc.IssueForBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second)

	tickets, err := repo.GetByBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func issuedTicket(t *testing.T, svc Service, repo *fakeTicketRepo, source *fakeBookingSource) (*Ticket, *bookings.Booking) {
	t.Helper()
	booking := paidBooking(1)
	source.bookings[booking.ID] = booking
	_, err := svc.IssueForBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	tickets, err := repo.GetByBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	return &tickets[0], booking
}

func liveEvent(eventID uuid.UUID, start, end time.Time) *events.Event {
	return &events.Event{
		ID:        eventID,
		Name:      "Test Night",
		Status:    events.StatusPublished,
		StartDate: start,
		EndDate:   end,
	}
}

func TestCheckInWithinWindow(t *testing.T) {
	svc, repo, source, _, eventCat, _ := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	// Doors opened an hour ago.
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(time.Hour), time.Now().Add(4*time.Hour))

	checked, err := svc.CheckIn(context.Background(), ticket.TicketCode, "gate-a", "staff-1")
	require.NoError(t, err)

	assert.Equal(t, StatusUsed, checked.Status)
	assert.True(t, checked.CheckedIn)
	assert.Equal(t, "gate-a", checked.CheckedInLocation)
}

func TestCheckInRefusedBeforeWindowOpens(t *testing.T) {
	svc, repo, source, _, eventCat, _ := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	// Event starts in 5 hours; the window opens at start - 2h.
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(5*time.Hour), time.Now().Add(8*time.Hour))

	_, err := svc.CheckIn(context.Background(), ticket.TicketCode, "gate-a", "staff-1")
	var checkInErr *apperrors.CheckInError
	require.ErrorAs(t, err, &checkInErr)
	assert.Equal(t, apperrors.CheckInEventNotYetOpen, checkInErr.Reason)
}

func TestCheckInRefusedAfterEventEnds(t *testing.T) {
	svc, repo, source, _, eventCat, _ := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(-6*time.Hour), time.Now().Add(-time.Hour))

	_, err := svc.CheckIn(context.Background(), ticket.TicketCode, "gate-a", "staff-1")
	var checkInErr *apperrors.CheckInError
	require.ErrorAs(t, err, &checkInErr)
	assert.Equal(t, apperrors.CheckInEventEnded, checkInErr.Reason)
}

func TestCheckInRefusedTwice(t *testing.T) {
	svc, repo, source, _, eventCat, _ := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(time.Hour), time.Now().Add(4*time.Hour))

	_, err := svc.CheckIn(context.Background(), ticket.TicketCode, "gate-a", "staff-1")
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), ticket.TicketCode, "gate-b", "staff-2")
	var checkInErr *apperrors.CheckInError
	require.ErrorAs(t, err, &checkInErr)
	assert.Equal(t, apperrors.CheckInAlreadyCheckedIn, checkInErr.Reason)
}

func transferableType(id uuid.UUID) *inventory.TicketType {
	return &inventory.TicketType{
		ID:             id,
		Name:           "General",
		IsTransferable: true,
		IsRefundable:   true,
	}
}

func TestTransferSwapsHolderAndRecords(t *testing.T) {
	svc, repo, source, catalog, eventCat, _ := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	catalog.ticketTypes[ticket.TicketTypeID] = transferableType(ticket.TicketTypeID)
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(24*time.Hour), time.Now().Add(28*time.Hour))

	transferred, err := svc.Transfer(context.Background(), booking.UserID, "ATTENDEE", ticket.TicketCode, TransferRequest{
		ToName:  "Ravi Iyer",
		ToEmail: "ravi@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "ravi@example.com", transferred.HolderEmail)
	assert.Equal(t, 1, transferred.TransferCount)

	transfers, err := svc.GetTransfers(context.Background(), booking.UserID, "ATTENDEE", ticket.TicketCode)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "asha@example.com", transfers[0].FromEmail)
	assert.Equal(t, "ravi@example.com", transfers[0].ToEmail)
}

func TestTransferRefusedForNonTransferableType(t *testing.T) {
	svc, repo, source, catalog, eventCat, _ := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	ticketType := transferableType(ticket.TicketTypeID)
	ticketType.IsTransferable = false
	catalog.ticketTypes[ticket.TicketTypeID] = ticketType
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(24*time.Hour), time.Now().Add(28*time.Hour))

	_, err := svc.Transfer(context.Background(), booking.UserID, "ATTENDEE", ticket.TicketCode, TransferRequest{
		ToEmail: "ravi@example.com",
	})
	var transferErr *apperrors.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, apperrors.TransferNotTransferable, transferErr.Reason)
}

func TestTransferRefusedOnceEventStarted(t *testing.T) {
	svc, repo, source, catalog, eventCat, _ := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	catalog.ticketTypes[ticket.TicketTypeID] = transferableType(ticket.TicketTypeID)
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(-time.Hour), time.Now().Add(3*time.Hour))

	_, err := svc.Transfer(context.Background(), booking.UserID, "ATTENDEE", ticket.TicketCode, TransferRequest{
		ToEmail: "ravi@example.com",
	})
	var transferErr *apperrors.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, apperrors.TransferEventStarted, transferErr.Reason)
}

func TestRefundTicketDelegatesFaceValue(t *testing.T) {
	svc, repo, source, catalog, eventCat, requester := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	catalog.ticketTypes[ticket.TicketTypeID] = transferableType(ticket.TicketTypeID)
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(72*time.Hour), time.Now().Add(76*time.Hour))

	refundRef, err := svc.RefundTicket(context.Background(), booking.UserID, "ATTENDEE", ticket.TicketCode, TicketRefundRequest{
		Reason: "cannot attend",
	})
	require.NoError(t, err)
	assert.Contains(t, refundRef, "REF-")

	require.Len(t, requester.requests, 1)
	// 500 + 25 + 94.50
	assert.True(t, requester.requests[0].Equal(decimal.RequireFromString("619.50")))

	// The ticket stays active until the refund completes.
	current, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, current.Status)

	require.NoError(t, svc.MarkTicketRefunded(context.Background(), ticket.ID))
	current, err = repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, current.Status)
}

func TestRefundTicketRefusedPastDeadline(t *testing.T) {
	svc, repo, source, catalog, eventCat, _ := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	catalog.ticketTypes[ticket.TicketTypeID] = transferableType(ticket.TicketTypeID)
	// Event starts in 12 hours; the default deadline (start - 24h) has passed.
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(12*time.Hour), time.Now().Add(16*time.Hour))

	_, err := svc.RefundTicket(context.Background(), booking.UserID, "ATTENDEE", ticket.TicketCode, TicketRefundRequest{
		Reason: "too late",
	})
	var refundErr *apperrors.RefundNotAllowedError
	require.ErrorAs(t, err, &refundErr)
	assert.Equal(t, apperrors.RefundDeadlinePassed, refundErr.Reason)
}

func TestRefundTicketRefusedForNonRefundableType(t *testing.T) {
	svc, repo, source, catalog, eventCat, requester := setupTicketService(t)
	ticket, booking := issuedTicket(t, svc, repo, source)
	ticketType := transferableType(ticket.TicketTypeID)
	ticketType.IsRefundable = false
	catalog.ticketTypes[ticket.TicketTypeID] = ticketType
	// Event is 72 hours out, so the deadline alone would still allow it.
	eventCat.events[booking.EventID] = liveEvent(booking.EventID, time.Now().Add(72*time.Hour), time.Now().Add(76*time.Hour))

	_, err := svc.RefundTicket(context.Background(), booking.UserID, "ATTENDEE", ticket.TicketCode, TicketRefundRequest{
		Reason: "changed my mind",
	})
	var refundErr *apperrors.RefundNotAllowedError
	require.ErrorAs(t, err, &refundErr)
	assert.Equal(t, apperrors.RefundNotRefundable, refundErr.Reason)
	assert.Empty(t, requester.requests)
}

func TestCancelForBookingVoidsActiveTickets(t *testing.T) {
	svc, repo, source, _, _, _ := setupTicketService(t)
	booking := paidBooking(3)
	source.bookings[booking.ID] = booking
	_, err := svc.IssueForBooking(context.Background(), booking.ID)
	require.NoError(t, err)

	cancelled, err := svc.CancelForBooking(context.Background(), booking.ID, "event cancelled")
	require.NoError(t, err)
	assert.Equal(t, 3, cancelled)

	tickets, err := repo.GetByBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	for _, ticket := range tickets {
		assert.Equal(t, StatusCancelled, ticket.Status)
	}
}
