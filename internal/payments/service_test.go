package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticketflow/internal/bookings"
	"ticketflow/internal/events"
	"ticketflow/internal/shared/apperrors"
	"ticketflow/internal/shared/config"
	"ticketflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentRepo struct {
	mu          sync.Mutex
	payments    map[uuid.UUID]*Payment
	refunds     map[uuid.UUID]*Refund
	settlements map[uuid.UUID]*Settlement
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments:    make(map[uuid.UUID]*Payment),
		refunds:     make(map[uuid.UUID]*Refund),
		settlements: make(map[uuid.UUID]*Settlement),
	}
}

func (f *fakePaymentRepo) Create(ctx context.Context, payment *Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	copied := *payment
	f.payments[payment.ID] = &copied
	return nil
}

func (f *fakePaymentRepo) GetByTxnRef(ctx context.Context, txnRef string) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, payment := range f.payments {
		if payment.TransactionRef == txnRef {
			copied := *payment
			copied.Refunds = f.refundsForLocked(payment.ID)
			return &copied, nil
		}
	}
	return nil, &apperrors.NotFoundError{Resource: "payment", ID: txnRef}
}

func (f *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "payment", ID: id.String()}
	}
	copied := *payment
	return &copied, nil
}

func (f *fakePaymentRepo) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, payment := range f.payments {
		if payment.BookingID == bookingID {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, &apperrors.NotFoundError{Resource: "payment", ID: bookingID.String()}
}

func (f *fakePaymentRepo) Transition(ctx context.Context, paymentID uuid.UUID, from, to Status, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[paymentID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "payment", ID: paymentID.String()}
	}
	if payment.Status != from {
		return &apperrors.InvalidStateTransitionError{Entity: "payment", From: payment.Status.String(), To: to.String()}
	}
	payment.Status = to
	for key, value := range updates {
		switch key {
		case "gateway_txn_id":
			payment.GatewayTxnID = value.(string)
		case "failure_reason":
			payment.FailureReason = value.(string)
		case "failure_code":
			payment.FailureCode = value.(string)
		case "payment_date":
			date := value.(time.Time)
			payment.PaymentDate = &date
		case "gateway_fee":
			payment.GatewayFee = value.(decimal.Decimal)
		case "platform_fee":
			payment.PlatformFee = value.(decimal.Decimal)
		}
	}
	return nil
}

func (f *fakePaymentRepo) RecordRetry(ctx context.Context, paymentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[paymentID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "payment", ID: paymentID.String()}
	}
	if payment.Status != StatusFailed || payment.RetryCount >= payment.MaxRetries {
		return &apperrors.InvalidStateTransitionError{Entity: "payment", From: payment.Status.String(), To: StatusPending.String()}
	}
	payment.Status = StatusPending
	payment.RetryCount++
	payment.FailureReason = ""
	payment.FailureCode = ""
	return nil
}

func (f *fakePaymentRepo) CreateRefund(ctx context.Context, refund *Refund) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	refund.CreatedAt = time.Now()
	copied := *refund
	f.refunds[refund.ID] = &copied
	return nil
}

func (f *fakePaymentRepo) GetRefundByRef(ctx context.Context, refundRef string) (*Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, refund := range f.refunds {
		if refund.RefundRef == refundRef {
			copied := *refund
			return &copied, nil
		}
	}
	return nil, &apperrors.NotFoundError{Resource: "refund", ID: refundRef}
}

func (f *fakePaymentRepo) TransitionRefund(ctx context.Context, refundID uuid.UUID, from, to RefundStatus, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	refund, ok := f.refunds[refundID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "refund", ID: refundID.String()}
	}
	if refund.Status != from {
		return &apperrors.InvalidStateTransitionError{Entity: "refund", From: refund.Status.String(), To: to.String()}
	}
	refund.Status = to
	if value, ok := updates["processed_at"]; ok {
		processedAt := value.(time.Time)
		refund.ProcessedAt = &processedAt
	}
	return nil
}

func (f *fakePaymentRepo) SumActiveRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	return f.sumRefunds(paymentID, map[RefundStatus]bool{
		RefundStatusPending: true, RefundStatusProcessing: true, RefundStatusCompleted: true,
	}), nil
}

func (f *fakePaymentRepo) SumCompletedRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	return f.sumRefunds(paymentID, map[RefundStatus]bool{RefundStatusCompleted: true}), nil
}

func (f *fakePaymentRepo) sumRefunds(paymentID uuid.UUID, statuses map[RefundStatus]bool) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for _, refund := range f.refunds {
		if refund.PaymentID == paymentID && statuses[refund.Status] {
			total = total.Add(refund.Amount)
		}
	}
	return total
}

func (f *fakePaymentRepo) refundsForLocked(paymentID uuid.UUID) []Refund {
	var result []Refund
	for _, refund := range f.refunds {
		if refund.PaymentID == paymentID {
			result = append(result, *refund)
		}
	}
	return result
}

func (f *fakePaymentRepo) CreateSettlement(ctx context.Context, settlement *Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[settlement.PaymentID]
	if !ok {
		return &apperrors.NotFoundError{Resource: "payment", ID: settlement.PaymentID.String()}
	}
	if payment.Settled {
		return &apperrors.InvalidStateTransitionError{Entity: "payment", From: "settled", To: "settled"}
	}
	payment.Settled = true
	payment.SettlementRef = settlement.SettlementRef
	if settlement.ID == uuid.Nil {
		settlement.ID = uuid.New()
	}
	copied := *settlement
	f.settlements[settlement.ID] = &copied
	return nil
}

func (f *fakePaymentRepo) ListUnsettledCompleted(ctx context.Context, limit int) ([]Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Payment
	for _, payment := range f.payments {
		if (payment.Status == StatusCompleted || payment.Status == StatusPartiallyRefunded) && !payment.Settled && len(result) < limit {
			result = append(result, *payment)
		}
	}
	return result, nil
}

func (f *fakePaymentRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Payment
	for _, payment := range f.payments {
		if payment.Status == StatusPending && payment.CreatedAt.Before(createdBefore) && len(result) < limit {
			result = append(result, *payment)
		}
	}
	return result, nil
}

// fakeBookingGateway records the orchestrator's calls into the booking state
// machine.
type fakeBookingGateway struct {
	mu              sync.Mutex
	bookings        map[uuid.UUID]*bookings.Booking
	markPaidCalls   []uuid.UUID
	markFailedCalls []uuid.UUID
	refundCalls     []bool
	markPaidErr     error
}

func newFakeBookingGateway() *fakeBookingGateway {
	return &fakeBookingGateway{bookings: make(map[uuid.UUID]*bookings.Booking)}
}

func (f *fakeBookingGateway) add(booking *bookings.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[booking.ID] = booking
}

func (f *fakeBookingGateway) GetBooking(ctx context.Context, userID uuid.UUID, role string, bookingRef string) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, booking := range f.bookings {
		if booking.BookingRef == bookingRef && booking.UserID == userID {
			copied := *booking
			return &copied, nil
		}
	}
	return nil, &apperrors.NotFoundError{Resource: "booking", ID: bookingRef}
}

func (f *fakeBookingGateway) GetBookingByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	booking, ok := f.bookings[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "booking", ID: id.String()}
	}
	copied := *booking
	return &copied, nil
}

func (f *fakeBookingGateway) MarkPaid(ctx context.Context, bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markPaidErr != nil {
		return f.markPaidErr
	}
	f.markPaidCalls = append(f.markPaidCalls, bookingID)
	return nil
}

func (f *fakeBookingGateway) MarkPaymentFailed(ctx context.Context, bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markFailedCalls = append(f.markFailedCalls, bookingID)
	return nil
}

func (f *fakeBookingGateway) MarkRefunded(ctx context.Context, bookingID uuid.UUID, partial bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refundCalls = append(f.refundCalls, partial)
	return nil
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

func paymentTestConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{
			MaxRetries:        3,
			PendingExpiry:     30 * time.Minute,
			CommissionPercent: 5.0,
			DefaultCurrency:   "INR",
			SupportedGateways: []string{"razorpay", "stripe"},
		},
		Redis: config.RedisConfig{WebhookGuardTTL: 24 * time.Hour},
	}
}

func setupPaymentService(t *testing.T) (Service, *fakePaymentRepo, *fakeBookingGateway, *fakeEventCatalog) {
	t.Helper()
	repo := newFakePaymentRepo()
	gateway := newFakeBookingGateway()
	catalog := &fakeEventCatalog{events: make(map[uuid.UUID]*events.Event)}

	svc := NewService(repo, gateway, catalog, nil, nil, paymentTestConfig(), logger.New())
	return svc, repo, gateway, catalog
}

func pendingBooking(userID uuid.UUID, amount string) *bookings.Booking {
	return &bookings.Booking{
		ID:            uuid.New(),
		BookingRef:    "BKG-20250114-TESTXX",
		UserID:        userID,
		EventID:       uuid.New(),
		Status:        bookings.StatusPending,
		PaymentStatus: bookings.PaymentStatusPending,
		TotalAmount:   decimal.RequireFromString(amount),
		Currency:      "INR",
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}
}

func TestInitiateCreatesPaymentFromBooking(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	userID := uuid.New()
	booking := pendingBooking(userID, "1500.00")
	gateway.add(booking)

	payment, err := svc.Initiate(context.Background(), userID, "ATTENDEE", InitiatePaymentRequest{
		BookingReference: booking.BookingRef,
		Gateway:          "razorpay",
	})
	require.NoError(t, err)

	assert.Contains(t, payment.TransactionRef, "TXN-")
	assert.Equal(t, StatusPending, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("1500.00")))
	assert.Equal(t, "INR", payment.Currency)
	assert.Equal(t, 3, payment.MaxRetries)
}

func TestInitiateRejectsUnsupportedGateway(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	userID := uuid.New()
	gateway.add(pendingBooking(userID, "100.00"))

	_, err := svc.Initiate(context.Background(), userID, "ATTENDEE", InitiatePaymentRequest{
		BookingReference: "BKG-20250114-TESTXX",
		Gateway:          "paypal",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestInitiateIsIdempotentWhilePaymentLive(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	userID := uuid.New()
	booking := pendingBooking(userID, "100.00")
	gateway.add(booking)

	request := InitiatePaymentRequest{BookingReference: booking.BookingRef, Gateway: "razorpay"}
	first, err := svc.Initiate(context.Background(), userID, "ATTENDEE", request)
	require.NoError(t, err)

	second, err := svc.Initiate(context.Background(), userID, "ATTENDEE", request)
	require.NoError(t, err)
	assert.Equal(t, first.TransactionRef, second.TransactionRef)
}

func TestInitiateRejectsExpiredBooking(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	userID := uuid.New()
	booking := pendingBooking(userID, "100.00")
	booking.ExpiresAt = time.Now().Add(-time.Minute)
	gateway.add(booking)

	_, err := svc.Initiate(context.Background(), userID, "ATTENDEE", InitiatePaymentRequest{
		BookingReference: booking.BookingRef,
		Gateway:          "razorpay",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func initiatedPayment(t *testing.T, svc Service, gateway *fakeBookingGateway) (*Payment, *bookings.Booking) {
	t.Helper()
	userID := uuid.New()
	booking := pendingBooking(userID, "1000.00")
	gateway.add(booking)
	payment, err := svc.Initiate(context.Background(), userID, "ATTENDEE", InitiatePaymentRequest{
		BookingReference: booking.BookingRef,
		Gateway:          "razorpay",
	})
	require.NoError(t, err)
	return payment, booking
}

func TestWebhookSuccessMarksBookingPaidOnce(t *testing.T) {
	svc, repo, gateway, _ := setupPaymentService(t)
	payment, booking := initiatedPayment(t, svc, gateway)

	webhook := WebhookRequest{
		TransactionReference: payment.TransactionRef,
		GatewayTransactionID: "gw_123",
		Status:               "captured",
	}
	require.NoError(t, svc.HandleWebhook(context.Background(), webhook))

	stored, err := repo.GetByTxnRef(context.Background(), payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.NotNil(t, stored.PaymentDate)
	require.Len(t, gateway.markPaidCalls, 1)
	assert.Equal(t, booking.ID, gateway.markPaidCalls[0])

	// A replayed success converges without a second MarkPaid.
	require.NoError(t, svc.HandleWebhook(context.Background(), webhook))
	assert.Len(t, gateway.markPaidCalls, 1)
}

func TestWebhookSuccessAfterBookingExpiryOpensFullRefund(t *testing.T) {
	svc, repo, gateway, _ := setupPaymentService(t)
	payment, _ := initiatedPayment(t, svc, gateway)

	// The expiration sweep already moved the booking on, so marking it paid
	// loses the guarded transition.
	gateway.markPaidErr = &apperrors.InvalidStateTransitionError{
		Entity: "booking", From: "EXPIRED", To: "PAID",
	}

	require.NoError(t, svc.HandleWebhook(context.Background(), WebhookRequest{
		TransactionReference: payment.TransactionRef,
		GatewayTransactionID: "gw_late",
		Status:               "captured",
	}))

	stored, err := repo.GetByTxnRef(context.Background(), payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Empty(t, gateway.markPaidCalls)

	// The captured amount is queued back to the payer in full.
	require.Len(t, stored.Refunds, 1)
	assert.True(t, stored.Refunds[0].Amount.Equal(payment.Amount))
	assert.Equal(t, RefundStatusPending, stored.Refunds[0].Status)
	assert.Equal(t, "system", stored.Refunds[0].RequestedBy)
	assert.Contains(t, stored.Refunds[0].RefundRef, "REF-")
}

func TestWebhookFailureAfterSuccessIsIgnored(t *testing.T) {
	svc, repo, gateway, _ := setupPaymentService(t)
	payment, _ := initiatedPayment(t, svc, gateway)

	require.NoError(t, svc.HandleWebhook(context.Background(), WebhookRequest{
		TransactionReference: payment.TransactionRef,
		GatewayTransactionID: "gw_1",
		Status:               "success",
	}))
	require.NoError(t, svc.HandleWebhook(context.Background(), WebhookRequest{
		TransactionReference: payment.TransactionRef,
		GatewayTransactionID: "gw_2",
		Status:               "failed",
		FailureReason:        "late decline",
	}))

	stored, err := repo.GetByTxnRef(context.Background(), payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
}

func TestWebhookRejectsUnknownStatus(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	payment, _ := initiatedPayment(t, svc, gateway)

	err := svc.HandleWebhook(context.Background(), WebhookRequest{
		TransactionReference: payment.TransactionRef,
		GatewayTransactionID: "gw_1",
		Status:               "weird",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestWebhookFailureMirrorsBookingOnlyWhenExhausted(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	payment, _ := initiatedPayment(t, svc, gateway)

	fail := WebhookRequest{
		TransactionReference: payment.TransactionRef,
		GatewayTransactionID: "gw_1",
		Status:               "failed",
		FailureReason:        "card declined",
		FailureCode:          "card_declined",
	}

	// First failure: retries remain, the booking keeps waiting.
	require.NoError(t, svc.HandleWebhook(context.Background(), fail))
	assert.Empty(t, gateway.markFailedCalls)

	// Burn through every retry, then fail terminally.
	for i := 0; i < 3; i++ {
		_, err := svc.Retry(context.Background(), payment.UserID, "ATTENDEE", payment.TransactionRef)
		require.NoError(t, err)
		fail.GatewayTransactionID = "gw_retry"
		require.NoError(t, svc.HandleWebhook(context.Background(), fail))
	}

	assert.Len(t, gateway.markFailedCalls, 1)
}

func TestRetryExhaustionRejected(t *testing.T) {
	svc, repo, gateway, _ := setupPaymentService(t)
	payment, _ := initiatedPayment(t, svc, gateway)

	fail := WebhookRequest{
		TransactionReference: payment.TransactionRef,
		GatewayTransactionID: "gw_1",
		Status:               "declined",
	}
	require.NoError(t, svc.HandleWebhook(context.Background(), fail))

	for i := 0; i < 3; i++ {
		retried, err := svc.Retry(context.Background(), payment.UserID, "ATTENDEE", payment.TransactionRef)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, retried.Status)
		assert.Equal(t, i+1, retried.RetryCount)
		require.NoError(t, svc.HandleWebhook(context.Background(), fail))
	}

	_, err := svc.Retry(context.Background(), payment.UserID, "ATTENDEE", payment.TransactionRef)
	assert.True(t, apperrors.IsInvalidStateTransition(err))

	stored, err := repo.GetByTxnRef(context.Background(), payment.TransactionRef)
	require.NoError(t, err)
	assert.True(t, stored.IsTerminal())
}

func completedPayment(t *testing.T, svc Service, gateway *fakeBookingGateway) (*Payment, *bookings.Booking) {
	t.Helper()
	payment, booking := initiatedPayment(t, svc, gateway)
	require.NoError(t, svc.HandleWebhook(context.Background(), WebhookRequest{
		TransactionReference: payment.TransactionRef,
		GatewayTransactionID: "gw_ok",
		Status:               "captured",
	}))
	return payment, booking
}

func TestRefundConservation(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	payment, _ := completedPayment(t, svc, gateway)

	partial := decimal.RequireFromString("600.00")
	_, err := svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{
		Amount: &partial, Reason: "partial goodwill",
	})
	require.NoError(t, err)

	// 600 of 1000 is reserved; another 600 must not fit.
	_, err = svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{
		Amount: &partial, Reason: "second partial",
	})
	assert.True(t, apperrors.IsValidation(err))

	rest := decimal.RequireFromString("400.00")
	_, err = svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{
		Amount: &rest, Reason: "remainder",
	})
	assert.NoError(t, err)
}

func TestCompleteRefundFlipsPaymentAndBooking(t *testing.T) {
	svc, repo, gateway, _ := setupPaymentService(t)
	payment, _ := completedPayment(t, svc, gateway)

	partial := decimal.RequireFromString("400.00")
	refund, err := svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{
		Amount: &partial, Reason: "one ticket returned",
	})
	require.NoError(t, err)

	completed, err := svc.CompleteRefund(context.Background(), refund.RefundRef)
	require.NoError(t, err)
	assert.Equal(t, RefundStatusCompleted, completed.Status)
	assert.NotNil(t, completed.ProcessedAt)

	stored, err := repo.GetByTxnRef(context.Background(), payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyRefunded, stored.Status)
	require.Len(t, gateway.refundCalls, 1)
	assert.True(t, gateway.refundCalls[0])

	// Refund the remainder; the payment and booking go fully refunded.
	rest := decimal.RequireFromString("600.00")
	refund2, err := svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{
		Amount: &rest, Reason: "rest returned",
	})
	require.NoError(t, err)
	_, err = svc.CompleteRefund(context.Background(), refund2.RefundRef)
	require.NoError(t, err)

	stored, err = repo.GetByTxnRef(context.Background(), payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, stored.Status)
	require.Len(t, gateway.refundCalls, 2)
	assert.False(t, gateway.refundCalls[1])
}

func TestFailedRefundReleasesItsReservation(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	payment, _ := completedPayment(t, svc, gateway)

	full := decimal.RequireFromString("1000.00")
	refund, err := svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{
		Amount: &full, Reason: "full return",
	})
	require.NoError(t, err)

	_, err = svc.FailRefund(context.Background(), refund.RefundRef, "gateway rejected")
	require.NoError(t, err)

	// The failed refund no longer reserves the amount.
	_, err = svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{
		Amount: &full, Reason: "second attempt",
	})
	assert.NoError(t, err)
}

func TestRefundRejectedForPendingPayment(t *testing.T) {
	svc, _, gateway, _ := setupPaymentService(t)
	payment, _ := initiatedPayment(t, svc, gateway)

	_, err := svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{Reason: "too early"})
	assert.True(t, apperrors.IsInvalidStateTransition(err))
}

func TestSettleToOrganizerOnce(t *testing.T) {
	svc, _, gateway, catalog := setupPaymentService(t)
	payment, booking := completedPayment(t, svc, gateway)

	organizerID := uuid.New()
	catalog.events[booking.EventID] = &events.Event{ID: booking.EventID, OrganizerID: organizerID}

	settlement, err := svc.SettleToOrganizer(context.Background(), payment.TransactionRef)
	require.NoError(t, err)

	assert.Equal(t, organizerID, settlement.OrganizerID)
	assert.True(t, settlement.GrossAmount.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, settlement.CommissionAmount.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, settlement.NetAmount.Equal(decimal.RequireFromString("950.00")))

	_, err = svc.SettleToOrganizer(context.Background(), payment.TransactionRef)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSettlementNetsOutCompletedRefunds(t *testing.T) {
	svc, _, gateway, catalog := setupPaymentService(t)
	payment, booking := completedPayment(t, svc, gateway)
	catalog.events[booking.EventID] = &events.Event{ID: booking.EventID, OrganizerID: uuid.New()}

	partial := decimal.RequireFromString("200.00")
	refund, err := svc.ProcessRefund(context.Background(), "admin", payment.TransactionRef, RefundRequest{
		Amount: &partial, Reason: "one ticket",
	})
	require.NoError(t, err)
	_, err = svc.CompleteRefund(context.Background(), refund.RefundRef)
	require.NoError(t, err)

	settlement, err := svc.SettleToOrganizer(context.Background(), payment.TransactionRef)
	require.NoError(t, err)
	assert.True(t, settlement.GrossAmount.Equal(decimal.RequireFromString("800.00")))
	assert.True(t, settlement.CommissionAmount.Equal(decimal.RequireFromString("40.00")))
}

func TestExpireStaleClosesAbandonedPayments(t *testing.T) {
	svc, repo, gateway, _ := setupPaymentService(t)
	payment, _ := initiatedPayment(t, svc, gateway)

	repo.mu.Lock()
	repo.payments[payment.ID].CreatedAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	expired, err := svc.ExpireStale(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	stored, err := repo.GetByTxnRef(context.Background(), payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}

func TestRequestTicketRefundCreatesPendingRefund(t *testing.T) {
	svc, repo, gateway, _ := setupPaymentService(t)
	payment, booking := completedPayment(t, svc, gateway)

	ticketID := uuid.New()
	refundRef, err := svc.RequestTicketRefund(context.Background(), booking.ID, ticketID,
		decimal.RequireFromString("500.00"), "attendee request", payment.UserID.String())
	require.NoError(t, err)
	assert.Contains(t, refundRef, "REF-")

	refund, err := repo.GetRefundByRef(context.Background(), refundRef)
	require.NoError(t, err)
	require.NotNil(t, refund.TicketID)
	assert.Equal(t, ticketID, *refund.TicketID)
	assert.Equal(t, RefundStatusPending, refund.Status)
}
