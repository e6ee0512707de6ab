package apperrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Typed errors shared across the booking, payment and ticket subsystems.
// Every rejected operation must surface one of these so callers can render a
// specific reason instead of a generic failure.

// ValidationError reports malformed or out-of-range input. Recoverable by the
// caller correcting the request.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// InsufficientInventoryError names the offending ticket type and the exact
// requested/available quantities so clients can render "only N left".
type InsufficientInventoryError struct {
	TicketTypeID   uuid.UUID
	TicketTypeName string
	Requested      int
	Available      int
}

func (e *InsufficientInventoryError) Error() string {
	name := e.TicketTypeName
	if name == "" {
		name = e.TicketTypeID.String()
	}
	return fmt.Sprintf("insufficient inventory for %s: requested %d, available %d", name, e.Requested, e.Available)
}

// InvalidStateTransitionError reports an operation attempted from a state
// that forbids it. Always recoverable by re-checking current state.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}

// DiscountReason distinguishes why a discount code was rejected.
type DiscountReason string

const (
	DiscountExpired        DiscountReason = "expired"
	DiscountUsageExhausted DiscountReason = "usage_exhausted"
	DiscountNotApplicable  DiscountReason = "not_applicable"
	DiscountBelowMinimum   DiscountReason = "below_minimum"
)

// DiscountInvalidError carries the rejection reason for user messaging.
type DiscountInvalidError struct {
	Code    string
	Reason  DiscountReason
	Message string
}

func (e *DiscountInvalidError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("discount code %s rejected (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("discount code %s rejected (%s)", e.Code, e.Reason)
}

// CheckInReason distinguishes why a gate check-in was refused.
type CheckInReason string

const (
	CheckInAlreadyCheckedIn CheckInReason = "already_checked_in"
	CheckInEventNotYetOpen  CheckInReason = "event_not_yet_open"
	CheckInEventEnded       CheckInReason = "event_ended"
	CheckInInvalidTicket    CheckInReason = "invalid_ticket"
)

type CheckInError struct {
	TicketCode string
	Reason     CheckInReason
}

func (e *CheckInError) Error() string {
	return fmt.Sprintf("check-in refused for ticket %s: %s", e.TicketCode, e.Reason)
}

// TransferReason distinguishes why an ownership transfer was refused.
type TransferReason string

const (
	TransferNotTransferable  TransferReason = "not_transferable"
	TransferAlreadyCheckedIn TransferReason = "already_checked_in"
	TransferEventStarted     TransferReason = "event_started"
	TransferTicketNotActive  TransferReason = "ticket_not_active"
)

type TransferError struct {
	TicketCode string
	Reason     TransferReason
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer refused for ticket %s: %s", e.TicketCode, e.Reason)
}

// RefundReason distinguishes why a per-ticket refund was refused.
type RefundReason string

const (
	RefundNotRefundable    RefundReason = "not_refundable"
	RefundAlreadyCheckedIn RefundReason = "already_checked_in"
	RefundDeadlinePassed   RefundReason = "deadline_passed"
	RefundTicketNotActive  RefundReason = "ticket_not_active"
)

type RefundNotAllowedError struct {
	TicketCode string
	Reason     RefundReason
}

func (e *RefundNotAllowedError) Error() string {
	return fmt.Sprintf("refund refused for ticket %s: %s", e.TicketCode, e.Reason)
}

// PaymentGatewayError wraps a transient gateway failure eligible for bounded
// retry by the payment orchestrator.
type PaymentGatewayError struct {
	Gateway string
	Message string
}

func (e *PaymentGatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s error: %s", e.Gateway, e.Message)
}

// NotFoundError reports a missing resource by name and identifier.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Predicates used by controllers and the response mapper.

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInsufficientInventory(err error) bool {
	var target *InsufficientInventoryError
	return errors.As(err, &target)
}

func IsInvalidStateTransition(err error) bool {
	var target *InvalidStateTransitionError
	return errors.As(err, &target)
}

func IsDiscountInvalid(err error) bool {
	var target *DiscountInvalidError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
