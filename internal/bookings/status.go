package bookings

// Status is the booking lifecycle state. Transitions only happen through the
// service's transition helper, which appends a status-history row and guards
// against concurrent movers; nothing else assigns these values.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusConfirmed         Status = "CONFIRMED"
	StatusPaid              Status = "PAID"
	StatusCancelled         Status = "CANCELLED"
	StatusExpired           Status = "EXPIRED"
	StatusRefunded          Status = "REFUNDED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
)

// transitions is the closed set of legal status moves.
var transitions = map[Status][]Status{
	StatusPending:           {StatusConfirmed, StatusPaid, StatusExpired, StatusCancelled},
	StatusConfirmed:         {StatusPaid, StatusCancelled},
	StatusPaid:              {StatusCancelled, StatusRefunded, StatusPartiallyRefunded},
	StatusPartiallyRefunded: {StatusRefunded},
	StatusCancelled:         {},
	StatusExpired:           {},
	StatusRefunded:          {},
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// CanTransitionTo reports whether moving to target is legal from s.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	allowed, ok := transitions[s]
	return ok && len(allowed) == 0
}

// CanBeCancelled reports whether a booking in this status accepts Cancel.
func (s Status) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// PaymentStatus mirrors the payment orchestrator's terminal view on the
// booking row so expiry sweeps and retry guards can check it without a join.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (p PaymentStatus) String() string {
	return string(p)
}
