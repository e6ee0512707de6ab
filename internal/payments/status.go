package payments

// Status is the payment lifecycle state. Only the orchestrator's guarded
// transition path assigns these values; a payment in a terminal state is
// immutable.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusProcessing        Status = "PROCESSING"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
	StatusCancelled         Status = "CANCELLED"
	StatusExpired           Status = "EXPIRED"
	StatusRefunded          Status = "REFUNDED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
)

// transitions is the closed set of legal payment moves. failed -> pending is
// the bounded retry path; its retry-count guard lives in the service.
var transitions = map[Status][]Status{
	StatusPending:           {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusExpired},
	StatusProcessing:        {StatusCompleted, StatusFailed},
	StatusFailed:            {StatusPending},
	StatusCompleted:         {StatusRefunded, StatusPartiallyRefunded},
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

func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible. A failed
// payment is terminal in practice once retries are exhausted, but that guard
// needs the retry counter, so it lives on the model, not here.
func (s Status) IsTerminal() bool {
	allowed, ok := transitions[s]
	return ok && len(allowed) == 0
}

// RefundStatus is the lifecycle of one refund row.
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "PENDING"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusPending, RefundStatusProcessing, RefundStatusCompleted, RefundStatusFailed:
		return true
	}
	return false
}

func (s RefundStatus) String() string {
	return string(s)
}

// IsSettledOutcome reports whether the refund consumed or released its
// reserved slice of the payment amount.
func (s RefundStatus) IsSettledOutcome() bool {
	return s == RefundStatusCompleted || s == RefundStatusFailed
}
