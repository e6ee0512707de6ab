package tickets

// Status is the ticket instance lifecycle. A ticket never returns to active
// once it leaves.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusUsed      Status = "USED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

var transitions = map[Status][]Status{
	StatusActive:    {StatusUsed, StatusCancelled, StatusRefunded},
	StatusUsed:      {},
	StatusCancelled: {},
	StatusRefunded:  {},
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

func (s Status) IsTerminal() bool {
	allowed, ok := transitions[s]
	return ok && len(allowed) == 0
}
