package waitlist

// Status is the lifecycle state of a waitlist entry.
type Status string

const (
	// StatusWaiting means the entry holds a live queue position.
	StatusWaiting Status = "WAITING"

	// StatusNotified means capacity was offered and the response window is
	// running.
	StatusNotified Status = "NOTIFIED"

	// StatusExpired means the response window closed without a booking.
	StatusExpired Status = "EXPIRED"

	// StatusCancelled means the user left the queue.
	StatusCancelled Status = "CANCELLED"
)

var statusTransitions = map[Status][]Status{
	StatusWaiting:   {StatusNotified, StatusCancelled},
	StatusNotified:  {StatusExpired, StatusCancelled},
	StatusExpired:   {},
	StatusCancelled: {},
}

func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}
