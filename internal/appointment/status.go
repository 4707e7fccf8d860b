package appointment

type Status string

const (
	StatusPaymentPending Status = "PAYMENT_PENDING"
	StatusPaymentFailed  Status = "PAYMENT_FAILED"
	StatusConfirmed      Status = "CONFIRMED"
	StatusCancelled      Status = "CANCELLED"
	StatusCompleted      Status = "COMPLETED"
	StatusExpired        Status = "EXPIRED"
)

// transitions lists every legal status change. Anything not listed here is
// rejected with ErrInvalidStatusTransition.
var transitions = map[Status][]Status{
	StatusPaymentPending: {StatusConfirmed, StatusPaymentFailed, StatusCancelled, StatusExpired},
	StatusPaymentFailed:  {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed:      {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPaymentPending, StatusPaymentFailed, StatusConfirmed,
		StatusCancelled, StatusCompleted, StatusExpired:
		return true
	}
	return false
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
