package orders

type Status string

const (
	StatusPending        Status = "PENDING"
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPaymentFailed  Status = "PAYMENT_FAILED"
	StatusDelivered      Status = "DELIVERED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:        {StatusPendingPayment: true},
	StatusPendingPayment: {StatusConfirmed: true, StatusPaymentFailed: true},
	StatusConfirmed:      {StatusDelivered: true},
	StatusPaymentFailed:  {},
	StatusDelivered:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}
