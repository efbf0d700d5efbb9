package orders

const (
	TopicOrderCreated     = "order.created"
	TopicPaymentConfirmed = "order.payment.confirmed"
	TopicPaymentFailed    = "order.payment.failed"
	TopicOrderDelivered   = "order.delivered"
)

// Partition key = order_id, so all events of one order keep their ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
