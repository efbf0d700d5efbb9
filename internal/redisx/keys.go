package redisx

import "time"

const (
	// Cache order status: order_status:{order_id} -> {"status": "...", ...}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"

	// Gateway callback seen-marker: gateway_tx:{transaction_id}
	KeyGatewayTx = "gateway_tx:%s"

	// Round-robin cursor for courier assignment (INCR).
	KeyCourierCursor = "delivery:courier_cursor"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLGatewayTx   = 48 * time.Hour
)
