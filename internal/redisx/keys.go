package redisx

import "time"

const (
	// Dedup webhook per checkout session: dedup:{service}:{session_id}
	KeyDedup = "dedup:%s:%s"

	// Cache status order per session: order_status:{session_id} -> {"status": "...", "order_ids": [...]}
	KeyOrderStatus = "order_status:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLStatusCache = 30 * time.Minute
)
