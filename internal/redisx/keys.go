package redisx

import "time"

const (
	// Cache of a serialized order for fast GETs: order:%s -> json
	KeyOrderCache = "order:%s"

	// Dedup of processed external events: dedup:{scope}:{id}
	// scope = "payment" (bank tx id) or "notifier" (event id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderCache = 5 * time.Minute
	TTLDedup      = 48 * time.Hour
)
