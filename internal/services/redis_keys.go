package services

import "time"

const (
	KeyUserSession = "user:%s:session:%s"
	KeySnapshot    = "chain:snapshot"
	KeyEventStream = "chain:events"
	KeyRateLimit   = "ratelimit:%s:%s"

	TTLUserSession = 24 * time.Hour

	EventStreamMaxLen = 10000

	DefaultRateLimitPlays  = 30 // Max 30 plays per minute
	DefaultRateLimitClaims = 10
)
