package constants

import "time"

// Dispatch and admission defaults
const (
	// DefaultFailureThreshold is the consecutive failure count at which a backend
	// drops out of the healthy pool
	DefaultFailureThreshold = 3

	// DefaultQueueCapacity bounds each backend admission queue, a full queue
	// blocks the enqueuer
	DefaultQueueCapacity = 1000

	// DefaultInvokeTimeout bounds a single backend call up to response headers
	DefaultInvokeTimeout = 240 * time.Second

	// DefaultAwaitTimeout is how long a caller waits for a response to be produced
	DefaultAwaitTimeout = 5 * time.Minute

	DefaultMaxConcurrent = 1
	DefaultWeight        = 1

	// DefaultStreamBufferSize is the copy buffer used when relaying bodies
	DefaultStreamBufferSize = 8 * 1024
)
