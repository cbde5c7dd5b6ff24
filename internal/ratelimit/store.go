package ratelimit

import (
	"context"
	"time"
)

// Store keeps sliding window counters and temporary blocks. Implementations
// must be safe for concurrent use.
type Store interface {
	// Record adds a hit for key and returns the number of hits within the
	// last window, the new one included.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)

	// Block rejects key for duration.
	Block(ctx context.Context, key string, duration time.Duration) error

	// BlockedFor returns how long key stays blocked, or zero when it is not.
	BlockedFor(ctx context.Context, key string) (time.Duration, error)
}
