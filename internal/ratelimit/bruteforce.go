package ratelimit

import (
	"context"
	"time"
)

// BruteForceConfig configures a BruteForceGuard.
type BruteForceConfig struct {
	MaxAttempts   int64
	Window        time.Duration
	BlockDuration time.Duration
}

// DefaultBruteForceConfig allows 5 attempts per 15 minutes and blocks for an hour.
func DefaultBruteForceConfig() BruteForceConfig {
	return BruteForceConfig{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: time.Hour,
	}
}

// Decision is the outcome of a BruteForceGuard check.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// BruteForceGuard blocks a client for BlockDuration once it exceeds
// MaxAttempts within Window. A blocked client is rejected without counting.
type BruteForceGuard struct {
	store  Store
	config BruteForceConfig
}

// NewBruteForceGuard creates a guard on store.
func NewBruteForceGuard(store Store, config BruteForceConfig) *BruteForceGuard {
	return &BruteForceGuard{store: store, config: config}
}

// Check records one attempt for key unless key is already blocked.
func (g *BruteForceGuard) Check(ctx context.Context, key string) (Decision, error) {
	blockKey := "bruteforce:" + key

	remaining, err := g.store.BlockedFor(ctx, blockKey)
	if err != nil {
		return Decision{}, err
	}

	if remaining > 0 {
		return Decision{Limit: g.config.MaxAttempts, RetryAfter: remaining}, nil
	}

	count, err := g.store.Record(ctx, blockKey, g.config.Window)
	if err != nil {
		return Decision{}, err
	}

	if count > g.config.MaxAttempts {
		if err := g.store.Block(ctx, blockKey, g.config.BlockDuration); err != nil {
			return Decision{}, err
		}

		return Decision{Limit: g.config.MaxAttempts, RetryAfter: g.config.BlockDuration}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     g.config.MaxAttempts,
		Remaining: g.config.MaxAttempts - count,
	}, nil
}
