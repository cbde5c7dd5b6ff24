package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result describes the limit a request came closest to. When no limit
// applies Limit is the zero value and Allowed is true.
type Result struct {
	Allowed bool
	Scope   Scope
	Limit   LimitConfig
	Count   int64

	// Remaining is how many more requests the reported limit allows.
	Remaining int64

	// RetryAfter is set on rejection. Counters slide, so a full window is
	// the longest a client may have to wait.
	RetryAfter time.Duration
}

// PolicyLimiter counts requests against a policy or endpoint limits.
type PolicyLimiter struct {
	store  Store
	policy *Policy
}

// NewPolicyLimiter creates a limiter over store.
func NewPolicyLimiter(store Store, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{store: store, policy: policy}
}

type keyedLimit struct {
	key   string
	scope Scope
	limit LimitConfig
}

// AllowScopes records one request of client against the policy limits of scopes.
func (l *PolicyLimiter) AllowScopes(ctx context.Context, client string, scopes []Scope) (Result, error) {
	var limits []keyedLimit

	for _, scope := range scopes {
		for _, limit := range l.policy.Limits[scope] {
			limits = append(limits, keyedLimit{
				key:   fmt.Sprintf("ratelimit:%s:%s:%d", client, scope, limit.Window.Milliseconds()),
				scope: scope,
				limit: limit,
			})
		}
	}

	return l.check(ctx, limits)
}

// AllowEndpoint records one request of client against limits of route.
func (l *PolicyLimiter) AllowEndpoint(ctx context.Context, client, route string, limits []LimitConfig) (Result, error) {
	keyed := make([]keyedLimit, 0, len(limits))

	for _, limit := range limits {
		keyed = append(keyed, keyedLimit{
			key:   fmt.Sprintf("ratelimit:%s:route:%s:%d", client, route, limit.Window.Milliseconds()),
			scope: ScopeEndpoint,
			limit: limit,
		})
	}

	return l.check(ctx, keyed)
}

// check stops at the first exceeded limit; later limits are not counted.
func (l *PolicyLimiter) check(ctx context.Context, limits []keyedLimit) (Result, error) {
	result := Result{Allowed: true}

	for _, kl := range limits {
		count, err := l.store.Record(ctx, kl.key, kl.limit.Window)
		if err != nil {
			return Result{}, fmt.Errorf("record %s limit: %w", kl.scope, err)
		}

		remaining := max(kl.limit.Max-count, 0)

		if count > kl.limit.Max {
			return Result{
				Scope:      kl.scope,
				Limit:      kl.limit,
				Count:      count,
				RetryAfter: kl.limit.Window,
			}, nil
		}

		if result.Limit.Max == 0 || remaining < result.Remaining {
			result.Scope = kl.scope
			result.Limit = kl.limit
			result.Count = count
			result.Remaining = remaining
		}
	}

	return result, nil
}
