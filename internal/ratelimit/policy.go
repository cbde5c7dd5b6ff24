package ratelimit

import "time"

// LimitConfig allows at most Max requests per sliding Window.
type LimitConfig struct {
	Max    int64
	Window time.Duration
}

// Policy maps each scope to the limits enforced on it.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// DefaultPolicy is a generous global limit with tighter write limits;
// creating links is far more expensive than following them.
func DefaultPolicy() *Policy {
	return NewPolicyBuilder().
		AddLimit(ScopeGlobal, 1000, time.Minute).
		AddLimit(ScopeRead, 600, time.Minute).
		AddLimit(ScopeWrite, 30, time.Minute).
		AddLimit(ScopeWrite, 300, time.Hour).
		Build()
}

// PolicyBuilder assembles a Policy one limit at a time.
type PolicyBuilder struct {
	policy *Policy
}

// NewPolicyBuilder starts an empty policy.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{policy: &Policy{Limits: make(map[Scope][]LimitConfig)}}
}

// AddLimit allows max requests per window on scope.
func (b *PolicyBuilder) AddLimit(scope Scope, maxRequests int64, window time.Duration) *PolicyBuilder {
	b.policy.Limits[scope] = append(b.policy.Limits[scope], LimitConfig{Max: maxRequests, Window: window})

	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder) Build() *Policy {
	return b.policy
}
