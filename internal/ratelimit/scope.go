package ratelimit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Scope groups requests that share a set of policy limits.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeRead   Scope = "read"
	ScopeWrite  Scope = "write"

	// ScopeEndpoint labels results produced by EndpointConfig.Limits.
	ScopeEndpoint Scope = "endpoint"
)

// MetadataKey is the huma.Operation metadata key holding an EndpointConfig.
const MetadataKey = "rateLimit"

// EndpointConfig tunes rate limiting for one operation.
//
// Limits, when set, replace the policy for the endpoint and are counted per
// route template, so "/{code}" shares one counter for every code. Otherwise
// the policy limits of the global scope plus Scope (or the scope implied by
// the HTTP method) apply.
type EndpointConfig struct {
	Scope      Scope
	Limits     []LimitConfig
	Disabled   bool
	BruteForce bool
}

// EndpointConfigOf returns the EndpointConfig attached to op, or nil.
func EndpointConfigOf(op *huma.Operation) *EndpointConfig {
	if op == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}

// ScopesFor returns the policy scopes of a request. Safe methods are reads;
// everything else is a write. cfg may be nil.
func ScopesFor(method string, cfg *EndpointConfig) []Scope {
	if cfg != nil && cfg.Scope != "" {
		return []Scope{ScopeGlobal, cfg.Scope}
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return []Scope{ScopeGlobal, ScopeRead}
	default:
		return []Scope{ScopeGlobal, ScopeWrite}
	}
}
