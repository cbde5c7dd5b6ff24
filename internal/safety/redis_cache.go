package safety

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// MaliciousDomainTTL is how long a rejected domain stays cached.
const MaliciousDomainTTL = 7 * 24 * time.Hour

// CachedChecker remembers rejected domains in Redis so repeat submissions
// are refused without consulting the wrapped checker.
type CachedChecker struct {
	next   Checker
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCachedChecker wraps next with a Redis cache of malicious domains.
func NewCachedChecker(next Checker, client *redis.Client, ttl time.Duration) *CachedChecker {
	return &CachedChecker{
		next:   next,
		client: client,
		prefix: "malicious_domain:",
		ttl:    ttl,
	}
}

func (c *CachedChecker) IsSafe(ctx context.Context, rawURL string) (bool, error) {
	domain := ExtractDomain(rawURL)
	key := c.prefix + domain

	if domain != "" {
		n, err := c.client.Exists(ctx, key).Result()
		if err == nil && n > 0 {
			return false, nil
		}
	}

	safe, err := c.next.IsSafe(ctx, rawURL)
	if err != nil {
		return safe, err
	}

	if !safe && domain != "" {
		if err := c.client.Set(ctx, key, 1, c.ttl).Err(); err != nil {
			return false, err
		}
	}

	return safe, nil
}

// Compile-time check.
var _ Checker = (*CachedChecker)(nil)
