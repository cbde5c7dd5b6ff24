// Package safety decides whether a URL may be shortened.
package safety

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultBlockedDomains seeds the blacklist when none is configured.
var DefaultBlockedDomains = []string{
	"example-malicious.com",
	"phishing-site.org",
}

var mobilePrefix = regexp.MustCompile(`(?i)^(www\.|m\.)`)

// Checker reports whether a URL is safe to shorten.
type Checker interface {
	IsSafe(ctx context.Context, rawURL string) (bool, error)
}

// ExtractDomain returns the lowercased host of rawURL without a leading
// "www." or "m." label. It returns "" when rawURL has no host.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(mobilePrefix.ReplaceAllString(u.Hostname(), ""))
}

// Blacklist rejects listed domains and all of their subdomains.
type Blacklist struct {
	domains map[string]struct{}
}

// NewBlacklist creates a blacklist. Entries are trimmed and lowercased.
func NewBlacklist(domains []string) *Blacklist {
	b := &Blacklist{domains: make(map[string]struct{}, len(domains))}

	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			b.domains[d] = struct{}{}
		}
	}

	return b
}

func (b *Blacklist) IsSafe(_ context.Context, rawURL string) (bool, error) {
	return !b.Blocks(ExtractDomain(rawURL)), nil
}

// Blocks reports whether domain or one of its parent domains is listed.
func (b *Blacklist) Blocks(domain string) bool {
	if domain == "" {
		return false
	}

	for d := domain; ; {
		if _, ok := b.domains[d]; ok {
			return true
		}

		i := strings.IndexByte(d, '.')
		if i < 0 {
			return false
		}

		d = d[i+1:]
	}
}

// Len returns the number of listed domains.
func (b *Blacklist) Len() int {
	return len(b.domains)
}

// TimeoutChecker bounds the time spent in the wrapped checker.
type TimeoutChecker struct {
	next    Checker
	timeout time.Duration
}

// WithTimeout wraps next so each call gives up after timeout.
func WithTimeout(next Checker, timeout time.Duration) *TimeoutChecker {
	return &TimeoutChecker{next: next, timeout: timeout}
}

func (c *TimeoutChecker) IsSafe(ctx context.Context, rawURL string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		safe bool
		err  error
	}

	done := make(chan result, 1)

	go func() {
		safe, err := c.next.IsSafe(ctx, rawURL)
		done <- result{safe: safe, err: err}
	}()

	select {
	case r := <-done:
		return r.safe, r.err
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

// Compile-time checks.
var (
	_ Checker = (*Blacklist)(nil)
	_ Checker = (*TimeoutChecker)(nil)
)
