package shortener

import "time"

// Code represents a short URL code.
type Code string

// ShortURL represents a shortened URL entity.
type ShortURL struct {
	ID          string
	Code        Code
	OriginalURL string
	IsCustom    bool
	ClickCount  int64
	ExpiresAt   *time.Time // nil means the entry never expires
	CreatedAt   time.Time
}

// ExpiredAt reports whether the entry is expired at the given instant.
// An entry whose expiration equals now is already expired.
func (s *ShortURL) ExpiredAt(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// ActiveAt reports whether the entry can still be redirected to at now.
func (s *ShortURL) ActiveAt(now time.Time) bool {
	return !s.ExpiredAt(now)
}

// DaysRemaining returns the signed number of whole days until expiration,
// truncated toward zero. It returns nil for entries that never expire.
func (s *ShortURL) DaysRemaining(now time.Time) *int {
	if s.ExpiresAt == nil {
		return nil
	}

	days := int(s.ExpiresAt.Sub(now) / (24 * time.Hour))

	return &days
}
