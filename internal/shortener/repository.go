package shortener

import (
	"context"
	"time"
)

// Repository defines the durable mapping from short code to ShortURL.
type Repository interface {
	// GetByCode returns ErrNotFound when the code does not exist. The click
	// count may lag when the entry is served from a cache.
	GetByCode(ctx context.Context, code Code) (*ShortURL, error)

	// GetActiveByOriginalURL returns an entry for url that never expires or
	// expires after now. Returns ErrNotFound when there is none.
	GetActiveByOriginalURL(ctx context.Context, url string, now time.Time) (*ShortURL, error)

	ExistsByCode(ctx context.Context, code Code) (bool, error)

	// Insert stores a new entry atomically. It returns ErrUniqueViolation
	// when the code is already taken.
	Insert(ctx context.Context, shortURL *ShortURL) error

	// IncrementClickCount atomically adds one to the entry's click count.
	IncrementClickCount(ctx context.Context, id string) error

	// ClickCount reads the authoritative click count of the entry.
	ClickCount(ctx context.Context, id string) (int64, error)
}
