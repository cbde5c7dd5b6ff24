package analytics

import "context"

// Store persists click records. Records are append-only.
type Store interface {
	SaveClick(ctx context.Context, click *Click) error

	// ListClicks returns every click of a short URL ordered by creation time.
	ListClicks(ctx context.Context, shortURLID string) ([]*Click, error)
}

// ClickCounter maintains the denormalized click count of a short URL.
type ClickCounter interface {
	IncrementClickCount(ctx context.Context, id string) error
}
