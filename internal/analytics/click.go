package analytics

import "time"

// Click is one recorded visit of a short URL. Derived fields are computed
// once when the click is recorded and never recomputed.
type Click struct {
	ID         string
	ShortURLID string

	// Raw request data; empty means not provided.
	IPAddress string
	UserAgent string
	Referer   string

	Device   string
	Platform string
	Browser  string
	Country  string // empty when unresolved

	CreatedAt time.Time
}

// Visit carries the request context of a redirect.
type Visit struct {
	IPAddress string
	UserAgent string
	Referer   string
}
