package handlers

import "time"

// CreateShortURLRequest is the request body for creating a short URL.
type CreateShortURLRequest struct {
	Body struct {
		URL        string     `doc:"The URL to shorten"                      example:"https://example.com/very/long/path" json:"url"                   maxLength:"2048"`
		CustomCode string     `doc:"Optional custom short code"              example:"promo-2026"                         json:"custom_code,omitempty" required:"false"`
		ExpiresIn  *int       `doc:"Days until the link expires (1 to 365)"  example:"30"                                 json:"expires_in,omitempty"  required:"false"`
		ExpiresAt  *time.Time `doc:"Explicit expiration, wins over expires_in"                                            json:"expires_at,omitempty"  required:"false"`
	}
}

// ShortURLBody describes a short URL in API responses.
type ShortURLBody struct {
	ShortURL    string     `doc:"The full short URL" example:"http://localhost:8888/abc123"       json:"short_url"`
	OriginalURL string     `doc:"The original URL"   example:"https://example.com/very/long/path" json:"original_url"`
	ShortCode   string     `doc:"The short code"     example:"abc123"                             json:"short_code"`
	IsCustom    bool       `doc:"Whether the code was chosen by the client"                       json:"is_custom"`
	ExpiresAt   *time.Time `doc:"When the link stops redirecting"                                 json:"expires_at"`
	CreatedAt   time.Time  `doc:"Creation time"                                                   json:"created_at"`
}

// CreateShortURLResponse is 201 for a new short URL, 200 when an active one
// already existed for the same URL.
type CreateShortURLResponse struct {
	Status   int
	Location string `doc:"The short URL location" header:"Location"`
	Body     struct {
		Message string `json:"message"`
		ShortURLBody
	}
}

// RedirectRequest is the request for redirecting a short URL.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// RedirectResponse is a 302 to the original URL.
type RedirectResponse struct {
	Status   int
	Location string `header:"Location"`
}

// CheckCodeRequest asks whether a custom code can be claimed.
type CheckCodeRequest struct {
	Code string `doc:"The candidate code" example:"promo-2026" path:"code"`
}

// CheckCodeResponse reports code availability.
type CheckCodeResponse struct {
	Body struct {
		Code      string `json:"code"`
		Available bool   `json:"available"`
		Reason    string `doc:"Machine readable rejection reason" enum:"required,too_short,too_long,malformed,reserved,taken" json:"reason,omitempty"`
		Message   string `json:"message"`
	}
}

// StatsRequest is the request for the statistics of a short URL.
type StatsRequest struct {
	Code string `doc:"The short code" example:"abc123" path:"code"`
}

// DayCountBody is the number of clicks on a UTC date.
type DayCountBody struct {
	Date  string `example:"2026-03-01" json:"date"`
	Count int64  `json:"count"`
}

// BrowserCountBody is the number of clicks from a browser.
type BrowserCountBody struct {
	Browser string `json:"browser"`
	Count   int64  `json:"count"`
}

// PlatformCountBody is the number of clicks from a platform.
type PlatformCountBody struct {
	Platform string `json:"platform"`
	Count    int64  `json:"count"`
}

// ReferrerCountBody is the number of clicks from a referrer.
type ReferrerCountBody struct {
	Referer string `json:"referer"`
	Count   int64  `json:"count"`
}

// ActivityBody aggregates the clicks of a short URL. Every field is present
// once the URL has been clicked.
type ActivityBody struct {
	ClicksByDay  []DayCountBody      `json:"clicks_by_day"`
	Browsers     []BrowserCountBody  `json:"browsers"`
	Platforms    []PlatformCountBody `json:"platforms"`
	TopReferrers []ReferrerCountBody `json:"top_referrers"`
	FirstClick   time.Time           `json:"first_click"`
	LastClick    time.Time           `json:"last_click"`
}

// StatsBody is the statistics view of a short URL. ExpiresAt and
// DaysRemaining are null for links that never expire. The activity fields
// are absent until the first click.
type StatsBody struct {
	OriginalURL   string     `json:"original_url"`
	ShortCode     string     `json:"short_code"`
	ClickCount    int64      `json:"click_count"`
	IsCustom      bool       `json:"is_custom"`
	IsExpired     bool       `json:"is_expired"`
	ExpiresAt     *time.Time `json:"expires_at"`
	DaysRemaining *int       `json:"days_remaining"`
	CreatedAt     time.Time  `json:"created_at"`

	*ActivityBody
}

// StatsResponse wraps StatsBody.
type StatsResponse struct {
	Body StatsBody
}
