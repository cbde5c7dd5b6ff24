package analytics

import "time"

const (
	TopicURLCreated = "url.created"
	TopicURLClicked = "url.clicked"
)

// URLCreatedEvent is emitted when a new short URL is stored.
type URLCreatedEvent struct {
	Code        string     `json:"code"`
	OriginalURL string     `json:"originalUrl"`
	IsCustom    bool       `json:"isCustom"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ClientIP    string     `json:"clientIp"`
	UserAgent   string     `json:"userAgent"`
}

// URLClickedEvent is emitted after a click record has been stored.
type URLClickedEvent struct {
	Code      string    `json:"code"`
	ClickID   string    `json:"clickId"`
	Device    string    `json:"device"`
	Browser   string    `json:"browser"`
	Platform  string    `json:"platform"`
	Country   string    `json:"country,omitempty"`
	Referer   string    `json:"referer,omitempty"`
	ClickedAt time.Time `json:"clickedAt"`
}

// NewURLClickedEvent builds the event for a recorded click.
func NewURLClickedEvent(code string, click *Click) *URLClickedEvent {
	return &URLClickedEvent{
		Code:      code,
		ClickID:   click.ID,
		Device:    click.Device,
		Browser:   click.Browser,
		Platform:  click.Platform,
		Country:   click.Country,
		Referer:   click.Referer,
		ClickedAt: click.CreatedAt,
	}
}
