package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/shortlink/internal/shortener"
)

// Recorder appends click records and keeps the click counter in sync.
type Recorder struct {
	clicks  Store
	counter ClickCounter
	newID   func() string
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock overrides the time source used to stamp clicks.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a click recorder.
func NewRecorder(clicks Store, counter ClickCounter, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		clicks:  clicks,
		counter: counter,
		newID:   uuid.NewString,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RegisterClick records one visit of shortURL and increments its counter.
// Classification never aborts the record; only storage errors are returned.
func (r *Recorder) RegisterClick(ctx context.Context, shortURL *shortener.ShortURL, visit Visit) (*Click, error) {
	c := Classify(visit)

	click := &Click{
		ID:         r.newID(),
		ShortURLID: shortURL.ID,
		IPAddress:  visit.IPAddress,
		UserAgent:  visit.UserAgent,
		Referer:    visit.Referer,
		Device:     c.Device,
		Platform:   c.Platform,
		Browser:    c.Browser,
		Country:    c.Country,
		CreatedAt:  r.now().UTC(),
	}

	if err := r.clicks.SaveClick(ctx, click); err != nil {
		return nil, fmt.Errorf("save click: %w", err)
	}

	if err := r.counter.IncrementClickCount(ctx, shortURL.ID); err != nil {
		return click, fmt.Errorf("increment click count: %w", err)
	}

	return click, nil
}
