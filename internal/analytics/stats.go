package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

// TopReferrersLimit caps the number of referrers in a report.
const TopReferrersLimit = 10

const dateLayout = "2006-01-02"

// DayCount is the number of clicks on one UTC calendar date.
type DayCount struct {
	Date  string
	Count int64
}

// CategoryCount is the number of clicks for a browser or platform.
type CategoryCount struct {
	Category string
	Count    int64
}

// ReferrerCount is the number of clicks coming from a referrer.
type ReferrerCount struct {
	Referer string
	Count   int64
}

// Activity aggregates the click records of a short URL.
type Activity struct {
	ClicksByDay  []DayCount
	Browsers     []CategoryCount
	Platforms    []CategoryCount
	TopReferrers []ReferrerCount
	FirstClick   time.Time
	LastClick    time.Time
}

// Report is the statistics view of a short URL. Activity is nil when the
// URL has never been clicked.
type Report struct {
	OriginalURL   string
	Code          shortener.Code
	ClickCount    int64
	IsCustom      bool
	IsExpired     bool
	ExpiresAt     *time.Time
	DaysRemaining *int
	CreatedAt     time.Time
	Activity      *Activity
}

// Lookup resolves a code to its entry, expired or not.
type Lookup interface {
	Lookup(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error)
}

// StatsService builds reports from click records on read.
type StatsService struct {
	urls   Lookup
	clicks Store
	now    func() time.Time
}

// StatsOption configures a StatsService.
type StatsOption func(*StatsService)

// WithStatsClock overrides the time source used for expiration fields.
func WithStatsClock(now func() time.Time) StatsOption {
	return func(s *StatsService) {
		s.now = now
	}
}

// NewStatsService creates a stats service.
func NewStatsService(urls Lookup, clicks Store, opts ...StatsOption) *StatsService {
	s := &StatsService{
		urls:   urls,
		clicks: clicks,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Stats returns the report for code, or shortener.ErrNotFound.
func (s *StatsService) Stats(ctx context.Context, code shortener.Code) (*Report, error) {
	shortURL, err := s.urls.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	return s.Report(ctx, shortURL)
}

// Report builds the report of an already loaded entry.
func (s *StatsService) Report(ctx context.Context, shortURL *shortener.ShortURL) (*Report, error) {
	clicks, err := s.clicks.ListClicks(ctx, shortURL.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	return &Report{
		OriginalURL:   shortURL.OriginalURL,
		Code:          shortURL.Code,
		ClickCount:    shortURL.ClickCount,
		IsCustom:      shortURL.IsCustom,
		IsExpired:     shortURL.ExpiredAt(now),
		ExpiresAt:     shortURL.ExpiresAt,
		DaysRemaining: shortURL.DaysRemaining(now),
		CreatedAt:     shortURL.CreatedAt,
		Activity:      Aggregate(clicks),
	}, nil
}

// Aggregate groups clicks by day, browser, platform and referrer.
// It returns nil for an empty slice.
func Aggregate(clicks []*Click) *Activity {
	if len(clicks) == 0 {
		return nil
	}

	days := make(map[string]int64)
	browsers := make(map[string]int64)
	platforms := make(map[string]int64)
	referrers := make(map[string]int64)

	activity := &Activity{
		FirstClick: clicks[0].CreatedAt,
		LastClick:  clicks[0].CreatedAt,
	}

	for _, c := range clicks {
		days[c.CreatedAt.UTC().Format(dateLayout)]++
		browsers[orUnknown(c.Browser)]++
		platforms[orUnknown(c.Platform)]++

		if c.Referer != "" {
			referrers[c.Referer]++
		}

		if c.CreatedAt.Before(activity.FirstClick) {
			activity.FirstClick = c.CreatedAt
		}

		if c.CreatedAt.After(activity.LastClick) {
			activity.LastClick = c.CreatedAt
		}
	}

	activity.ClicksByDay = make([]DayCount, 0, len(days))
	for date, n := range days {
		activity.ClicksByDay = append(activity.ClicksByDay, DayCount{Date: date, Count: n})
	}

	// ISO dates sort lexically.
	sort.Slice(activity.ClicksByDay, func(i, j int) bool {
		return activity.ClicksByDay[i].Date < activity.ClicksByDay[j].Date
	})

	activity.Browsers = rankCategories(browsers)
	activity.Platforms = rankCategories(platforms)
	activity.TopReferrers = rankReferrers(referrers, TopReferrersLimit)

	return activity
}

func rankCategories(counts map[string]int64) []CategoryCount {
	ranked := make([]CategoryCount, 0, len(counts))
	for category, n := range counts {
		ranked = append(ranked, CategoryCount{Category: category, Count: n})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}

		return ranked[i].Category < ranked[j].Category
	})

	return ranked
}

func rankReferrers(counts map[string]int64, limit int) []ReferrerCount {
	ranked := make([]ReferrerCount, 0, len(counts))
	for referer, n := range counts {
		ranked = append(ranked, ReferrerCount{Referer: referer, Count: n})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}

		return ranked[i].Referer < ranked[j].Referer
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}

	return s
}
