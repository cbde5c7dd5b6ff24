package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/handlers"
	"github.com/serroba/shortlink/internal/safety"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testURL     = "https://example.com/very/long/path"
	testBaseURL = "http://localhost:8888"
	chromeUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	firefoxUA   = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

// sequenceGenerator returns code1, code2, ... so tests get predictable codes.
func sequenceGenerator() shortener.CodeGenerator {
	n := 0

	return func() string {
		n++

		return "code" + strconv.Itoa(n)
	}
}

type recordingPublishers struct {
	created []*analytics.URLCreatedEvent
	clicked []*analytics.URLClickedEvent
	err     error
}

func (r *recordingPublishers) publishers() *analytics.Publishers {
	return &analytics.Publishers{
		URLCreated: func(_ context.Context, e *analytics.URLCreatedEvent) error {
			r.created = append(r.created, e)

			return r.err
		},
		URLClicked: func(_ context.Context, e *analytics.URLClickedEvent) error {
			r.clicked = append(r.clicked, e)

			return r.err
		},
	}
}

type testEnv struct {
	handler *handlers.URLHandler
	store   *store.MemoryStore
	clock   *testClock
	events  *recordingPublishers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	memStore := store.NewMemoryStore()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	events := &recordingPublishers{}

	service := shortener.NewService(
		memStore,
		shortener.NewReservationRegistry(shortener.DefaultReservedCodes),
		sequenceGenerator(),
		shortener.WithClock(clock.Now),
	)
	recorder := analytics.NewRecorder(memStore, memStore, analytics.WithRecorderClock(clock.Now))
	stats := analytics.NewStatsService(service, memStore, analytics.WithStatsClock(clock.Now))

	handler := handlers.NewURLHandler(
		service,
		recorder,
		stats,
		safety.NewBlacklist([]string{"phishing-site.org"}),
		events.publishers(),
		testBaseURL,
		zap.NewNop(),
	)

	return &testEnv{handler: handler, store: memStore, clock: clock, events: events}
}

func (e *testEnv) shorten(t *testing.T, url, custom string) *handlers.CreateShortURLResponse {
	t.Helper()

	req := &handlers.CreateShortURLRequest{}
	req.Body.URL = url
	req.Body.CustomCode = custom

	resp, err := e.handler.CreateShortURL(context.Background(), req)
	require.NoError(t, err)

	return resp
}

func (e *testEnv) visit(t *testing.T, code, userAgent, referer string) {
	t.Helper()

	ctx := handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{
		ClientIP:  "203.0.113.7",
		UserAgent: userAgent,
		Referrer:  referer,
	})

	_, err := e.handler.RedirectToURL(ctx, &handlers.RedirectRequest{Code: code})
	require.NoError(t, err)
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()

	var se huma.StatusError

	require.True(t, errors.As(err, &se), "expected huma status error, got %v", err)
	assert.Equal(t, status, se.GetStatus())
}

func TestCreateShortURL(t *testing.T) {
	t.Run("creates short url with generated code", func(t *testing.T) {
		env := newTestEnv(t)

		resp := env.shorten(t, testURL, "")

		assert.Equal(t, http.StatusCreated, resp.Status)
		assert.Equal(t, "code1", resp.Body.ShortCode)
		assert.Equal(t, testBaseURL+"/code1", resp.Body.ShortURL)
		assert.Equal(t, resp.Body.ShortURL, resp.Location)
		assert.Equal(t, testURL, resp.Body.OriginalURL)
		assert.False(t, resp.Body.IsCustom)
		assert.Nil(t, resp.Body.ExpiresAt)
	})

	t.Run("returns existing active entry for same url", func(t *testing.T) {
		env := newTestEnv(t)

		first := env.shorten(t, testURL, "")
		second := env.shorten(t, testURL, "")

		assert.Equal(t, http.StatusOK, second.Status)
		assert.Equal(t, first.Body.ShortCode, second.Body.ShortCode)
		assert.Len(t, env.events.created, 1, "only the first call creates")
	})

	t.Run("uses custom code verbatim", func(t *testing.T) {
		env := newTestEnv(t)

		resp := env.shorten(t, testURL, "Promo_2026")

		assert.Equal(t, "Promo_2026", resp.Body.ShortCode)
		assert.True(t, resp.Body.IsCustom)
	})

	t.Run("applies expiration in days", func(t *testing.T) {
		env := newTestEnv(t)
		days := 7

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = testURL
		req.Body.ExpiresIn = &days

		resp, err := env.handler.CreateShortURL(context.Background(), req)

		require.NoError(t, err)
		require.NotNil(t, resp.Body.ExpiresAt)
		assert.Equal(t, env.clock.now.AddDate(0, 0, 7), *resp.Body.ExpiresAt)
	})

	t.Run("rejects reserved custom code", func(t *testing.T) {
		env := newTestEnv(t)

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = testURL
		req.Body.CustomCode = "Admin"

		resp, err := env.handler.CreateShortURL(context.Background(), req)

		assert.Nil(t, resp)
		assertStatus(t, err, http.StatusUnprocessableEntity)
	})

	t.Run("rejects taken custom code", func(t *testing.T) {
		env := newTestEnv(t)
		env.shorten(t, "https://a.example.com", "taken1")

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = "https://b.example.com"
		req.Body.CustomCode = "taken1"

		_, err := env.handler.CreateShortURL(context.Background(), req)

		assertStatus(t, err, http.StatusUnprocessableEntity)
	})

	t.Run("rejects invalid url", func(t *testing.T) {
		env := newTestEnv(t)

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = "ftp://example.com/file"

		_, err := env.handler.CreateShortURL(context.Background(), req)

		assertStatus(t, err, http.StatusUnprocessableEntity)
	})

	t.Run("rejects out of range expiration", func(t *testing.T) {
		env := newTestEnv(t)
		days := 366

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = testURL
		req.Body.ExpiresIn = &days

		_, err := env.handler.CreateShortURL(context.Background(), req)

		assertStatus(t, err, http.StatusUnprocessableEntity)
	})

	t.Run("rejects blacklisted domain", func(t *testing.T) {
		env := newTestEnv(t)

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = "https://www.phishing-site.org/login"

		_, err := env.handler.CreateShortURL(context.Background(), req)

		assertStatus(t, err, http.StatusUnprocessableEntity)

		exists, _ := env.store.ExistsByCode(context.Background(), "code1")
		assert.False(t, exists)
	})

	t.Run("publishes created event with request meta", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{
			ClientIP:  "127.0.0.1",
			UserAgent: chromeUA,
		})

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = testURL

		_, err := env.handler.CreateShortURL(ctx, req)

		require.NoError(t, err)
		require.Len(t, env.events.created, 1)
		assert.Equal(t, "code1", env.events.created[0].Code)
		assert.Equal(t, "127.0.0.1", env.events.created[0].ClientIP)
	})

	t.Run("succeeds even when publish fails", func(t *testing.T) {
		env := newTestEnv(t)
		env.events.err = errors.New("broker down")

		resp := env.shorten(t, testURL, "")

		assert.Equal(t, http.StatusCreated, resp.Status)
	})
}

func TestRedirectToURL(t *testing.T) {
	t.Run("redirects with 302 and records the click", func(t *testing.T) {
		env := newTestEnv(t)
		env.shorten(t, testURL, "abc123")

		ctx := handlers.ContextWithRequestMeta(context.Background(), handlers.RequestMeta{
			ClientIP:  "127.0.0.1",
			UserAgent: chromeUA,
			Referrer:  "https://news.example.com",
		})

		resp, err := env.handler.RedirectToURL(ctx, &handlers.RedirectRequest{Code: "abc123"})

		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.Status)
		assert.Equal(t, testURL, resp.Location)

		got, _ := env.store.GetByCode(context.Background(), "abc123")
		assert.Equal(t, int64(1), got.ClickCount)

		require.Len(t, env.events.clicked, 1)
		assert.Equal(t, analytics.BrowserChrome, env.events.clicked[0].Browser)
		assert.Equal(t, analytics.CountryLocalhost, env.events.clicked[0].Country)
	})

	t.Run("returns 404 for unknown code", func(t *testing.T) {
		env := newTestEnv(t)

		resp, err := env.handler.RedirectToURL(context.Background(), &handlers.RedirectRequest{Code: "missing"})

		assert.Nil(t, resp)
		assertStatus(t, err, http.StatusNotFound)
	})

	t.Run("returns 410 once expired", func(t *testing.T) {
		env := newTestEnv(t)
		days := 1

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = testURL
		req.Body.CustomCode = "soon"
		req.Body.ExpiresIn = &days

		_, err := env.handler.CreateShortURL(context.Background(), req)
		require.NoError(t, err)

		env.clock.now = env.clock.now.AddDate(0, 0, 1)

		_, err = env.handler.RedirectToURL(context.Background(), &handlers.RedirectRequest{Code: "soon"})

		assertStatus(t, err, http.StatusGone)

		got, _ := env.store.GetByCode(context.Background(), "soon")
		assert.Zero(t, got.ClickCount, "expired redirects are not counted")
	})

	t.Run("redirects even when publish fails", func(t *testing.T) {
		env := newTestEnv(t)
		env.shorten(t, testURL, "abc123")
		env.events.err = errors.New("broker down")

		resp, err := env.handler.RedirectToURL(context.Background(), &handlers.RedirectRequest{Code: "abc123"})

		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.Status)
	})
}

func TestCheckCode(t *testing.T) {
	env := newTestEnv(t)
	env.shorten(t, testURL, "taken1")

	tests := []struct {
		name      string
		code      string
		available bool
		reason    string
	}{
		{name: "free code", code: "fresh-1", available: true},
		{name: "reserved code", code: "API", reason: "reserved"},
		{name: "taken code", code: "taken1", reason: "taken"},
		{name: "too short", code: "ab", reason: "too_short"},
		{name: "bad characters", code: "no spaces", reason: "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.handler.CheckCode(context.Background(), &handlers.CheckCodeRequest{Code: tt.code})

			require.NoError(t, err)
			assert.Equal(t, tt.available, resp.Body.Available)
			assert.Equal(t, tt.reason, resp.Body.Reason)
			assert.NotEmpty(t, resp.Body.Message)
		})
	}
}

func TestGetStats(t *testing.T) {
	t.Run("omits activity before the first click", func(t *testing.T) {
		env := newTestEnv(t)
		env.shorten(t, testURL, "abc123")

		resp, err := env.handler.GetStats(context.Background(), &handlers.StatsRequest{Code: "abc123"})

		require.NoError(t, err)
		assert.Equal(t, "abc123", resp.Body.ShortCode)
		assert.Zero(t, resp.Body.ClickCount)
		assert.Nil(t, resp.Body.DaysRemaining)
		assert.Nil(t, resp.Body.ActivityBody)
	})

	t.Run("aggregates clicks", func(t *testing.T) {
		env := newTestEnv(t)
		env.shorten(t, testURL, "abc123")

		env.visit(t, "abc123", chromeUA, "https://news.example.com")
		env.clock.now = env.clock.now.Add(time.Hour)
		env.visit(t, "abc123", chromeUA, "")
		env.clock.now = env.clock.now.Add(24 * time.Hour)
		env.visit(t, "abc123", firefoxUA, "https://news.example.com")

		resp, err := env.handler.GetStats(context.Background(), &handlers.StatsRequest{Code: "abc123"})

		require.NoError(t, err)

		require.NotNil(t, resp.Body.ActivityBody)
		assert.Equal(t, int64(3), resp.Body.ClickCount)

		body := resp.Body.ActivityBody
		assert.Equal(t, []handlers.DayCountBody{
			{Date: "2026-03-01", Count: 2},
			{Date: "2026-03-02", Count: 1},
		}, body.ClicksByDay)
		assert.Equal(t, []handlers.BrowserCountBody{
			{Browser: analytics.BrowserChrome, Count: 2},
			{Browser: analytics.BrowserFirefox, Count: 1},
		}, body.Browsers)
		assert.Equal(t, []handlers.ReferrerCountBody{
			{Referer: "https://news.example.com", Count: 2},
		}, body.TopReferrers)
		assert.True(t, body.LastClick.After(body.FirstClick))
	})

	t.Run("reports expired entries", func(t *testing.T) {
		env := newTestEnv(t)
		days := 2

		req := &handlers.CreateShortURLRequest{}
		req.Body.URL = testURL
		req.Body.CustomCode = "abc123"
		req.Body.ExpiresIn = &days

		_, err := env.handler.CreateShortURL(context.Background(), req)
		require.NoError(t, err)

		env.clock.now = env.clock.now.AddDate(0, 0, 3)

		resp, err := env.handler.GetStats(context.Background(), &handlers.StatsRequest{Code: "abc123"})

		require.NoError(t, err)
		assert.True(t, resp.Body.IsExpired)
		require.NotNil(t, resp.Body.DaysRemaining)
		assert.Equal(t, -1, *resp.Body.DaysRemaining)
	})

	t.Run("returns 404 for unknown code", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.handler.GetStats(context.Background(), &handlers.StatsRequest{Code: "missing"})

		assertStatus(t, err, http.StatusNotFound)
	})
}
