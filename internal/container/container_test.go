package container_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/container"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/serroba/shortlink/internal/safety"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryOptions() *container.Options {
	return &container.Options{
		Port:          8888,
		Storage:       container.StorageMemory,
		CacheTTL:      60,
		LogFormat:     container.LogFormatConsole,
		LogLevel:      "error",
		RateLimit:     true,
		SafetyTimeout: 500,
	}
}

func newInjector(t *testing.T, opts *container.Options) *do.Injector {
	t.Helper()

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.ShortenerPackage(injector)
	container.AnalyticsPackage(injector)
	container.SafetyPackage(injector)
	container.RateLimitPackage(injector)
	container.PublisherGroupPackage(injector)
	container.HTTPPackage(injector)

	t.Cleanup(func() {
		_ = injector.Shutdown()
	})

	return injector
}

func TestOptions(t *testing.T) {
	t.Run("memory defaults are valid", func(t *testing.T) {
		require.NoError(t, memoryOptions().Validate())
	})

	t.Run("rejects unknown storage", func(t *testing.T) {
		opts := memoryOptions()
		opts.Storage = "sqlite"

		assert.ErrorContains(t, opts.Validate(), "sqlite")
	})

	t.Run("redis storage needs a redis address", func(t *testing.T) {
		opts := memoryOptions()
		opts.Storage = container.StorageRedis

		assert.ErrorContains(t, opts.Validate(), "redis")

		opts.RedisAddr = "localhost:6379"
		assert.NoError(t, opts.Validate())
	})

	t.Run("rejects unknown log format", func(t *testing.T) {
		opts := memoryOptions()
		opts.LogFormat = "xml"

		assert.Error(t, opts.Validate())
	})

	t.Run("events need redis", func(t *testing.T) {
		opts := memoryOptions()
		opts.Events = true

		assert.ErrorContains(t, opts.Validate(), "redis")
	})

	t.Run("drain timeout must not be negative", func(t *testing.T) {
		opts := memoryOptions()
		opts.DrainTimeout = -1

		assert.ErrorContains(t, opts.Validate(), "drain")

		opts.DrainTimeout = 15
		require.NoError(t, opts.Validate())
		assert.Equal(t, 15*time.Second, opts.ShutdownGrace())
	})

	t.Run("base url defaults to localhost and port", func(t *testing.T) {
		opts := memoryOptions()
		assert.Equal(t, "http://localhost:8888", opts.PublicBaseURL())

		opts.BaseURL = "https://sho.rt/"
		assert.Equal(t, "https://sho.rt", opts.PublicBaseURL())
	})
}

func TestPackages(t *testing.T) {
	t.Run("memory backend shares one store", func(t *testing.T) {
		injector := newInjector(t, memoryOptions())

		repo := do.MustInvoke[shortener.Repository](injector)
		mem := do.MustInvoke[*store.MemoryStore](injector)

		assert.Same(t, mem, repo)
	})

	t.Run("rate limit store is in memory without redis", func(t *testing.T) {
		injector := newInjector(t, memoryOptions())

		_, ok := do.MustInvoke[ratelimit.Store](injector).(*store.RateLimitMemoryStore)
		assert.True(t, ok)
	})

	t.Run("reserved codes option replaces defaults", func(t *testing.T) {
		opts := memoryOptions()
		opts.ReservedCodes = "promo, sale"

		registry := do.MustInvoke[*shortener.ReservationRegistry](newInjector(t, opts))

		assert.Equal(t, 2, registry.Len())
		assert.True(t, registry.IsReserved("PROMO"))
		assert.False(t, registry.IsReserved("admin"))
	})

	t.Run("blocked domains option replaces defaults", func(t *testing.T) {
		opts := memoryOptions()
		opts.BlockedDomains = "evil.test"

		checker := do.MustInvoke[safety.Checker](newInjector(t, opts))

		safe, err := checker.IsSafe(t.Context(), "https://login.evil.test/x")
		require.NoError(t, err)
		assert.False(t, safe)

		safe, err = checker.IsSafe(t.Context(), "https://phishing-site.org")
		require.NoError(t, err)
		assert.True(t, safe)
	})

	t.Run("redis is unavailable when not configured", func(t *testing.T) {
		injector := newInjector(t, memoryOptions())

		_, err := do.Invoke[*redis.Client](injector)
		assert.Error(t, err)

		_, err = do.Invoke[*shortener.Service](injector)
		assert.NoError(t, err)
	})
}

func TestHTTPPackage(t *testing.T) {
	injector := newInjector(t, memoryOptions())
	router := do.MustInvoke[*chi.Mux](injector)
	_ = do.MustInvoke[huma.API](injector)

	t.Run("shorten and redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/shorten",
			strings.NewReader(`{"url":"https://example.com/wired","custom_code":"wired"}`))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "http://localhost:8888/wired", w.Header().Get("Location"))
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wired", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://example.com/wired", w.Header().Get("Location"))
	})

	t.Run("stats count the redirect", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats/wired", nil))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var stats map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.InDelta(t, 1, stats["click_count"], 0)
	})

	t.Run("unsafe url is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/shorten",
			strings.NewReader(`{"url":"https://www.example-malicious.com/login"}`))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("health reports ok without dependencies", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"ok"`)
	})
}
