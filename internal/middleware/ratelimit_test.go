package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testUserAgent = "TestAgent/1.0"

// mockStore counts hits in memory and can be told to fail.
type mockStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	blocked map[string]time.Duration
	lastKey string
	err     error
}

func newMockStore() *mockStore {
	return &mockStore{counts: make(map[string]int64), blocked: make(map[string]time.Duration)}
}

func (m *mockStore) Record(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}

	m.lastKey = key
	m.counts[key]++

	return m.counts[key], nil
}

func (m *mockStore) Block(_ context.Context, key string, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocked[key] = duration

	return m.err
}

func (m *mockStore) BlockedFor(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}

	return m.blocked[key], nil
}

func (m *mockStore) records() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, c := range m.counts {
		n += c
	}

	return int(n)
}

type okOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

func ok(context.Context, *struct{}) (*okOutput, error) {
	out := &okOutput{}
	out.Body.OK = true

	return out, nil
}

func register(api huma.API, id, method, path string, cfg *ratelimit.EndpointConfig) {
	op := huma.Operation{OperationID: id, Method: method, Path: path}
	if cfg != nil {
		op.Metadata = map[string]any{ratelimit.MetadataKey: *cfg}
	}

	huma.Register(api, op, ok)
}

type limitedRouter struct {
	router *chi.Mux
	store  *mockStore
}

func newLimitedRouter(t *testing.T, policy *ratelimit.Policy, guard ratelimit.BruteForceConfig) *limitedRouter {
	t.Helper()

	store := newMockStore()
	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	logger := zap.NewNop()

	api.UseMiddleware(
		middleware.RateLimit(api, ratelimit.NewPolicyLimiter(store, policy), logger),
		middleware.BruteForce(api, ratelimit.NewBruteForceGuard(store, guard), logger),
	)

	register(api, "list", http.MethodGet, "/items", nil)
	register(api, "create", http.MethodPost, "/items", nil)
	register(api, "open", http.MethodGet, "/open", &ratelimit.EndpointConfig{Disabled: true})
	register(api, "stats", http.MethodPost, "/stats", &ratelimit.EndpointConfig{Scope: ratelimit.ScopeRead})
	register(api, "custom", http.MethodGet, "/custom/{id}", &ratelimit.EndpointConfig{
		Limits: []ratelimit.LimitConfig{{Max: 2, Window: time.Minute}},
	})
	register(api, "guarded", http.MethodPost, "/guarded", &ratelimit.EndpointConfig{BruteForce: true})

	return &limitedRouter{router: router, store: store}
}

func (r *limitedRouter) do(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", testUserAgent)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)

	return w
}

func testPolicy() *ratelimit.Policy {
	return ratelimit.NewPolicyBuilder().
		AddLimit(ratelimit.ScopeGlobal, 100, time.Minute).
		AddLimit(ratelimit.ScopeRead, 3, time.Minute).
		AddLimit(ratelimit.ScopeWrite, 1, time.Minute).
		Build()
}

var testGuard = ratelimit.BruteForceConfig{
	MaxAttempts:   2,
	Window:        time.Minute,
	BlockDuration: 90 * time.Second,
}

func TestRateLimit(t *testing.T) {
	t.Run("reports remaining requests", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)

		w := r.do(http.MethodGet, "/items", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("rejects with 429 and Retry-After", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)

		require.Equal(t, http.StatusOK, r.do(http.MethodPost, "/items", nil).Code)

		w := r.do(http.MethodPost, "/items", nil)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.Contains(t, w.Body.String(), "1 requests per 1m0s")
	})

	t.Run("reads and writes are counted apart", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)

		require.Equal(t, http.StatusOK, r.do(http.MethodPost, "/items", nil).Code)
		assert.Equal(t, http.StatusOK, r.do(http.MethodGet, "/items", nil).Code)
		assert.Equal(t, http.StatusTooManyRequests, r.do(http.MethodPost, "/items", nil).Code)
	})

	t.Run("configured scope overrides the method", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)

		for range 3 {
			assert.Equal(t, http.StatusOK, r.do(http.MethodPost, "/stats", nil).Code)
		}

		assert.Equal(t, http.StatusTooManyRequests, r.do(http.MethodPost, "/stats", nil).Code)
	})

	t.Run("disabled endpoints are not counted", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)

		for range 10 {
			assert.Equal(t, http.StatusOK, r.do(http.MethodGet, "/open", nil).Code)
		}

		assert.Zero(t, r.store.records())
	})

	t.Run("endpoint limits share one counter per route", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)

		assert.Equal(t, http.StatusOK, r.do(http.MethodGet, "/custom/a", nil).Code)
		assert.Equal(t, http.StatusOK, r.do(http.MethodGet, "/custom/b", nil).Code)

		w := r.do(http.MethodGet, "/custom/c", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, r.store.lastKey, "/custom/{id}")
	})

	t.Run("user agents are counted apart", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)

		require.Equal(t, http.StatusOK, r.do(http.MethodPost, "/items", nil).Code)

		w := r.do(http.MethodPost, "/items", map[string]string{"User-Agent": "Other/2.0"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("forwarded client shares counter across proxies", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)

		w := r.do(http.MethodPost, "/items", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"})
		require.Equal(t, http.StatusOK, w.Code)

		w = r.do(http.MethodPost, "/items", map[string]string{"X-Forwarded-For": "203.0.113.195"})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("store errors return 500", func(t *testing.T) {
		r := newLimitedRouter(t, testPolicy(), testGuard)
		r.store.err = errors.New("store down")

		assert.Equal(t, http.StatusInternalServerError, r.do(http.MethodGet, "/items", nil).Code)
	})
}

func TestBruteForce(t *testing.T) {
	permissive := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeWrite, 100, time.Minute).Build()

	t.Run("counts down attempts", func(t *testing.T) {
		r := newLimitedRouter(t, permissive, testGuard)

		w := r.do(http.MethodPost, "/guarded", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("blocks after the last attempt", func(t *testing.T) {
		r := newLimitedRouter(t, permissive, testGuard)

		for range 2 {
			require.Equal(t, http.StatusOK, r.do(http.MethodPost, "/guarded", nil).Code)
		}

		for range 2 {
			w := r.do(http.MethodPost, "/guarded", nil)

			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Equal(t, "90", w.Header().Get("Retry-After"))
			assert.Contains(t, w.Body.String(), "too many attempts, retry in 90 seconds")
		}
	})

	t.Run("other endpoints are not guarded", func(t *testing.T) {
		r := newLimitedRouter(t, permissive, testGuard)

		for range 5 {
			assert.Equal(t, http.StatusOK, r.do(http.MethodPost, "/items", nil).Code)
		}

		assert.Empty(t, r.store.blocked)
	})

	t.Run("store errors return 500", func(t *testing.T) {
		store := newMockStore()
		store.err = errors.New("store down")

		router := chi.NewMux()
		api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
		api.UseMiddleware(middleware.BruteForce(api, ratelimit.NewBruteForceGuard(store, testGuard), zap.NewNop()))
		register(api, "guarded", http.MethodPost, "/guarded", &ratelimit.EndpointConfig{BruteForce: true})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/guarded", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
