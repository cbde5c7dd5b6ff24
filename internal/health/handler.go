package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/ratelimit"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	Healthy        = "healthy"
	Unhealthy      = "unhealthy"
)

// DefaultTimeout bounds each dependency ping.
const DefaultTimeout = 2 * time.Second

// Checker pings one dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a ping function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// NewRedisChecker pings client.
func NewRedisChecker(client *redis.Client) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// NewPostgresChecker pings pool.
func NewPostgresChecker(pool *pgxpool.Pool) Checker {
	return CheckerFunc(pool.Ping)
}

// Component is the result of one dependency check.
type Component struct {
	Status    string `enum:"healthy,unhealthy" json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// Response reports overall status and each configured dependency.
type Response struct {
	Status int `json:"-"`
	Body   struct {
		Status     string               `enum:"ok,degraded" json:"status"`
		Components map[string]Component `json:"components,omitempty"`
	}
}

// Handler serves liveness and readiness checks.
type Handler struct {
	checkers map[string]Checker
	timeout  time.Duration
}

// NewHandler creates a health handler over the named dependencies.
// Dependencies that are not configured are simply left out.
func NewHandler(checkers map[string]Checker) *Handler {
	return &Handler{checkers: checkers, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of h with a different per-ping bound.
func (h *Handler) WithTimeout(d time.Duration) *Handler {
	return &Handler{checkers: h.checkers, timeout: d}
}

// Check pings every dependency concurrently. It always answers 200 so
// that a degraded dependency does not take the service out of rotation.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := h.run(ctx)
	resp.Status = http.StatusOK

	return resp, nil
}

// Ready is Check with 503 when any dependency is unhealthy.
func (h *Handler) Ready(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := h.run(ctx)

	resp.Status = http.StatusOK
	if resp.Body.Status != StatusOK {
		resp.Status = http.StatusServiceUnavailable
	}

	return resp, nil
}

func (h *Handler) run(ctx context.Context) *Response {
	resp := &Response{}
	resp.Body.Status = StatusOK
	resp.Body.Components = make(map[string]Component, len(h.checkers))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for name, checker := range h.checkers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			component := h.ping(ctx, checker)

			mu.Lock()
			defer mu.Unlock()

			resp.Body.Components[name] = component
			if component.Status != Healthy {
				resp.Body.Status = StatusDegraded
			}
		}()
	}

	wg.Wait()

	return resp
}

func (h *Handler) ping(ctx context.Context, checker Checker) Component {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := checker.Ping(ctx)
	component := Component{Status: Healthy, LatencyMs: time.Since(start).Milliseconds()}

	if err != nil {
		component.Status = Unhealthy
		component.Error = err.Error()
	}

	return component
}

// Probes are exempt from rate limiting.
func unlimited() map[string]any {
	return map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true}}
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
		Metadata:    unlimited(),
	}, h.Check)

	huma.Register(api, huma.Operation{
		OperationID: "health-ready",
		Method:      http.MethodGet,
		Path:        "/health/ready",
		Summary:     "Readiness probe",
		Tags:        []string{"Health"},
		Metadata:    unlimited(),
	}, h.Ready)
}
