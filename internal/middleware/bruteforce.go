package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/ratelimit"
	"go.uber.org/zap"
)

// BruteForce guards operations whose EndpointConfig sets BruteForce. Each
// client gets a fixed number of attempts per route before being blocked.
// It runs after RateLimit and overwrites its headers, since the guard is
// always the tighter of the two.
func BruteForce(
	api huma.API,
	guard *ratelimit.BruteForceGuard,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.EndpointConfigOf(ctx.Operation())
		if cfg == nil || !cfg.BruteForce {
			next(ctx)

			return
		}

		path := operationPath(ctx)

		decision, err := guard.Check(ctx.Context(), clientKey(ctx)+":"+path)
		if err != nil {
			logger.Error("brute force check failed", zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		ctx.SetHeader(headerLimit, strconv.FormatInt(decision.Limit, 10))

		if !decision.Allowed {
			logger.Warn("brute force protection triggered",
				zap.String("path", path),
				zap.String("method", ctx.Method()),
				zap.String("client_ip", clientIP(ctx)),
				zap.String("user_agent", ctx.Header("User-Agent")),
				zap.Duration("retry_after", decision.RetryAfter),
			)

			tooManyRequests(api, ctx, decision.RetryAfter, fmt.Sprintf(
				"too many attempts, retry in %d seconds", retryAfterSeconds(decision.RetryAfter)))

			return
		}

		ctx.SetHeader(headerRemaining, strconv.FormatInt(decision.Remaining, 10))

		next(ctx)
	}
}
