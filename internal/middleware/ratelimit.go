package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerRetryAfter = "Retry-After"
)

// RateLimit throttles requests per client. Operations may attach a
// ratelimit.EndpointConfig under ratelimit.MetadataKey to disable limiting,
// pick a scope, or replace the policy with their own limits.
//
// Allowed responses carry X-RateLimit-Limit and X-RateLimit-Remaining for
// the limit closest to being hit; rejected ones get 429 and Retry-After.
func RateLimit(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.EndpointConfigOf(ctx.Operation())
		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		path := operationPath(ctx)
		key := clientKey(ctx)

		var (
			res ratelimit.Result
			err error
		)

		if cfg != nil && len(cfg.Limits) > 0 {
			res, err = limiter.AllowEndpoint(ctx.Context(), key, ctx.Method()+" "+path, cfg.Limits)
		} else {
			res, err = limiter.AllowScopes(ctx.Context(), key, ratelimit.ScopesFor(ctx.Method(), cfg))
		}

		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		if res.Limit.Max > 0 {
			ctx.SetHeader(headerLimit, strconv.FormatInt(res.Limit.Max, 10))
			ctx.SetHeader(headerRemaining, strconv.FormatInt(res.Remaining, 10))
		}

		if !res.Allowed {
			logger.Warn("rate limit exceeded",
				zap.String("path", path),
				zap.String("method", ctx.Method()),
				zap.String("scope", string(res.Scope)),
				zap.Int64("count", res.Count),
				zap.Int64("max", res.Limit.Max),
				zap.Duration("window", res.Limit.Window),
				zap.String("client_ip", clientIP(ctx)),
			)

			tooManyRequests(api, ctx, res.RetryAfter, fmt.Sprintf(
				"rate limit exceeded: %d requests per %s", res.Limit.Max, res.Limit.Window))

			return
		}

		next(ctx)
	}
}

func tooManyRequests(api huma.API, ctx huma.Context, retryAfter time.Duration, msg string) {
	ctx.SetHeader(headerRemaining, "0")
	ctx.SetHeader(headerRetryAfter, strconv.FormatInt(retryAfterSeconds(retryAfter), 10))
	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}

// retryAfterSeconds rounds up so clients never retry too early.
func retryAfterSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
