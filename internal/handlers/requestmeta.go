package handlers

import (
	"context"

	"go.uber.org/zap"
)

type requestMetaKey struct{}

// RequestMeta holds HTTP request metadata used for analytics and logging.
type RequestMeta struct {
	RequestID string
	ClientIP  string
	UserAgent string
	Referrer  string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context. The zero
// value is returned when none was set.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)

	return meta
}

// log returns the handler logger tagged with the request ID, if any.
func (h *URLHandler) log(ctx context.Context) *zap.Logger {
	if id := RequestMetaFromContext(ctx).RequestID; id != "" {
		return h.logger.With(zap.String("requestId", id))
	}

	return h.logger
}
