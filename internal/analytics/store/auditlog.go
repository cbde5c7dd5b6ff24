package store

import (
	"context"

	"github.com/serroba/shortlink/internal/analytics"
	"go.uber.org/zap"
)

// AuditLog is an analytics.EventSink that writes each event to the log.
type AuditLog struct {
	logger *zap.Logger
}

// NewAuditLog creates an audit log sink.
func NewAuditLog(logger *zap.Logger) *AuditLog {
	return &AuditLog{logger: logger.Named("audit")}
}

func (a *AuditLog) SaveURLCreated(_ context.Context, event *analytics.URLCreatedEvent) error {
	fields := []zap.Field{
		zap.String("code", event.Code),
		zap.String("originalUrl", event.OriginalURL),
		zap.Bool("isCustom", event.IsCustom),
		zap.Time("createdAt", event.CreatedAt),
		zap.String("clientIp", event.ClientIP),
	}

	if event.ExpiresAt != nil {
		fields = append(fields, zap.Time("expiresAt", *event.ExpiresAt))
	}

	a.logger.Info("url created", fields...)

	return nil
}

func (a *AuditLog) SaveURLClicked(_ context.Context, event *analytics.URLClickedEvent) error {
	a.logger.Info("url clicked",
		zap.String("code", event.Code),
		zap.String("clickId", event.ClickID),
		zap.String("browser", event.Browser),
		zap.String("platform", event.Platform),
		zap.String("device", event.Device),
		zap.String("referer", event.Referer),
		zap.Time("clickedAt", event.ClickedAt),
	)

	return nil
}

// Compile-time check.
var _ analytics.EventSink = (*AuditLog)(nil)
