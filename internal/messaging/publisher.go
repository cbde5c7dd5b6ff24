package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Metadata keys set on every published message.
const (
	MetadataTopic       = "topic"
	MetadataPublishedAt = "published_at"
	MetadataContentType = "content_type"
)

const contentTypeJSON = "application/json"

// Publish sends one typed event. The context travels with the message.
type Publish[T any] func(ctx context.Context, event *T) error

// PublisherGroup owns a publisher shared by several typed publish
// functions, so it is closed exactly once.
type PublisherGroup struct {
	publisher message.Publisher
	logger    *zap.Logger
	now       func() time.Time
	published atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

// NewPublisherGroup wraps publisher.
func NewPublisherGroup(publisher message.Publisher, logger *zap.Logger) *PublisherGroup {
	return &PublisherGroup{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Bind returns a publish function for topic. Events are encoded as JSON.
func Bind[T any](g *PublisherGroup, topic string) Publish[T] {
	return func(ctx context.Context, event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", topic, err)
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)
		msg.Metadata.Set(MetadataTopic, topic)
		msg.Metadata.Set(MetadataContentType, contentTypeJSON)
		msg.Metadata.Set(MetadataPublishedAt, g.now().UTC().Format(time.RFC3339Nano))

		if err := g.publisher.Publish(topic, msg); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}

		g.published.Add(1)

		return nil
	}
}

// Published returns how many messages were handed to the publisher.
func (g *PublisherGroup) Published() int64 {
	return g.published.Load()
}

// Shutdown closes the underlying publisher. Later calls return the first
// result.
func (g *PublisherGroup) Shutdown() error {
	g.closeOnce.Do(func() {
		g.logger.Info("closing publisher", zap.Int64("published", g.Published()))
		g.closeErr = g.publisher.Close()
	})

	return g.closeErr
}
