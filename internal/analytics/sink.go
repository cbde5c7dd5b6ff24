package analytics

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink/internal/messaging"
	"go.uber.org/zap"
)

// EventSink receives analytics events delivered by the consumer.
type EventSink interface {
	SaveURLCreated(ctx context.Context, event *URLCreatedEvent) error
	SaveURLClicked(ctx context.Context, event *URLClickedEvent) error
}

// SinkTimeout bounds a single sink write.
const SinkTimeout = 5 * time.Second

// NewConsumers creates one consumer per analytics topic, all writing to sink.
func NewConsumers(subscriber message.Subscriber, sink EventSink, logger *zap.Logger) []messaging.Runnable {
	timeout := messaging.WithHandlerTimeout(SinkTimeout)

	return []messaging.Runnable{
		messaging.NewConsumer[URLCreatedEvent](subscriber, TopicURLCreated, sink.SaveURLCreated, logger, timeout),
		messaging.NewConsumer[URLClickedEvent](subscriber, TopicURLClicked, sink.SaveURLClicked, logger, timeout),
	}
}
