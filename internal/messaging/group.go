package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// ErrGroupStarted is returned when Start is called on a running group.
var ErrGroupStarted = errors.New("consumer group already started")

// Runnable is a named background component with a start/stop lifecycle.
type Runnable interface {
	Name() string
	Start(ctx context.Context) error
	Shutdown() error
}

// ConsumerGroup runs consumers that share one subscriber. Shutdown stops
// them in reverse start order and then closes the subscriber.
type ConsumerGroup struct {
	mu         sync.Mutex
	consumers  []Runnable
	running    []Runnable
	subscriber message.Subscriber
	logger     *zap.Logger
}

// NewConsumerGroup creates an empty group over subscriber.
func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Add registers consumers. Consumers added after Start are not started.
func (g *ConsumerGroup) Add(consumers ...Runnable) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consumers = append(g.consumers, consumers...)
}

// Len returns the number of registered consumers.
func (g *ConsumerGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.consumers)
}

// Start starts every consumer. If one fails, those already started are
// stopped again and the combined error is returned.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.running) > 0 {
		return ErrGroupStarted
	}

	for _, consumer := range g.consumers {
		if err := consumer.Start(ctx); err != nil {
			startErr := fmt.Errorf("start consumer %s: %w", consumer.Name(), err)

			return errors.Join(startErr, g.stopRunning())
		}

		g.running = append(g.running, consumer)
	}

	names := make([]string, len(g.running))
	for i, c := range g.running {
		names[i] = c.Name()
	}

	g.logger.Info("consumer group started", zap.Strings("consumers", names))

	return nil
}

// Shutdown stops all running consumers and closes the subscriber. Every
// step runs even if an earlier one fails.
func (g *ConsumerGroup) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down consumer group", zap.Int("running", len(g.running)))

	stopErr := g.stopRunning()

	var closeErr error
	if err := g.subscriber.Close(); err != nil {
		closeErr = fmt.Errorf("close subscriber: %w", err)
	}

	return errors.Join(stopErr, closeErr)
}

// stopRunning must be called with mu held.
func (g *ConsumerGroup) stopRunning() error {
	var errs []error

	for i := len(g.running) - 1; i >= 0; i-- {
		if err := g.running[i].Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("stop consumer %s: %w", g.running[i].Name(), err))
		}
	}

	g.running = nil

	return errors.Join(errs...)
}
