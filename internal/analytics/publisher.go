package analytics

import (
	"context"

	"github.com/serroba/shortlink/internal/messaging"
)

// Publishers groups the typed publish functions for analytics topics.
type Publishers struct {
	URLCreated messaging.Publish[URLCreatedEvent]
	URLClicked messaging.Publish[URLClickedEvent]
}

// NewPublishers binds both analytics topics to group.
func NewPublishers(group *messaging.PublisherGroup) *Publishers {
	return &Publishers{
		URLCreated: messaging.Bind[URLCreatedEvent](group, TopicURLCreated),
		URLClicked: messaging.Bind[URLClickedEvent](group, TopicURLClicked),
	}
}

// NoopPublishers discards every event. Used when event publishing is disabled.
func NoopPublishers() *Publishers {
	return &Publishers{
		URLCreated: func(context.Context, *URLCreatedEvent) error { return nil },
		URLClicked: func(context.Context, *URLClickedEvent) error { return nil },
	}
}
