package messaging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/serroba/shortlink/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRunnable struct {
	name        string
	log         *[]string
	startErr    error
	shutdownErr error
}

func (m *mockRunnable) Name() string {
	return m.name
}

func (m *mockRunnable) Start(_ context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}

	*m.log = append(*m.log, "start "+m.name)

	return nil
}

func (m *mockRunnable) Shutdown() error {
	*m.log = append(*m.log, "stop "+m.name)

	return m.shutdownErr
}

func TestConsumerGroup_Start(t *testing.T) {
	t.Run("starts consumers in order", func(t *testing.T) {
		var log []string

		group := messaging.NewConsumerGroup(newMockSubscriber(), zap.NewNop())
		group.Add(&mockRunnable{name: "a", log: &log}, &mockRunnable{name: "b", log: &log})

		require.NoError(t, group.Start(context.Background()))

		assert.Equal(t, 2, group.Len())
		assert.Equal(t, []string{"start a", "start b"}, log)
	})

	t.Run("rolls back started consumers", func(t *testing.T) {
		var log []string

		group := messaging.NewConsumerGroup(newMockSubscriber(), zap.NewNop())
		group.Add(
			&mockRunnable{name: "a", log: &log},
			&mockRunnable{name: "b", log: &log},
			&mockRunnable{name: "c", log: &log, startErr: errors.New("boom")},
		)

		err := group.Start(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "start consumer c: boom")
		assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
	})

	t.Run("refuses a second start", func(t *testing.T) {
		var log []string

		group := messaging.NewConsumerGroup(newMockSubscriber(), zap.NewNop())
		group.Add(&mockRunnable{name: "a", log: &log})

		require.NoError(t, group.Start(context.Background()))
		assert.ErrorIs(t, group.Start(context.Background()), messaging.ErrGroupStarted)
	})
}

func TestConsumerGroup_Shutdown(t *testing.T) {
	t.Run("stops in reverse order then closes the subscriber", func(t *testing.T) {
		var log []string

		sub := newMockSubscriber()
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		group.Add(&mockRunnable{name: "a", log: &log}, &mockRunnable{name: "b", log: &log})
		require.NoError(t, group.Start(context.Background()))

		require.NoError(t, group.Shutdown())

		assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
		assert.True(t, sub.isClosed())
	})

	t.Run("joins every error", func(t *testing.T) {
		var log []string

		sub := newMockSubscriber()
		sub.closeErr = errors.New("close failed")

		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		group.Add(
			&mockRunnable{name: "a", log: &log, shutdownErr: errors.New("a failed")},
			&mockRunnable{name: "b", log: &log, shutdownErr: errors.New("b failed")},
		)
		require.NoError(t, group.Start(context.Background()))

		err := group.Shutdown()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "stop consumer a: a failed")
		assert.Contains(t, err.Error(), "stop consumer b: b failed")
		assert.Contains(t, err.Error(), "close subscriber: close failed")
		assert.True(t, sub.isClosed())
	})

	t.Run("group can restart after shutdown", func(t *testing.T) {
		var log []string

		group := messaging.NewConsumerGroup(newMockSubscriber(), zap.NewNop())
		group.Add(&mockRunnable{name: "a", log: &log})

		require.NoError(t, group.Start(context.Background()))
		require.NoError(t, group.Shutdown())
		require.NoError(t, group.Start(context.Background()))
	})
}
