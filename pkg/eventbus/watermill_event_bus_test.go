package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapllo/zaptick-sub010/pkg/channels/gochannel"
	"github.com/zapllo/zaptick-sub010/pkg/events"
)

func TestWatermillEventBusPublishSubscribe(t *testing.T) {
	ctx := context.Background()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	received := make(chan *events.ExecutionStarted, 1)

	err = bus.Handle(events.ExecutionStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.ExecutionStarted)
		require.True(t, ok)
		received <- started

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	started := events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, "tenant-1", "wf-1"),
		ExecutionID: "exec-1",
		ContactID:   "contact-1",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", started))

	select {
	case got := <-received:
		assert.Equal(t, "exec-1", got.ExecutionID)
		assert.Equal(t, "tenant-1", got.TenantID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBusIgnoresUnhandledTypes(t *testing.T) {
	ctx := context.Background()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	require.NoError(t, bus.Subscribe(ctx))

	cancelled := events.ExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, "tenant-1", "wf-1"),
		ExecutionID: "exec-1",
	}
	assert.NoError(t, bus.Publish(ctx, "wf-1", cancelled))
}
