package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(8, zap.NewNop())
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, TypeStatusChanged, StatusChanged{
		RequestID:    "req-1",
		Subject:      "Mathematics",
		NewStatus:    "completed",
		StudentName:  "Sam Student",
		StudentEmail: "sam@example.com",
	}))

	select {
	case msg := <-messages:
		event, err := FromMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, TypeStatusChanged, event.Type)
		assert.NotEmpty(t, event.ID)
		assert.Equal(t, string(TypeStatusChanged), msg.Metadata.Get("event_type"))

		var payload StatusChanged
		require.NoError(t, event.Decode(&payload))
		assert.Equal(t, "req-1", payload.RequestID)
		assert.Equal(t, "completed", payload.NewStatus)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestFromMessageRejectsGarbage(t *testing.T) {
	_, err := FromMessage(newRawMessage("not json"))
	assert.Error(t, err)

	_, err = FromMessage(newRawMessage(`{"id":"x","payload":{}}`))
	assert.Error(t, err)
}

func newRawMessage(payload string) *Message {
	return message.NewMessage("test", []byte(payload))
}
