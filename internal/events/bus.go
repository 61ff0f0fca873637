package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// Bus is an in-process pub/sub carrying lifecycle events from services to the
// notification boundary. Delivery is asynchronous; a slow subscriber never
// blocks the HTTP response path beyond the channel buffer.
type Bus struct {
	channel *gochannel.GoChannel
	logger  *zap.Logger
}

// NewBus creates a GoChannel-backed event bus.
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	channel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(buffer)},
		newWatermillLogger(logger),
	)
	return &Bus{channel: channel, logger: logger}
}

// Publish marshals the payload into an event envelope and publishes it.
func (b *Bus) Publish(ctx context.Context, eventType Type, payload interface{}) error {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	msg := message.NewMessage(event.ID, raw)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.SetContext(ctx)

	if err := b.channel.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	b.logger.Debug("published event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
	return nil
}

// Message aliases the transport message type so subscribers do not import
// watermill directly.
type Message = message.Message

// Subscribe returns the stream of published events.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *Message, error) {
	return b.channel.Subscribe(ctx, Topic)
}

// FromMessage unwraps the event envelope carried by a transport message.
func FromMessage(msg *Message) (*Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("event %s has no type", msg.UUID)
	}
	return &event, nil
}

// Close shuts the underlying channel down.
func (b *Bus) Close() error {
	return b.channel.Close()
}

// watermillLogger adapts zap to watermill's logging interface.
type watermillLogger struct {
	logger *zap.Logger
}

func newWatermillLogger(l *zap.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: l}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, zapFields(fields)...)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, zapFields(fields)...)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, zapFields(fields)...)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: w.logger.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		out = append(out, zap.Any(key, value))
	}
	return out
}
