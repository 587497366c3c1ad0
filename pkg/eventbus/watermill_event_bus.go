package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(logger *slog.Logger, pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		logger:        logger.With("module", "event_bus"),
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	topic := events.TopicFor(event.GetType())

	eb.logger.DebugContext(ctx, "Publishing event", "topic", topic, "event_type", event.GetType(), "key", key)

	return eb.publisher.Publish(topic, msg)
}

// Subscribe starts consuming every topic that carries a registered event type.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	eb.mu.RLock()
	topics := map[string]struct{}{}

	for eventType := range eb.subscriptions {
		topics[events.TopicFor(eventType)] = struct{}{}
	}
	eb.mu.RUnlock()

	for _, topic := range slices.Sorted(maps.Keys(topics)) {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		eb.logger.InfoContext(ctx, "Subscribed to topic", "topic", topic)

		go eb.consume(ctx, messages)
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		if eb.process(ctx, msg) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	}
}

func (eb *WatermillEventBus) process(ctx context.Context, msg *message.Message) bool {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	eb.mu.RLock()
	handler, exists := eb.subscriptions[eventType]
	eb.mu.RUnlock()

	if !exists {
		return true
	}

	event, err := newEvent(eventType)
	if err != nil {
		eb.logger.ErrorContext(ctx, "Dropping message", "event_type", eventType, "error", err)

		return true
	}

	err = json.Unmarshal(msg.Payload, event)
	if err != nil {
		eb.logger.ErrorContext(ctx, "Dropping undecodable message", "event_type", eventType, "error", err)

		return true
	}

	ctx, span := otelhelper.StartSpan(ctx, otelhelper.DefaultTracer(), "eventbus.handle",
		attribute.String(otelhelper.EventTypeKey, string(eventType)),
		attribute.String(otelhelper.EventIDKey, msg.UUID),
	)
	defer span.End()

	err = handler(ctx, event)
	if err != nil {
		otelhelper.SetError(span, err)
		eb.logger.ErrorContext(ctx, "Event handler failed", "event_type", eventType, "message_id", msg.UUID, "error", err)

		return false
	}

	return true
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	if _, err := newEvent(eventType); err != nil {
		return err
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
