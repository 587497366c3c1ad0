// Package eventbus provides event-driven communication between the minus services.
package eventbus

import (
	"context"
	"errors"

	"github.com/zachsents/minus-sub000/pkg/events"
)

var ErrUnknownEventType = errors.New("unknown event type")

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// Publish sends event on the topic of its type. key orders events that share it.
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event. A returned error nacks the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

func newEvent(eventType events.EventType) (any, error) {
	switch eventType {
	case events.TriggerChangedEvent:
		return &events.TriggerChanged{}, nil
	case events.WorkflowRunChangedEvent:
		return &events.WorkflowRunChanged{}, nil
	case events.EmailRequestedEvent:
		return &events.EmailRequested{}, nil
	default:
		return nil, ErrUnknownEventType
	}
}

// Fanout returns a handler that passes the event to every handler in order. The first
// error stops the chain and nacks the message, so handlers must tolerate redelivery.
func Fanout(handlers ...EventHandler) EventHandler {
	return func(ctx context.Context, event any) error {
		for _, handler := range handlers {
			err := handler(ctx, event)
			if err != nil {
				return err
			}
		}

		return nil
	}
}
