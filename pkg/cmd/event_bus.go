package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/zachsents/minus-sub000/pkg/channels/gochannel"
	"github.com/zachsents/minus-sub000/pkg/channels/kafka"
	"github.com/zachsents/minus-sub000/pkg/eventbus"
)

// NewEventBus builds the change feed transport. gochannel only reaches subscribers in the
// same process; kafka shares events between processes, one consumer group per serviceName.
//
// nolint:ireturn
func NewEventBus(logger *slog.Logger, provider string, brokers []string, serviceName string) (eventbus.EventBus, error) {
	adapter := watermill.NewSlogLogger(logger)

	switch provider {
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(adapter)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(adapter, brokers, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	default:
		return nil, fmt.Errorf("%w: event bus %q", ErrUnsupportedProvider, provider)
	}
}
