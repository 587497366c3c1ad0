package cmd

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/zachsents/minus-sub000/pkg/changefeed"
	"github.com/zachsents/minus-sub000/pkg/eventbus"
	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/otelhelper"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/registry"
	"go.opentelemetry.io/otel/trace"
)

// Stack is what the API and the worker share: the stores, the event bus and the node
// definitions. Persistence publishes a change event for every trigger and run write.
type Stack struct {
	Config      Config
	Persistence persistence.Persistence
	Bus         eventbus.EventBus
	Registry    *registry.Registry
	Tracer      trace.Tracer

	store    persistence.Persistence
	logger   *slog.Logger
	shutdown otelhelper.Shutdown

	mu       sync.Mutex
	handlers map[events.EventType][]eventbus.EventHandler
}

func NewStack(ctx context.Context, logger *slog.Logger, config Config) (*Stack, error) {
	tracer := otelhelper.DefaultTracer()
	shutdown := otelhelper.Shutdown(func(context.Context) error { return nil })

	if config.Tracing {
		var err error

		tracer, shutdown, err = otelhelper.NewTracer(ctx, config.ServiceName)
		if err != nil {
			return nil, err
		}
	}

	reg, err := NewRegistry(logger, config.DefinitionsBase, config.DefinitionsOverlay)
	if err != nil {
		return nil, err
	}

	store, err := NewPersistence(ctx, logger, config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	bus, err := NewEventBus(logger, config.EventBus, config.KafkaBrokers, config.ServiceName)
	if err != nil {
		_ = store.Close(ctx)

		return nil, err
	}

	return &Stack{
		Config:      config,
		Persistence: changefeed.New(logger, store, bus),
		Bus:         bus,
		Registry:    reg,
		Tracer:      tracer,
		store:       store,
		logger:      logger,
		shutdown:    shutdown,
		handlers:    make(map[events.EventType][]eventbus.EventHandler),
	}, nil
}

// On adds a handler for eventType. Handlers of the same type run in the order they were
// added.
func (s *Stack) On(eventType events.EventType, handler eventbus.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[eventType] = append(s.handlers[eventType], handler)
}

// Subscribe registers the collected handlers and starts consuming.
func (s *Stack) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for eventType, handlers := range s.handlers {
		err := s.Bus.Handle(eventType, eventbus.Fanout(handlers...))
		if err != nil {
			return err
		}
	}

	return s.Bus.Subscribe(ctx)
}

func (s *Stack) Close(ctx context.Context) error {
	var errs []error

	err := s.Bus.Close()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		errs = append(errs, err)
	}

	err = s.store.Close(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		errs = append(errs, err)
	}

	err = s.shutdown(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
