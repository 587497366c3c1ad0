package cmd

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/runs"
	"github.com/zachsents/minus-sub000/pkg/services"
	"github.com/zachsents/minus-sub000/pkg/web"
)

const waiterPollInterval = time.Second

type API struct {
	app    *fiber.App
	logger *slog.Logger
}

// NewAPI builds the HTTP API on stack and subscribes the sync URL trigger waiter to run
// changes. Call it before stack.Subscribe.
func NewAPI(logger *slog.Logger, stack *Stack) *API {
	waiter := runs.NewWaiter(logger, stack.Persistence.WorkflowRuns(), waiterPollInterval)
	stack.On(events.WorkflowRunChangedEvent, waiter.HandleEvent)

	runService := services.NewRuns(stack.Persistence)

	handlers := web.NewAPIHandlers(
		services.NewDefinitions(stack.Registry),
		services.NewTriggers(stack.Persistence),
		runService,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	maxWait := stack.Config.SyncTriggerTimeout
	if maxWait <= 0 {
		maxWait = defaultSyncTriggerTimeout
	}

	urlTriggers := web.NewURLTriggerHandlers(logger, runService, waiter, maxWait)

	return &API{
		app:    web.NewApp(handlers, urlTriggers),
		logger: logger,
	}
}

func (a *API) App() *fiber.App {
	return a.app
}

// Start blocks serving on port.
func (a *API) Start(port int) error {
	a.logger.Info("Starting API", "port", port)

	return a.app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

// Serve blocks serving on an existing listener.
func (a *API) Serve(ln net.Listener) error {
	return a.app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.app.ShutdownWithContext(ctx)
}
