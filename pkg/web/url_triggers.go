package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/services"
)

// RunWaiter blocks until a run finishes.
type RunWaiter interface {
	Wait(ctx context.Context, runID string, maxWait time.Duration) (*models.WorkflowRun, error)
}

// URLTriggerHandlers start runs from inbound requests. The trigger id is the t query parameter.
type URLTriggerHandlers struct {
	runs    *services.Runs
	waiter  RunWaiter
	maxWait time.Duration
	logger  *slog.Logger
}

func NewURLTriggerHandlers(logger *slog.Logger, runs *services.Runs, waiter RunWaiter, maxWait time.Duration) *URLTriggerHandlers {
	return &URLTriggerHandlers{
		runs:    runs,
		waiter:  waiter,
		maxWait: maxWait,
		logger:  logger.With("module", "url_triggers"),
	}
}

// Async queues the run and answers 202 right away.
func (h *URLTriggerHandlers) Async(c fiber.Ctx) error {
	run, err := h.runs.StartFromURL(c.Context(), c.Query("t"), models.TriggerTypeAsyncURL, captureRequest(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Queued run from URL trigger", "run_id", run.ID, "trigger_id", run.Trigger)

	return c.SendStatus(fiber.StatusAccepted)
}

// Sync queues the run and answers with the response the run produced once it finishes.
// A run without a response envelope gets 204. A run that does not finish within the
// maximum wait gets 504.
func (h *URLTriggerHandlers) Sync(c fiber.Ctx) error {
	ctx := c.Context()

	run, err := h.runs.StartFromURL(ctx, c.Query("t"), models.TriggerTypeSyncURL, captureRequest(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	finished, err := h.waiter.Wait(ctx, run.ID, h.maxWait)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.logger.InfoContext(ctx, "Caller stopped waiting for run", "run_id", run.ID)

			return gatewayTimeout(c, "the request ended before the workflow run finished")
		}

		return handleServiceError(c, err)
	}

	envelope := finished.URLResponse()
	if envelope == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	status := envelope.StatusCode
	if status == 0 {
		status = fiber.StatusOK
	}

	switch body := envelope.Body.(type) {
	case nil:
		return c.SendStatus(status)
	case string:
		return c.Status(status).SendString(body)
	default:
		return c.Status(status).JSON(body)
	}
}

// captureRequest copies the parts of the request a workflow can read. A JSON body is
// decoded, anything else is kept as text.
func captureRequest(c fiber.Ctx) services.URLRequest {
	headers := make(map[string]string)
	for name, values := range c.GetReqHeaders() {
		headers[name] = strings.Join(values, ", ")
	}

	var body any

	if raw := c.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	}

	return services.URLRequest{
		Method:  c.Method(),
		Headers: headers,
		Query:   c.Queries(),
		Body:    body,
	}
}
