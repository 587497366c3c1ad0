package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence/file"
	"github.com/zachsents/minus-sub000/pkg/registry"
	"github.com/zachsents/minus-sub000/pkg/runs"
	"github.com/zachsents/minus-sub000/pkg/services"
	"github.com/zachsents/minus-sub000/pkg/web"
)

func setupTestApp(t *testing.T, maxWait time.Duration) (*fiber.App, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	persistence := file.NewPersistence(t.TempDir())

	require.NoError(t, persistence.Workflows().SaveWorkflow(context.Background(), &models.Workflow{ID: "wf-1", Name: "Echo", Organization: "org-1"}))

	reg, err := registry.NewDefault(logger)
	require.NoError(t, err)

	runService := services.NewRuns(persistence)
	handlers := web.NewAPIHandlers(
		services.NewDefinitions(reg),
		services.NewTriggers(persistence),
		runService,
		validator.New(validator.WithRequiredStructEnabled()),
	)
	urlTriggers := web.NewURLTriggerHandlers(logger, runService, runs.NewWaiter(logger, persistence.WorkflowRuns(), 10*time.Millisecond), maxWait)

	return web.NewApp(handlers, urlTriggers), persistence
}

func do(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func createTrigger(t *testing.T, app *fiber.App, triggerType models.TriggerType) *models.Trigger {
	t.Helper()

	resp, body := do(t, app, http.MethodPost, "/workflows/wf-1/triggers", web.TriggerRequest{Type: triggerType})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var trigger models.Trigger
	require.NoError(t, json.Unmarshal(body, &trigger))

	return &trigger
}

func TestAPI_RootAndHealth(t *testing.T) {
	app, _ := setupTestApp(t, time.Second)

	resp, body := do(t, app, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Minus API", string(body))

	resp, _ = do(t, app, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestAPI_Definitions(t *testing.T) {
	app, _ := setupTestApp(t, time.Second)

	resp, body := do(t, app, http.MethodGet, "/definitions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var definitions []models.NodeDefinition
	require.NoError(t, json.Unmarshal(body, &definitions))
	require.NotEmpty(t, definitions)

	id := definitions[0].ID

	resp, _ = do(t, app, http.MethodGet, "/definitions/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, app, http.MethodPost, "/definitions/"+id+"/instantiate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var node models.Node
	require.NoError(t, json.Unmarshal(body, &node))
	assert.Equal(t, id, node.Definition)

	node.Inputs = append(node.Inputs, &models.InterfaceInstance{ID: "stray", Definition: "no-such-input"})

	resp, body = do(t, app, http.MethodPost, "/definitions/"+id+"/validate", node)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateNodeResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)

	resp, body = do(t, app, http.MethodGet, "/definitions/does.not.exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "definition_not_found")
}

func TestAPI_TriggerLifecycle(t *testing.T) {
	app, _ := setupTestApp(t, time.Second)

	resp, body := do(t, app, http.MethodPost, "/workflows/wf-1/triggers", web.TriggerRequest{
		Type:     models.TriggerTypeRecurringSchedule,
		Schedule: &models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "25:00"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	trigger := createTrigger(t, app, models.TriggerTypeManual)

	resp, _ = do(t, app, http.MethodGet, "/triggers/"+trigger.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, app, http.MethodPut, "/triggers/"+trigger.ID, web.TriggerRequest{
		Type:     models.TriggerTypeRecurringSchedule,
		Schedule: &models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalWeek, AtTime: "07:00", OnWeekday: 1},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = do(t, app, http.MethodGet, "/workflows/wf-1/triggers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"recurring-schedule"`)

	resp, _ = do(t, app, http.MethodDelete, "/triggers/"+trigger.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/triggers/"+trigger.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "trigger_not_found")

	resp, _ = do(t, app, http.MethodPost, "/workflows/missing/triggers", web.TriggerRequest{Type: models.TriggerTypeManual})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_RunLifecycle(t *testing.T) {
	app, persistence := setupTestApp(t, time.Second)

	resp, body := do(t, app, http.MethodPost, "/workflows/wf-1/runs", web.StartRunRequest{TriggerData: map[string]any{"x": 1}})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var run models.WorkflowRun
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, models.RunStatusPending, run.Status)

	// reporting before the run started conflicts
	resp, _ = do(t, app, http.MethodPost, "/runs/"+run.ID+"/report", web.ReportRunRequest{Status: models.RunStatusCompleted})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, err := persistence.WorkflowRuns().TransitionRun(context.Background(), run.ID, models.RunStatusPending, func(r *models.WorkflowRun) error {
		r.Status = models.RunStatusRunning

		return nil
	}, nil)
	require.NoError(t, err)

	resp, _ = do(t, app, http.MethodPost, "/runs/"+run.ID+"/report", web.ReportRunRequest{Status: models.RunStatusRunning})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, app, http.MethodPost, "/runs/"+run.ID+"/report", web.ReportRunRequest{
		Status: models.RunStatusFailed,
		Errors: []models.RunError{{Message: "boom"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"FAILED"`)

	resp, _ = do(t, app, http.MethodPost, "/runs/"+run.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, app, http.MethodGet, "/workflows/wf-1/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), run.ID)
}

func TestAPI_AsyncURLTrigger(t *testing.T) {
	app, persistence := setupTestApp(t, time.Second)
	trigger := createTrigger(t, app, models.TriggerTypeAsyncURL)

	resp, body := do(t, app, http.MethodPost, "/url-triggers/async?t="+trigger.ID+"&source=test", map[string]any{"hello": "world"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, body)

	all, err := persistence.WorkflowRuns().RunsByWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.RunStatusPending, all[0].Status)
	assert.Equal(t, "POST", all[0].TriggerData["method"])
	assert.Equal(t, map[string]any{"hello": "world"}, all[0].TriggerData["body"])

	resp, _ = do(t, app, http.MethodGet, "/url-triggers/async?t=missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sync := createTrigger(t, app, models.TriggerTypeSyncURL)
	resp, _ = do(t, app, http.MethodGet, "/url-triggers/async?t="+sync.ID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// finishRuns completes every pending run of wf-1 with response, as the runner would.
func finishRuns(t *testing.T, persistence *file.Persistence, response *models.URLResponse) {
	t.Helper()

	go func() {
		ctx := context.Background()

		for range 200 {
			all, err := persistence.WorkflowRuns().RunsByWorkflow(ctx, "wf-1")
			if err == nil {
				for _, run := range all {
					if run.Status != models.RunStatusPending {
						continue
					}

					_, _ = persistence.WorkflowRuns().TransitionRun(ctx, run.ID, models.RunStatusPending, func(r *models.WorkflowRun) error {
						r.Status = models.RunStatusCompleted
						if response != nil {
							r.Responses = &models.RunResponses{URL: response}
						}

						return nil
					}, nil)

					return
				}
			}

			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestAPI_SyncURLTrigger(t *testing.T) {
	t.Run("replies with the run response", func(t *testing.T) {
		app, persistence := setupTestApp(t, 800*time.Millisecond)
		trigger := createTrigger(t, app, models.TriggerTypeSyncURL)

		finishRuns(t, persistence, &models.URLResponse{StatusCode: http.StatusCreated, Body: map[string]any{"ok": true}})

		resp, body := do(t, app, http.MethodPost, "/url-triggers/sync?t="+trigger.ID, map[string]any{"n": 1})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	})

	t.Run("no content without a response", func(t *testing.T) {
		app, persistence := setupTestApp(t, 800*time.Millisecond)
		trigger := createTrigger(t, app, models.TriggerTypeSyncURL)

		finishRuns(t, persistence, nil)

		resp, body := do(t, app, http.MethodGet, "/url-triggers/sync?t="+trigger.ID, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Empty(t, body)
	})

	t.Run("gateway timeout when the run never finishes", func(t *testing.T) {
		app, _ := setupTestApp(t, 50*time.Millisecond)
		trigger := createTrigger(t, app, models.TriggerTypeSyncURL)

		resp, body := do(t, app, http.MethodGet, "/url-triggers/sync?t="+trigger.ID, nil)
		assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
		assert.Contains(t, string(body), "run_timeout")
	})

	t.Run("missing trigger is not found", func(t *testing.T) {
		app, _ := setupTestApp(t, time.Second)

		resp, _ := do(t, app, http.MethodGet, "/url-triggers/sync?t=missing", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
