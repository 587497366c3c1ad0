// Package runner calls the external workflow runner service.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrRunnerRejected    = errors.New("runner rejected the run")
	ErrRunnerUnavailable = errors.New("runner is unavailable")
)

// Executor starts the execution of a workflow run.
type Executor interface {
	Execute(ctx context.Context, runID string) error
}

// Client posts run ids to the runner over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(logger *slog.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("module", "runner_client"),
	}
}

// Execute asks the runner to execute runID. A 4xx answer wraps ErrRunnerRejected and will not
// succeed on retry; 5xx, 408 and 429 wrap ErrRunnerUnavailable.
func (c *Client) Execute(ctx context.Context, runID string) error {
	endpoint := c.baseURL + "/runs/" + url.PathEscape(runID) + "/execute"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build runner request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach runner: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("%w: status %d: %s", statusError(resp.StatusCode), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.DebugContext(ctx, "Runner accepted run", "run_id", runID)

	return nil
}

func statusError(status int) error {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return ErrRunnerUnavailable
	case status >= 400 && status < 500:
		return ErrRunnerRejected
	default:
		return ErrRunnerUnavailable
	}
}
