// Package tasks provides delayed, deduplicated background tasks on named queues.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Queue names.
const (
	QueueRunScheduledScript = "runScheduledScript"
	QueueExecuteWorkflowRun = "executeWorkflowRun"
)

const DefaultMaxAttempts = 5

var ErrNoHandler = errors.New("no handler registered for queue")

// Task is one unit of work. ID deduplicates enqueues on the same queue.
type Task struct {
	ID      string          `json:"id"`
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`
	RunAt   time.Time       `json:"runAt"`
	Attempt int             `json:"attempt"`
}

// Decode unmarshals the task payload into v.
func (t Task) Decode(v any) error {
	return json.Unmarshal(t.Payload, v)
}

// Handler processes a task. A returned error schedules a retry until the attempts run out.
type Handler func(ctx context.Context, task Task) error

// Dispatcher enqueues tasks.
type Dispatcher interface {
	// Enqueue schedules the payload on queue at runAt. A second enqueue with the same id
	// while the first is pending is a no-op.
	Enqueue(ctx context.Context, queue, id string, payload any, runAt time.Time) error
}

// Queue consumes tasks.
type Queue interface {
	Dispatcher

	Handle(queue string, handler Handler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options tunes retries shared by every backend.
type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}

	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}

	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Minute
	}

	return o
}

// retryDelay returns the wait before the given (1-based) retry.
func (o Options) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.InitialBackoff
	b.MaxInterval = o.MaxBackoff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for range attempt - 1 {
		delay = b.NextBackOff()
	}

	return delay
}

func newTask(queue, id string, payload any, runAt time.Time) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}

	return Task{ID: id, Queue: queue, Payload: raw, RunAt: runAt}, nil
}
