package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryQueue runs tasks on in-process timers. Pending tasks are lost on exit.
type MemoryQueue struct {
	logger  *slog.Logger
	options Options

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]*time.Timer
	ctx      context.Context
	wg       sync.WaitGroup
	stopped  bool
}

func NewMemoryQueue(logger *slog.Logger, options Options) *MemoryQueue {
	return &MemoryQueue{
		logger:   logger.With("module", "memory_task_queue"),
		options:  options.withDefaults(),
		handlers: make(map[string]Handler),
		pending:  make(map[string]*time.Timer),
		ctx:      context.Background(),
	}
}

func (q *MemoryQueue) Handle(queue string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[queue] = handler
}

func (q *MemoryQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ctx = context.WithoutCancel(ctx)
	q.logger.InfoContext(ctx, "Memory task queue started")

	return nil
}

// Stop cancels pending timers and waits for running handlers.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true

	for key, timer := range q.pending {
		timer.Stop()
		delete(q.pending, key)
	}
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.InfoContext(ctx, "Memory task queue stopped")

	return nil
}

func (q *MemoryQueue) Enqueue(_ context.Context, queue, id string, payload any, runAt time.Time) error {
	task, err := newTask(queue, id, payload, runAt)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.pending[pendingKey(queue, id)]; exists || q.stopped {
		return nil
	}

	q.schedule(task)

	return nil
}

// schedule must be called with q.mu held.
func (q *MemoryQueue) schedule(task Task) {
	key := pendingKey(task.Queue, task.ID)

	q.pending[key] = time.AfterFunc(time.Until(task.RunAt), func() {
		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()

			return
		}

		delete(q.pending, key)
		handler := q.handlers[task.Queue]
		ctx := q.ctx
		q.wg.Add(1)
		q.mu.Unlock()

		defer q.wg.Done()

		q.run(ctx, handler, task)
	})
}

func (q *MemoryQueue) run(ctx context.Context, handler Handler, task Task) {
	task.Attempt++

	var err error
	if handler == nil {
		err = ErrNoHandler
	} else {
		err = handler(ctx, task)
	}

	if err == nil {
		return
	}

	if task.Attempt >= q.options.MaxAttempts {
		q.logger.ErrorContext(ctx, "Task failed permanently",
			"queue", task.Queue, "task_id", task.ID, "attempts", task.Attempt, "error", err)

		return
	}

	delay := q.options.retryDelay(task.Attempt)
	q.logger.WarnContext(ctx, "Task failed, retrying",
		"queue", task.Queue, "task_id", task.ID, "attempt", task.Attempt, "retry_in", delay, "error", err)

	task.RunAt = time.Now().Add(delay)

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.stopped {
		q.schedule(task)
	}
}

func pendingKey(queue, id string) string {
	return queue + ":" + id
}
