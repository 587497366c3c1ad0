package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const (
	keyPrefix     = "minus:tasks:"
	claimBatch    = 100
	pollSchedule  = "@every 1s"
	defaultWorker = 8
)

var ErrTaskBodyMissing = errors.New("task body missing")

// RedisQueue keeps tasks in Redis so they survive restarts and are shared by every worker.
// Each queue is a sorted set of task ids scored by due time plus a hash of task bodies.
// Workers claim a due task by removing it from the sorted set; only one ZREM succeeds.
type RedisQueue struct {
	client  redis.UniversalClient
	logger  *slog.Logger
	options Options

	mu       sync.RWMutex
	handlers map[string]Handler

	cron *cron.Cron
	sem  chan struct{}
	wg   sync.WaitGroup
	ctx  context.Context
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func NewRedisQueue(logger *slog.Logger, client redis.UniversalClient, options Options) *RedisQueue {
	return &RedisQueue{
		client:   client,
		logger:   logger.With("module", "redis_task_queue"),
		options:  options.withDefaults(),
		handlers: make(map[string]Handler),
		sem:      make(chan struct{}, defaultWorker),
		ctx:      context.Background(),
	}
}

func scheduleKey(queue string) string { return keyPrefix + queue }
func bodiesKey(queue string) string   { return keyPrefix + queue + ":bodies" }
func deadKey(queue string) string     { return keyPrefix + queue + ":dead" }

func (q *RedisQueue) Enqueue(ctx context.Context, queue, id string, payload any, runAt time.Time) error {
	task, err := newTask(queue, id, payload, runAt)
	if err != nil {
		return err
	}

	return q.put(ctx, task, false)
}

// put stores the task body and schedules it. Unless replace is set, an id that is already
// scheduled keeps its original body and due time.
func (q *RedisQueue) put(ctx context.Context, task Task, replace bool) error {
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}

	member := redis.Z{Score: float64(task.RunAt.UnixMilli()), Member: task.ID}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if replace {
			pipe.HSet(ctx, bodiesKey(task.Queue), task.ID, body)
			pipe.ZAdd(ctx, scheduleKey(task.Queue), member)
		} else {
			pipe.HSetNX(ctx, bodiesKey(task.Queue), task.ID, body)
			pipe.ZAddNX(ctx, scheduleKey(task.Queue), member)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue task %s on %s: %w", task.ID, task.Queue, err)
	}

	return nil
}

func (q *RedisQueue) Handle(queue string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[queue] = handler
}

// Start polls every registered queue once per second.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.ctx = context.WithoutCancel(ctx)

	q.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := q.cron.AddFunc(pollSchedule, func() { q.Poll(q.ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule task polling: %w", err)
	}

	q.cron.Start()
	q.logger.InfoContext(ctx, "Redis task queue started")

	return nil
}

func (q *RedisQueue) Stop(ctx context.Context) error {
	if q.cron != nil {
		<-q.cron.Stop().Done()
	}

	q.wg.Wait()
	q.logger.InfoContext(ctx, "Redis task queue stopped")

	return nil
}

// Poll claims and starts every due task. It is exported for tests and one-shot runs.
func (q *RedisQueue) Poll(ctx context.Context) {
	q.mu.RLock()
	queues := make([]string, 0, len(q.handlers))

	for queue := range q.handlers {
		queues = append(queues, queue)
	}
	q.mu.RUnlock()

	for _, queue := range queues {
		err := q.pollQueue(ctx, queue)
		if err != nil {
			q.logger.ErrorContext(ctx, "Failed to poll task queue", "queue", queue, "error", err)
		}
	}
}

func (q *RedisQueue) pollQueue(ctx context.Context, queue string) error {
	due, err := q.client.ZRangeByScore(ctx, scheduleKey(queue), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: claimBatch,
	}).Result()
	if err != nil {
		return err
	}

	for _, id := range due {
		claimed, err := q.client.ZRem(ctx, scheduleKey(queue), id).Result()
		if err != nil {
			return err
		}

		if claimed != 1 {
			continue
		}

		task, err := q.load(ctx, queue, id)
		if err != nil {
			q.logger.ErrorContext(ctx, "Dropping unreadable task", "queue", queue, "task_id", id, "error", err)

			continue
		}

		q.sem <- struct{}{}
		q.wg.Add(1)

		go func() {
			defer func() {
				<-q.sem
				q.wg.Done()
			}()

			q.run(ctx, task)
		}()
	}

	return nil
}

func (q *RedisQueue) load(ctx context.Context, queue, id string) (Task, error) {
	body, err := q.client.HGet(ctx, bodiesKey(queue), id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Task{}, ErrTaskBodyMissing
		}

		return Task{}, err
	}

	var task Task

	err = json.Unmarshal(body, &task)
	if err != nil {
		return Task{}, err
	}

	return task, nil
}

func (q *RedisQueue) run(ctx context.Context, task Task) {
	q.mu.RLock()
	handler := q.handlers[task.Queue]
	q.mu.RUnlock()

	task.Attempt++

	var err error
	if handler == nil {
		err = ErrNoHandler
	} else {
		err = handler(ctx, task)
	}

	if err == nil {
		q.finish(ctx, task)

		return
	}

	if task.Attempt >= q.options.MaxAttempts {
		q.logger.ErrorContext(ctx, "Task failed permanently",
			"queue", task.Queue, "task_id", task.ID, "attempts", task.Attempt, "error", err)
		q.bury(ctx, task)

		return
	}

	delay := q.options.retryDelay(task.Attempt)
	task.RunAt = time.Now().Add(delay)

	q.logger.WarnContext(ctx, "Task failed, retrying",
		"queue", task.Queue, "task_id", task.ID, "attempt", task.Attempt, "retry_in", delay, "error", err)

	err = q.put(ctx, task, true)
	if err != nil {
		q.logger.ErrorContext(ctx, "Failed to reschedule task", "queue", task.Queue, "task_id", task.ID, "error", err)
	}
}

func (q *RedisQueue) finish(ctx context.Context, task Task) {
	err := q.client.HDel(ctx, bodiesKey(task.Queue), task.ID).Err()
	if err != nil {
		q.logger.ErrorContext(ctx, "Failed to delete task body", "queue", task.Queue, "task_id", task.ID, "error", err)
	}
}

// bury moves an exhausted task to the dead list of its queue.
func (q *RedisQueue) bury(ctx context.Context, task Task) {
	body, err := json.Marshal(task)
	if err != nil {
		return
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, deadKey(task.Queue), body)
		pipe.HDel(ctx, bodiesKey(task.Queue), task.ID)

		return nil
	})
	if err != nil {
		q.logger.ErrorContext(ctx, "Failed to bury task", "queue", task.Queue, "task_id", task.ID, "error", err)
	}
}

// DeadTasks returns the exhausted tasks of queue, newest first.
func (q *RedisQueue) DeadTasks(ctx context.Context, queue string) ([]Task, error) {
	bodies, err := q.client.LRange(ctx, deadKey(queue), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(bodies))

	for _, body := range bodies {
		var task Task

		err = json.Unmarshal([]byte(body), &task)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}
