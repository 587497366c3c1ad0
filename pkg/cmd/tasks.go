package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/zachsents/minus-sub000/pkg/tasks"
)

// NewTaskQueue picks the task backend from tasksURL: "memory" or a redis:// URL.
//
// nolint:ireturn
func NewTaskQueue(ctx context.Context, logger *slog.Logger, tasksURL string, options tasks.Options) (tasks.Queue, error) {
	provider, _ := parsePersistenceProvider(tasksURL)

	switch {
	case tasksURL == "memory":
		return tasks.NewMemoryQueue(logger, options), nil
	case provider == "redis" || provider == "rediss":
		redisOptions, err := redis.ParseURL(tasksURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}

		client, err := tasks.NewRedisClient(ctx, redisOptions.Addr, redisOptions.Password, redisOptions.DB)
		if err != nil {
			return nil, err
		}

		return &redisQueue{RedisQueue: tasks.NewRedisQueue(logger, client, options), client: client}, nil
	default:
		return nil, fmt.Errorf("%w: tasks %q", ErrUnsupportedProvider, tasksURL)
	}
}

// redisQueue closes its connection once the queue has stopped.
type redisQueue struct {
	*tasks.RedisQueue

	client *redis.Client
}

func (q *redisQueue) Stop(ctx context.Context) error {
	return errors.Join(q.RedisQueue.Stop(ctx), q.client.Close())
}
