package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultQueueKey = "mediaflux.executions"
	processingSlot  = ".processing"

	connectTimeout = 5 * time.Second
)

// RedisQueue implements Queue on a Redis list. Receive moves entries into a
// processing list; Delete removes them from it. Entries left in the
// processing list by a crashed consumer require operator intervention.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// NewRedisQueue connects to Redis and returns a queue over the given key
// (defaultQueueKey when empty).
func NewRedisQueue(ctx context.Context, logger *slog.Logger, addr, password, key string) (*RedisQueue, error) {
	if key == "" {
		key = defaultQueueKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis work queue", "addr", addr, "key", key)

	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger.With("module", "redis_queue", "key", key),
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	err := q.client.RPush(ctx, q.key, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	if max > MaxReceiveBatch {
		max = MaxReceiveBatch
	}

	messages := make([]Message, 0, max)

	for len(messages) < max {
		value, err := q.client.LMove(ctx, q.key, q.key+processingSlot, "LEFT", "RIGHT").Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}

			return nil, fmt.Errorf("failed to receive message: %w", err)
		}

		messages = append(messages, Message{Payload: []byte(value), Receipt: value})
	}

	return messages, nil
}

func (q *RedisQueue) Delete(ctx context.Context, msg Message) error {
	err := q.client.LRem(ctx, q.key+processingSlot, 1, msg.Receipt).Err()
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
