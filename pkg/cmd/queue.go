package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mediaflux/mediaflux/pkg/queue"
)

// NewQueue builds the work queue from a URL. redis:// addresses the
// deployment queue; "memory" keeps single-process setups broker-free.
func NewQueue(ctx context.Context, logger *slog.Logger, queueURL string) queue.Queue {
	if queueURL == "" || queueURL == "memory" {
		return queue.NewMemoryQueue()
	}

	if strings.HasPrefix(queueURL, "redis://") {
		parsed, err := url.Parse(queueURL)
		if err != nil {
			panic(fmt.Errorf("invalid queue URL: %w", err))
		}

		password, _ := parsed.User.Password()
		key := strings.TrimPrefix(parsed.Path, "/")

		q, err := queue.NewRedisQueue(ctx, logger, parsed.Host, password, key)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis queue: %w", err))
		}

		return q
	}

	panic("Unsupported queue URL: " + queueURL)
}
