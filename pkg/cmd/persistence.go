package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mediaflux/mediaflux/pkg/persistence"
	"github.com/mediaflux/mediaflux/pkg/persistence/file"
	"github.com/mediaflux/mediaflux/pkg/persistence/postgresql"
)

// NewPersistence builds the store from a database URL. Postgres URLs get the
// document store; anything else is treated as a filesystem root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to connect to postgres: %w", err))
		}

		return p
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
