package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

// Config reads and writes the singleton system-configuration records.
type Config struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewConfig(p persistence.Persistence, logger *slog.Logger) *Config {
	return &Config{
		persistence: p,
		logger:      logger.With("module", "config_service"),
	}
}

// MaxConcurrentWorkflows returns the configured concurrency cap, falling
// back to the default when no record exists.
func (s *Config) MaxConcurrentWorkflows(ctx context.Context) (int, error) {
	config, err := s.persistence.Config().Get(ctx, models.ConfigKeyMaxConcurrentWorkflows)
	if err != nil {
		if errors.Is(err, persistence.ErrConfigNotFound) {
			return models.DefaultMaxConcurrentWorkflows, nil
		}

		return 0, err
	}

	return config.Value, nil
}

// Set stores a configuration record. Only recognized keys are accepted.
func (s *Config) Set(ctx context.Context, config *models.SystemConfig) error {
	if config.Key != models.ConfigKeyMaxConcurrentWorkflows {
		return NewValidationError("SetConfig",
			fmt.Sprintf("unrecognized key %q", config.Key), ErrUnknownConfigKey)
	}

	if config.Value < 1 {
		return NewValidationError("SetConfig",
			fmt.Sprintf("%s must be at least 1", config.Key), ErrInvalidConfig)
	}

	if err := s.persistence.Config().Set(ctx, config); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Updated system configuration", "key", config.Key, "value", config.Value)

	return nil
}

// Get returns a configuration record, substituting the default for a missing
// MaxConcurrentWorkflows.
func (s *Config) Get(ctx context.Context, key string) (*models.SystemConfig, error) {
	if key != models.ConfigKeyMaxConcurrentWorkflows {
		return nil, NewValidationError("GetConfig",
			fmt.Sprintf("unrecognized key %q", key), ErrUnknownConfigKey)
	}

	config, err := s.persistence.Config().Get(ctx, key)
	if err != nil {
		if errors.Is(err, persistence.ErrConfigNotFound) {
			return &models.SystemConfig{Key: key, Value: models.DefaultMaxConcurrentWorkflows}, nil
		}

		return nil, err
	}

	return config, nil
}
