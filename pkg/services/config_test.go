package services

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence/file"
)

func newConfigService(t *testing.T) *Config {
	t.Helper()

	return NewConfig(file.NewPersistence(t.TempDir()), slog.Default())
}

func TestConfigMaxConcurrentWorkflows_Default(t *testing.T) {
	service := newConfigService(t)

	limit, err := service.MaxConcurrentWorkflows(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxConcurrentWorkflows, limit)
}

func TestConfigSetAndGet(t *testing.T) {
	service := newConfigService(t)

	err := service.Set(t.Context(), &models.SystemConfig{
		Key:   models.ConfigKeyMaxConcurrentWorkflows,
		Value: 25,
	})
	require.NoError(t, err)

	limit, err := service.MaxConcurrentWorkflows(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 25, limit)

	stored, err := service.Get(t.Context(), models.ConfigKeyMaxConcurrentWorkflows)
	require.NoError(t, err)
	assert.Equal(t, 25, stored.Value)
}

func TestConfigGet_SubstitutesDefault(t *testing.T) {
	service := newConfigService(t)

	config, err := service.Get(t.Context(), models.ConfigKeyMaxConcurrentWorkflows)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxConcurrentWorkflows, config.Value)
}

func TestConfigSet_UnknownKey(t *testing.T) {
	service := newConfigService(t)

	err := service.Set(t.Context(), &models.SystemConfig{Key: "max.retries", Value: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigKey)
	assert.True(t, IsValidationError(err))
}

func TestConfigSet_RejectsNonPositive(t *testing.T) {
	service := newConfigService(t)

	err := service.Set(t.Context(), &models.SystemConfig{
		Key:   models.ConfigKeyMaxConcurrentWorkflows,
		Value: 0,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
