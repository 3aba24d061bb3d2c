// Package cmd provides common initialization functions for the command-line
// binaries.
package cmd

import (
	"log/slog"

	"github.com/mediaflux/mediaflux/pkg/registry"
)

// NewRegistry builds the operator-handler registry. Handlers are registered
// at runtime through the API; nothing ships built in.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	return registry.NewRegistry(logger)
}
