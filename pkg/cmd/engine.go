package cmd

import (
	"log/slog"

	"github.com/mediaflux/mediaflux/pkg/engine"
)

// NewEngine builds the durable-execution client. An empty URL falls back to
// the in-memory fake so local setups run without an engine deployment.
func NewEngine(engineURL string, logger *slog.Logger) engine.Engine {
	if engineURL == "" || engineURL == "fake" {
		logger.Warn("No engine URL configured, using in-memory fake engine")

		return engine.NewFake()
	}

	return engine.NewHTTPEngine(engineURL, logger)
}
