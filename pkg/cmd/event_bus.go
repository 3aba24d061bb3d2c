package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/mediaflux/mediaflux/pkg/channels/gochannel"
	"github.com/mediaflux/mediaflux/pkg/channels/kafka"
	"github.com/mediaflux/mediaflux/pkg/eventbus"
)

// NewEventBus builds the event bus for a service. Kafka is the deployment
// channel; gochannel keeps single-process setups broker-free.
func NewEventBus(provider, serviceName string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
