// Package registry tracks the operator handlers that operations may bind to
// and validates operation settings against each handler's JSON schema.
package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Handler describes an operator endpoint an operation can call. Async
// operators expose both a start and a monitor resource; sync operators only
// the start resource.
type Handler struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	MediaTypes   []string       `json:"media_types,omitempty"`
	ConfigSchema map[string]any `json:"config_schema,omitempty"`
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*Handler
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*Handler),
		logger:   logger.With("module", "registry"),
	}
}

func (r *Registry) Register(handler *Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[handler.Name] = handler
	r.logger.Info("Registered operator handler", "handler", handler.Name)
}

func (r *Registry) Get(name string) (*Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[name]

	return handler, ok
}

func (r *Registry) List() []*Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make([]*Handler, 0, len(r.handlers))
	for _, handler := range r.handlers {
		handlers = append(handlers, handler)
	}

	return handlers
}

// ValidateConfiguration checks operation settings against the handler's
// config schema. Handlers without a registered schema accept any settings;
// operators are external services and the registry only knows what they
// declared.
func (r *Registry) ValidateConfiguration(handlerName string, settings map[string]any) error {
	handler, ok := r.Get(handlerName)
	if !ok || handler.ConfigSchema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(handler.ConfigSchema)
	dataLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate settings for %s: %w", handlerName, err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid settings for %s: %s", handlerName, strings.Join(descriptions, "; "))
	}

	return nil
}
