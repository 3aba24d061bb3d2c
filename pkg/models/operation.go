// Package models defines the core domain records for media-analysis workflow orchestration.
package models

import (
	"time"

	"github.com/mediaflux/mediaflux/pkg/graph"
)

// OperationType distinguishes operators that finish within one engine step
// from operators that poll an external job until it settles.
type OperationType string

const (
	OperationTypeSync  OperationType = "sync"
	OperationTypeAsync OperationType = "async"
)

// OperationConfiguration is the operator-specific configuration blob. MediaType
// and Enabled are recognized by the compiler; Settings is free-form and passed
// through to the operator handler untouched.
type OperationConfiguration struct {
	MediaType string         `json:"media_type" validate:"required"`
	Enabled   bool           `json:"enabled"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// Operation is a single registered processing step. Registering an operation
// also registers its singleton stage (StageName), so every operation is
// directly runnable without composing a stage by hand.
type Operation struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"           validate:"required,min=3"`
	Type           OperationType          `json:"type"           validate:"required"`
	Configuration  OperationConfiguration `json:"configuration"  validate:"required"`
	StartHandler   string                 `json:"start_handler"  validate:"required"`
	MonitorHandler *string                `json:"monitor_handler,omitempty"`
	StageName      string                 `json:"stage_name"`
	Graph          *graph.StateMachine    `json:"graph,omitempty"`
	Version        int                    `json:"version"`
	CreatedAt      time.Time              `json:"created_at"`
}

// IsAsync reports whether the operation needs a monitoring poll loop.
func (o *Operation) IsAsync() bool {
	return o.Type == OperationTypeAsync
}
