package models

import (
	"time"

	"github.com/mediaflux/mediaflux/pkg/graph"
)

// Stage is a named parallel group of operations. The compiled graph runs
// every member operation as one parallel branch and always finishes with a
// completion call-out, even when a branch fails.
type Stage struct {
	ID            string                            `json:"id"`
	Name          string                            `json:"name"       validate:"required,min=3"`
	Operations    []string                          `json:"operations" validate:"required,min=1"`
	Configuration map[string]OperationConfiguration `json:"configuration,omitempty"`
	Graph         *graph.StateMachine               `json:"graph,omitempty"`
	Version       int                               `json:"version"`
	CreatedAt     time.Time                         `json:"created_at"`
}
