package models

// System configuration keys. The store holds one record per key.
const (
	ConfigKeyMaxConcurrentWorkflows = "MaxConcurrentWorkflows"

	// DefaultMaxConcurrentWorkflows applies when no record exists.
	DefaultMaxConcurrentWorkflows = 10
)

// SystemConfig is one keyed configuration record.
type SystemConfig struct {
	Key   string `json:"key"   validate:"required"`
	Value int    `json:"value" validate:"required,min=1"`
}
