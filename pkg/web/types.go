package web

// CreateExecutionRequest starts a workflow run for an asset.
type CreateExecutionRequest struct {
	AssetID string `json:"asset_id" validate:"required"`
}

// SetConfigRequest updates one system-configuration value.
type SetConfigRequest struct {
	Value int `json:"value" validate:"required"`
}

// CheckoutRequest acquires an asset lock on behalf of a caller.
type CheckoutRequest struct {
	LockedBy string `json:"locked_by" validate:"required"`
}
