package models

import "time"

// AssetLock is the optimistic checkout record for an asset. It is created
// only when absent and removed only when present; there is no expiry, so a
// stale lock requires an explicit checkin.
type AssetLock struct {
	AssetID  string    `json:"asset_id"`
	LockedBy string    `json:"locked_by"`
	LockedAt time.Time `json:"locked_at"`
}
