package dataplane

import (
	"context"
	"log/slog"

	"github.com/mediaflux/mediaflux/pkg/models"
	"github.com/mediaflux/mediaflux/pkg/persistence"
)

// Locks exposes the optimistic asset checkout. The repository's conditional
// writes guarantee exactly one concurrent checkout wins; there is no expiry,
// so an abandoned lock needs an explicit checkin.
type Locks struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewLocks(p persistence.Persistence, logger *slog.Logger) *Locks {
	return &Locks{
		persistence: p,
		logger:      logger.With("module", "asset_locks"),
	}
}

// Checkout acquires the asset lock. Losing callers get ErrAssetLocked.
func (l *Locks) Checkout(ctx context.Context, assetID, lockedBy string) (*models.AssetLock, error) {
	lock, err := l.persistence.Locks().Checkout(ctx, assetID, lockedBy)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "Checked out asset", "asset_id", assetID, "locked_by", lockedBy)

	return lock, nil
}

// Checkin releases the asset lock. Unlocked assets get ErrAssetNotLocked.
func (l *Locks) Checkin(ctx context.Context, assetID string) error {
	if err := l.persistence.Locks().Checkin(ctx, assetID); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "Checked in asset", "asset_id", assetID)

	return nil
}

// Get reports the current lock holder, if any.
func (l *Locks) Get(ctx context.Context, assetID string) (*models.AssetLock, error) {
	return l.persistence.Locks().Get(ctx, assetID)
}
