package interfaces

import (
	"context"

	"github.com/bobmcallan/toolsmith/internal/models"
)

// StorageManager provides access to domain-specific storage interfaces.
// Implementations can be swapped (BadgerDB now, something shared later).
type StorageManager interface {
	SnapshotStorage() SnapshotStorage
	DB() interface{}
	Close() error
}

// SnapshotStorage persists the last successful discovery result per provider.
// Load returns models.ErrNotFound when nothing has been saved under key.
type SnapshotStorage interface {
	Save(ctx context.Context, key string, result *models.DiscoveryResult) error
	Load(ctx context.Context, key string) (*models.DiscoveryResult, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}
