package repository

import (
	"context"

	"alcyxob/course-media/internal/domain"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// StorageSettingsRepository persists the single active storage configuration.
type StorageSettingsRepository interface {
	// Get returns ErrNotFound until the first configuration is saved.
	Get(ctx context.Context) (*domain.StorageSettings, error)
	// Save replaces the active configuration (last writer wins).
	Save(ctx context.Context, settings *domain.StorageSettings) error
}

// MediaAssetRepository keeps a ledger of stored artifacts, keyed by storage key.
type MediaAssetRepository interface {
	Upsert(ctx context.Context, asset *domain.MediaAsset) error
	GetByKey(ctx context.Context, key string) (*domain.MediaAsset, error)
	DeleteByKey(ctx context.Context, key string) error
}
