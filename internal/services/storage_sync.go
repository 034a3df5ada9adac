package services

import (
	"context"
	"fmt"

	"github.com/animdrive/backend/internal/gdrive"
	"github.com/animdrive/backend/internal/identity"
)

// StorageSyncer refreshes the quota cache held in identity metadata from
// the storage provider's authoritative quota report. It runs after upload
// syncs and deletes; callers treat its error as a secondary failure - log
// it and report the primary action's success regardless.
type StorageSyncer struct {
	ids identity.Client
}

func NewStorageSyncer(ids identity.Client) *StorageSyncer {
	return &StorageSyncer{ids: ids}
}

// Sync overwrites storageUsed/storageLimit in the user's metadata. A zero
// or absent provider limit means an unlimited account; the fallback ceiling
// keeps the dashboard's percentage math defined.
func (s *StorageSyncer) Sync(ctx context.Context, userID string, dc *gdrive.Client) error {
	quota, err := dc.Quota(ctx)
	if err != nil {
		return fmt.Errorf("fetch quota: %w", err)
	}

	limit := quota.Limit
	if limit <= 0 {
		limit = gdrive.FallbackStorageLimit
	}

	if err := s.ids.PatchMetadata(ctx, userID, map[string]any{
		"storageUsed":  quota.Usage,
		"storageLimit": limit,
	}); err != nil {
		return fmt.Errorf("write quota metadata: %w", err)
	}
	return nil
}
