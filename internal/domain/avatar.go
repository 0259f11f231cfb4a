package domain

import "context"

// AvatarStore abstracts raw avatar byte storage.
// Implementations exist for SQLite BLOBs and S3-compatible object storage.
type AvatarStore interface {
	Save(ctx context.Context, key, contentType string, data []byte) error
	// Get returns the stored bytes and their content type.
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}
