package domain

import "context"

// FileStore abstracts raw file byte storage. The SQLite implementation keeps
// BLOBs next to the user table.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
