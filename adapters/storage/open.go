package storage

import (
	"context"
	"fmt"

	"extruder/internal/config"
	"extruder/ports"
)

// Open builds the object store selected by the storage configuration
func Open(ctx context.Context, cfg config.StorageConfig) (ports.ObjectBucket, error) {
	switch cfg.Backend {
	case config.StorageLocal, "":
		return NewLocalStore(cfg.Path)
	case config.StorageGCS:
		return NewGCSStore(ctx, GCSConfig{
			Bucket:          cfg.Bucket,
			CredentialsJSON: cfg.CredentialsJSON,
			CredentialsFile: cfg.CredentialsFile,
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
