package ports

import (
	"context"

	"extruder/domain/dataset"
)

// DatasetRepository defines the interface for the dataset catalog
type DatasetRepository interface {
	// Upsert inserts the entry or updates the row with the same name.
	// The stored ID wins on update and is written back into entry.
	Upsert(ctx context.Context, entry *dataset.Entry) error
	GetByName(ctx context.Context, name string) (*dataset.Entry, error)
	// List returns every entry, newest CreatedAt first
	List(ctx context.Context) ([]*dataset.Entry, error)
	Delete(ctx context.Context, name string) error
}
