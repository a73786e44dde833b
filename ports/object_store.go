package ports

import (
	"context"
	"io"

	"extruder/domain/dataset"
)

// ObjectStore is read access to the bucket or directory holding uploaded
// measurement files.
type ObjectStore interface {
	// List returns every object in the store, in no particular order
	List(ctx context.Context) ([]dataset.Object, error)
	// Open streams one object; the caller closes the reader. A missing
	// object yields an error wrapping core.ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Stat returns the listing metadata of one object
	Stat(ctx context.Context, name string) (dataset.Object, error)
}

// ObjectWriter stores new measurement files
type ObjectWriter interface {
	Put(ctx context.Context, name string, r io.Reader) (dataset.Object, error)
}

// ObjectBucket is a store the CLI can both read and upload to
type ObjectBucket interface {
	ObjectStore
	ObjectWriter
	io.Closer
}
