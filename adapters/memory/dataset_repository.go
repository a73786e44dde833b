package memory

import (
	"context"
	"sync"

	"extruder/domain/core"
	"extruder/domain/dataset"
	"extruder/ports"
)

// DatasetRepository keeps the catalog in process memory. It is used when no
// DATABASE_URL is configured; the catalog is rebuilt from the store listing
// after a restart.
type DatasetRepository struct {
	entries map[string]dataset.Entry
	mu      sync.RWMutex
}

var _ ports.DatasetRepository = (*DatasetRepository)(nil)

// NewDatasetRepository creates an empty repository
func NewDatasetRepository() *DatasetRepository {
	return &DatasetRepository{entries: make(map[string]dataset.Entry)}
}

// Upsert stores a copy of entry keyed by name. An unindexed entry never
// overwrites parsed metadata already on file.
func (r *DatasetRepository) Upsert(ctx context.Context, entry *dataset.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.entries[entry.Name]
	if exists {
		entry.Merge(stored)
	} else if entry.ID.IsEmpty() {
		entry.ID = core.NewID()
	}

	copied := *entry
	copied.Columns = append([]string(nil), entry.Columns...)
	r.entries[entry.Name] = copied
	return nil
}

// GetByName returns a copy of the named entry
func (r *DatasetRepository) GetByName(ctx context.Context, name string) (*dataset.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, core.NewNotFoundError("dataset", name)
	}
	return &entry, nil
}

// List returns every entry, newest first
func (r *DatasetRepository) List(ctx context.Context) ([]*dataset.Entry, error) {
	r.mu.RLock()
	entries := make([]*dataset.Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		e := entry
		entries = append(entries, &e)
	}
	r.mu.RUnlock()

	dataset.SortEntriesNewestFirst(entries)
	return entries, nil
}

// Delete removes the named entry
func (r *DatasetRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return core.NewNotFoundError("dataset", name)
	}
	delete(r.entries, name)
	return nil
}
