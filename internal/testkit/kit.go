package testkit

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"extruder/domain/core"
	"extruder/domain/dataset"
	"extruder/ports"
)

// MemoryStore is an in-process object store for tests and demos
type MemoryStore struct {
	objects map[string]memoryObject
	mu      sync.RWMutex
	now     func() time.Time
}

type memoryObject struct {
	content   []byte
	createdAt time.Time
}

var _ ports.ObjectBucket = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject), now: time.Now}
}

// Add stores content with an explicit creation time
func (s *MemoryStore) Add(name string, content []byte, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = memoryObject{content: append([]byte(nil), content...), createdAt: createdAt.UTC()}
}

// List returns every object
func (s *MemoryStore) List(ctx context.Context) ([]dataset.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects := make([]dataset.Object, 0, len(s.objects))
	for name, obj := range s.objects {
		objects = append(objects, dataset.Object{Name: name, Size: int64(len(obj.content)), CreatedAt: obj.createdAt})
	}
	return objects, nil
}

// Open returns a reader over a copy-free view of the content
func (s *MemoryStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[name]
	if !ok {
		return nil, core.NewNotFoundError("object", name)
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

// Stat returns one object's metadata
func (s *MemoryStore) Stat(ctx context.Context, name string) (dataset.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[name]
	if !ok {
		return dataset.Object{}, core.NewNotFoundError("object", name)
	}
	return dataset.Object{Name: name, Size: int64(len(obj.content)), CreatedAt: obj.createdAt}, nil
}

// Put stores r under name, stamped with the current time
func (s *MemoryStore) Put(ctx context.Context, name string, r io.Reader) (dataset.Object, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return dataset.Object{}, err
	}
	s.Add(name, content, s.now())
	return s.Stat(ctx, name)
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }
