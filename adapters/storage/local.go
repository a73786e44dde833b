package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"extruder/domain/core"
	"extruder/domain/dataset"
)

const copyChunkSize = 1 << 20

// LocalStore serves measurement files from a directory tree. Object names
// are slash-separated paths relative to the root.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// List walks the root; the local filesystem has no portable creation time,
// so modification time stands in for it.
func (s *LocalStore) List(ctx context.Context) ([]dataset.Object, error) {
	var objects []dataset.Object
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		objects = append(objects, dataset.Object{
			Name:      filepath.ToSlash(rel),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	return objects, nil
}

// Open returns a reader for the stored file
func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	p, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.NewNotFoundError("object", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Stat returns the listing metadata of one file
func (s *LocalStore) Stat(ctx context.Context, name string) (dataset.Object, error) {
	p, err := s.resolve(name)
	if err != nil {
		return dataset.Object{}, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return dataset.Object{}, core.NewNotFoundError("object", name)
	}
	if err != nil {
		return dataset.Object{}, fmt.Errorf("failed to get file info: %w", err)
	}
	return dataset.Object{Name: name, Size: info.Size(), CreatedAt: info.ModTime().UTC()}, nil
}

// Put copies r into the store under name, replacing any existing file.
// The content is written to a temporary file first so readers never see a
// partial upload.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) (dataset.Object, error) {
	p, err := s.resolve(name)
	if err != nil {
		return dataset.Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return dataset.Object{}, fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return dataset.Object{}, fmt.Errorf("failed to create destination file: %w", err)
	}
	buf := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(tmp, r, buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return dataset.Object{}, fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return dataset.Object{}, fmt.Errorf("failed to close destination file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return dataset.Object{}, fmt.Errorf("failed to move upload into place: %w", err)
	}
	return s.Stat(ctx, name)
}

// Close is a no-op
func (s *LocalStore) Close() error { return nil }

// resolve maps an object name to a path under the root. Cleaning against
// "/" first keeps ".." segments from climbing above it.
func (s *LocalStore) resolve(name string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
