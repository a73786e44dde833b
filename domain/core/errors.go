package core

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrDatasetNotFound   = fmt.Errorf("%w: dataset", ErrNotFound)
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file has no data rows")
)

// NewNotFoundError builds a not-found error for a named resource
func NewNotFoundError(resource string, name string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, resource, name)
}

// IsNotFoundError reports whether err wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
