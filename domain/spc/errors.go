package spc

import (
	"errors"
	"fmt"
)

// Analysis errors
var (
	ErrColumnNotFound   = errors.New("column not found")
	ErrEmptySample      = errors.New("no data points left after filtering")
	ErrDegenerateSpread = errors.New("standard deviation is zero")
	ErrInvalidBuckets   = errors.New("invalid histogram bucket layout")
)

// ColumnNotFoundError reports a data type token that matched no column.
type ColumnNotFoundError struct {
	Token string
	Empty bool // dataset had no records, so no schema
}

func (e *ColumnNotFoundError) Error() string {
	if e.Empty {
		return "No data available"
	}
	return fmt.Sprintf("Data type '%s' not found in CSV", e.Token)
}

// Is lets errors.Is match ErrColumnNotFound
func (e *ColumnNotFoundError) Is(target error) bool {
	return target == ErrColumnNotFound
}
