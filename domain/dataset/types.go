package dataset

import (
	"path"
	"sort"
	"strings"
	"time"

	"extruder/domain/core"
)

// Format is a supported measurement file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf returns the format implied by the file name's extension
func FormatOf(name string) (Format, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx":
		return FormatXLSX, true
	}
	return "", false
}

// Object is one file as reported by an object store listing.
type Object struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Supported reports whether the object is a measurement file we can parse
func (o Object) Supported() bool {
	_, ok := FormatOf(o.Name)
	return ok
}

// SortNewestFirst orders objects by creation time, newest first; ties fall
// back to name so the order is stable across listings.
func SortNewestFirst(objects []Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		if !objects[i].CreatedAt.Equal(objects[j].CreatedAt) {
			return objects[i].CreatedAt.After(objects[j].CreatedAt)
		}
		return objects[i].Name < objects[j].Name
	})
}

// Entry is the catalog record for one measurement file.
type Entry struct {
	ID        core.ID   `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Format    Format    `json:"format" db:"format"`
	Size      int64     `json:"size" db:"size"`
	Checksum  core.Hash `json:"checksum,omitempty" db:"checksum"`
	RowCount  int       `json:"row_count" db:"row_count"`
	Sampled   int       `json:"sampled_rows" db:"sampled_rows"`
	Columns   []string  `json:"columns" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	IndexedAt time.Time `json:"indexed_at" db:"indexed_at"`
}

// Indexed reports whether the file has been parsed at least once
func (e Entry) Indexed() bool {
	return !e.IndexedAt.IsZero()
}

// NewEntry creates an unindexed catalog entry for a listed object
func NewEntry(obj Object) *Entry {
	format, _ := FormatOf(obj.Name)
	return &Entry{
		ID:        core.NewID(),
		Name:      obj.Name,
		Format:    format,
		Size:      obj.Size,
		CreatedAt: obj.CreatedAt,
	}
}

// Merge carries over the stored ID and, when e has not been parsed, the
// metadata from the stored entry
func (e *Entry) Merge(stored Entry) {
	e.ID = stored.ID
	if e.Indexed() {
		return
	}
	e.Checksum = stored.Checksum
	e.RowCount = stored.RowCount
	e.Sampled = stored.Sampled
	e.Columns = stored.Columns
	e.IndexedAt = stored.IndexedAt
}

// SortEntriesNewestFirst orders catalog entries like SortNewestFirst
func SortEntriesNewestFirst(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Name < entries[j].Name
	})
}
