package excel

import "extruder/domain/spc"

// ReadResult is a parsed, load-time sampled measurement file.
type ReadResult struct {
	Dataset      spc.Dataset
	RawRows      int // data rows in the file before sampling
	SamplingRate int // every SamplingRate-th row was kept
}

// ColumnKind is the inferred content type of a column
type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindMixed   ColumnKind = "mixed"
	KindText    ColumnKind = "text"
	KindEmpty   ColumnKind = "empty"
)

// ColumnProfile summarises one column for the columns listing
type ColumnProfile struct {
	Name    string     `json:"name" yaml:"name"`
	Kind    ColumnKind `json:"kind" yaml:"kind"`
	Numeric int        `json:"numeric" yaml:"numeric"`
	Blank   int        `json:"blank" yaml:"blank"`
	Total   int        `json:"total" yaml:"total"`
	Min     float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max     float64    `json:"max,omitempty" yaml:"max,omitempty"`
}
