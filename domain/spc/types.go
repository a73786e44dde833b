package spc

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// SampleTarget is the approximate upper bound on working sample size.
const SampleTarget = 10000

// Record is one parsed row: column name to raw cell text.
type Record map[string]string

// Float parses the named column as a float64. Missing, blank, non-numeric,
// NaN and infinite cells report ok=false.
func (r Record) Float(column string) (float64, bool) {
	raw, exists := r[column]
	if !exists {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// Dataset is an ordered sequence of records sharing one schema.
// Columns keeps the declared header order; record order is the time axis.
type Dataset struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Len returns the number of records
func (d Dataset) Len() int {
	return len(d.Records)
}

// HasColumn reports whether the schema declares the column
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// FilterConfig holds the operator-controlled filter settings.
type FilterConfig struct {
	LowerThreshold         float64          `json:"lower_threshold"`
	UpperThreshold         float64          `json:"upper_threshold"`
	ExcludeWithinThreshold bool             `json:"exclude_within_threshold"`
	ExcludedIndices        map[int]struct{} `json:"-"`
	ExcludeFirst           int              `json:"exclude_first"`
	ExcludeLast            int              `json:"exclude_last"`
}

// DefaultFilterConfig returns an open filter: infinite thresholds, no trims,
// no excluded points.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		LowerThreshold:  math.Inf(-1),
		UpperThreshold:  math.Inf(1),
		ExcludedIndices: map[int]struct{}{},
	}
}

// Excluded reports whether the trimmed position was excluded by the operator
func (c FilterConfig) Excluded(position int) bool {
	if c.ExcludedIndices == nil {
		return false
	}
	_, ok := c.ExcludedIndices[position]
	return ok
}

// WithExcluded returns a copy of the config with extra excluded positions.
// The receiver's set is left untouched.
func (c FilterConfig) WithExcluded(positions ...int) FilterConfig {
	merged := make(map[int]struct{}, len(c.ExcludedIndices)+len(positions))
	for p := range c.ExcludedIndices {
		merged[p] = struct{}{}
	}
	for _, p := range positions {
		merged[p] = struct{}{}
	}
	c.ExcludedIndices = merged
	return c
}

// Point is one retained measurement of the working sample.
type Point struct {
	Position int     `json:"position"` // index within the range-trimmed sequence
	Value    float64 `json:"value"`
	Label    string  `json:"label"`
}

// Sample is the working sample produced by the filter pipeline.
type Sample struct {
	Column        string  `json:"column"`
	LabelColumn   string  `json:"label_column,omitempty"`
	TrimmedLength int     `json:"trimmed_length"`
	ModuloFactor  int     `json:"modulo_factor"`
	Points        []Point `json:"points"`
}

// Len returns the number of retained points
func (s Sample) Len() int {
	return len(s.Points)
}

// Values returns the numeric values in sample order
func (s Sample) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// SpecLimits are the externally supplied specification limits.
type SpecLimits struct {
	USL float64 `json:"usl"`
	LSL float64 `json:"lsl"`
}

// Statistics is the descriptive and capability summary of a working sample.
// Degenerate is set when the sample has zero spread; the moment and
// capability fields are then reported as 0.
type Statistics struct {
	Count      int     `json:"count"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	Median     float64 `json:"median"`
	Variance   float64 `json:"variance"`
	StdDev     float64 `json:"std_dev"`
	LCL        float64 `json:"lcl"`
	UCL        float64 `json:"ucl"`
	Skewness   float64 `json:"skewness"`
	Kurtosis   float64 `json:"kurtosis"`
	Cp         float64 `json:"cp"`
	Cpk        float64 `json:"cpk"`
	Degenerate bool    `json:"degenerate"`
}

// Bucket is one fixed-width histogram bin.
type Bucket struct {
	Start float64 `json:"bucket_start"`
	Count int     `json:"count"`
}

// CurvePoint is one sample of the distribution curve.
type CurvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HistogramSource selects which values feed the histogram.
type HistogramSource string

const (
	// HistogramFiltered bins the working sample values.
	HistogramFiltered HistogramSource = "filtered"
	// HistogramRaw bins every numeric value of the range-trimmed column.
	HistogramRaw HistogramSource = "raw"
)

// ParseHistogramSource maps a query value onto a source, defaulting to filtered
func ParseHistogramSource(s string) HistogramSource {
	if strings.EqualFold(strings.TrimSpace(s), string(HistogramRaw)) {
		return HistogramRaw
	}
	return HistogramFiltered
}

// MarshalJSON encodes infinite thresholds as null, which encoding/json
// cannot represent otherwise.
func (c FilterConfig) MarshalJSON() ([]byte, error) {
	excluded := make([]int, 0, len(c.ExcludedIndices))
	for p := range c.ExcludedIndices {
		excluded = append(excluded, p)
	}
	sort.Ints(excluded)
	return json.Marshal(struct {
		LowerThreshold         *float64 `json:"lower_threshold"`
		UpperThreshold         *float64 `json:"upper_threshold"`
		ExcludeWithinThreshold bool     `json:"exclude_within_threshold"`
		ExcludedIndices        []int    `json:"excluded_indices"`
		ExcludeFirst           int      `json:"exclude_first"`
		ExcludeLast            int      `json:"exclude_last"`
	}{
		LowerThreshold:         finiteOrNil(c.LowerThreshold),
		UpperThreshold:         finiteOrNil(c.UpperThreshold),
		ExcludeWithinThreshold: c.ExcludeWithinThreshold,
		ExcludedIndices:        excluded,
		ExcludeFirst:           c.ExcludeFirst,
		ExcludeLast:            c.ExcludeLast,
	})
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
