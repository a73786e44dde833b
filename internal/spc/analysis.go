package spc

import (
	"errors"
	"fmt"
	"time"

	"extruder/domain/spc"
	"extruder/internal"
)

// AnalysisRequest bundles everything one dashboard refresh needs.
type AnalysisRequest struct {
	Token           string
	LabelColumn     string
	Filter          spc.FilterConfig
	Limits          spc.SpecLimits
	CurvePoints     int
	BucketWidth     float64
	HistogramSource spc.HistogramSource
	ReferenceLines  []float64
}

// DefaultAnalysisRequest returns a request for token with open filters
func DefaultAnalysisRequest(token string) AnalysisRequest {
	return AnalysisRequest{
		Token:           token,
		LabelColumn:     DefaultLabelColumn,
		Filter:          spc.DefaultFilterConfig(),
		CurvePoints:     DefaultCurvePoints,
		BucketWidth:     DefaultBucketWidth,
		HistogramSource: spc.HistogramFiltered,
	}
}

// Report is the full result of one analysis run.
type Report struct {
	Token          string              `json:"token"`
	Column         string              `json:"column"`
	DatasetLength  int                 `json:"dataset_length"`
	Sample         spc.Sample          `json:"sample"`
	Statistics     spc.Statistics      `json:"statistics"`
	Limits         spc.SpecLimits      `json:"limits"`
	Curve          []spc.CurvePoint    `json:"curve"`
	Histogram      []spc.Bucket        `json:"histogram"`
	BucketWidth    float64             `json:"bucket_width"`
	HistogramFrom  spc.HistogramSource `json:"histogram_source"`
	ReferenceLines []float64           `json:"reference_lines,omitempty"`
	Filter         spc.FilterConfig    `json:"filter"`
	Excluded       []int               `json:"-"`
	Elapsed        time.Duration       `json:"elapsed_ns"`
}

// Analyzer runs the resolver, filter pipeline, statistics, curve and
// histogram in order. It holds no state between calls.
type Analyzer struct {
	logger *internal.Logger
}

// NewAnalyzer creates an analyzer; a nil logger falls back to the default
func NewAnalyzer(logger *internal.Logger) *Analyzer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Analyzer{logger: logger.WithPrefix("Analyzer")}
}

// Analyze recomputes everything from scratch. A missing column or an empty
// working sample stops the run; zero spread still returns statistics and a
// histogram but no curve.
func (a *Analyzer) Analyze(ds spc.Dataset, req AnalysisRequest) (*Report, error) {
	start := time.Now()
	req = withDefaults(req)

	column, err := ResolveColumn(ds, req.Token)
	if err != nil {
		a.logger.Warn("column resolution failed for token %q: %v", req.Token, err)
		return nil, err
	}

	sample := Filter(ds, column, req.LabelColumn, req.Filter)
	a.logger.Debug("column %s: trimmed=%d modulo=%d kept=%d",
		column, sample.TrimmedLength, sample.ModuloFactor, sample.Len())

	values := sample.Values()
	statistics, err := ComputeStatistics(values, req.Limits)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Token:          req.Token,
		Column:         column,
		DatasetLength:  ds.Len(),
		Sample:         sample,
		Statistics:     statistics,
		Limits:         req.Limits,
		HistogramFrom:  req.HistogramSource,
		ReferenceLines: req.ReferenceLines,
		Filter:         req.Filter,
		Excluded:       sortedPositions(req.Filter.ExcludedIndices),
	}

	if statistics.Degenerate {
		a.logger.Info("column %s has zero spread over %d points; skipping curve", column, statistics.Count)
		report.Curve = []spc.CurvePoint{}
	} else {
		report.Curve, err = GenerateCurve(statistics.Mean, statistics.StdDev, req.CurvePoints,
			statistics.Min, statistics.Max, statistics.Skewness)
		if err != nil {
			return nil, fmt.Errorf("distribution curve: %w", err)
		}
	}

	histValues := values
	histMin, histMax := statistics.Min, statistics.Max
	if req.HistogramSource == spc.HistogramRaw {
		histValues = TrimmedValues(ds, column, req.Filter)
		histMin, histMax = extent(histValues)
	}
	report.BucketWidth = FitBucketWidth(histMin, histMax, req.BucketWidth)
	if report.BucketWidth != req.BucketWidth {
		a.logger.Info("column %s spans [%g, %g]; widening buckets from %g to %g",
			column, histMin, histMax, req.BucketWidth, report.BucketWidth)
	}
	report.Histogram, err = Bucketize(histValues, histMin, histMax, report.BucketWidth)
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// IsTerminal reports whether err ends the analysis with an operator-facing
// message rather than an internal failure.
func IsTerminal(err error) bool {
	return errors.Is(err, spc.ErrColumnNotFound) || errors.Is(err, spc.ErrEmptySample)
}

func withDefaults(req AnalysisRequest) AnalysisRequest {
	if req.CurvePoints <= 0 {
		req.CurvePoints = DefaultCurvePoints
	}
	if req.BucketWidth <= 0 {
		req.BucketWidth = DefaultBucketWidth
	}
	if req.HistogramSource == "" {
		req.HistogramSource = spc.HistogramFiltered
	}
	return req
}

func extent(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
