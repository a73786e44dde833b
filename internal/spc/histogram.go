package spc

import (
	"fmt"
	"math"

	"extruder/domain/spc"
)

// DefaultBucketWidth suits the extruder diameter readings (millimetres)
const DefaultBucketWidth = 0.001

// MaxBuckets caps the histogram layout so one outlier in a file cannot
// turn a 0.001 mm width into billions of buckets.
const MaxBuckets = 10000

// snapTolerance absorbs float noise in (v-min)/width, e.g. 0.002/0.001
// evaluating to 2.0000000000000018.
const snapTolerance = 1e-9

// Bucketize counts values into fixed-width buckets starting at lo. There
// are ceil((hi-lo)/width)+1 buckets; values outside [lo, hi] and NaN are
// dropped rather than growing the bucket list. The layout depends only on
// (lo, hi, width); one with more than MaxBuckets buckets is rejected.
func Bucketize(values []float64, lo, hi, width float64) ([]spc.Bucket, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("%w: width %g", spc.ErrInvalidBuckets, width)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || hi < lo {
		return nil, fmt.Errorf("%w: range [%g, %g]", spc.ErrInvalidBuckets, lo, hi)
	}

	steps := math.Ceil(snap((hi - lo) / width))
	if math.IsNaN(steps) || steps+1 > MaxBuckets {
		return nil, fmt.Errorf("%w: [%g, %g] at width %g needs more than %d buckets",
			spc.ErrInvalidBuckets, lo, hi, width, MaxBuckets)
	}
	count := int(steps) + 1
	buckets := make([]spc.Bucket, count)
	for i := range buckets {
		buckets[i].Start = lo + float64(i)*width
	}

	for _, v := range values {
		if !(v >= lo && v <= hi) {
			continue
		}
		idx := int(math.Floor(snap((v - lo) / width)))
		if idx >= count {
			idx = count - 1
		}
		buckets[idx].Count++
	}

	return buckets, nil
}

// FitBucketWidth returns width, or the narrowest width that keeps [lo, hi]
// within MaxBuckets buckets when width is too fine for the range.
func FitBucketWidth(lo, hi, width float64) float64 {
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) || !(width > 0) {
		return width
	}
	if steps := math.Ceil(snap(span / width)); steps+1 <= MaxBuckets {
		return width
	}
	// MaxBuckets-2 steps leaves room for snap rounding up by one
	return span / (MaxBuckets - 2)
}

func snap(q float64) float64 {
	if r := math.Round(q); math.Abs(q-r) < snapTolerance {
		return r
	}
	return q
}
