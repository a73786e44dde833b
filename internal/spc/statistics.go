package spc

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"extruder/domain/spc"
)

// ControlSigma is the width of the control limits in standard deviations
const ControlSigma = 3.0

// ComputeStatistics summarises a working sample against the spec limits.
//
// Variance, skewness and kurtosis are population moments (divide by N, no
// bias correction); kurtosis is excess kurtosis. When the sample has zero
// spread the standardized moments and capability indices are undefined, so
// they are reported as 0 with Degenerate set instead of NaN or Inf.
func ComputeStatistics(values []float64, limits spc.SpecLimits) (spc.Statistics, error) {
	if len(values) == 0 {
		return spc.Statistics{}, spc.ErrEmptySample
	}

	data := stats.Float64Data(values)

	lo, err := data.Min()
	if err != nil {
		return spc.Statistics{}, fmt.Errorf("min: %w", err)
	}
	hi, err := data.Max()
	if err != nil {
		return spc.Statistics{}, fmt.Errorf("max: %w", err)
	}
	mean, err := data.Mean()
	if err != nil {
		return spc.Statistics{}, fmt.Errorf("mean: %w", err)
	}
	median, err := data.Median()
	if err != nil {
		return spc.Statistics{}, fmt.Errorf("median: %w", err)
	}
	variance, err := data.PopulationVariance()
	if err != nil {
		return spc.Statistics{}, fmt.Errorf("variance: %w", err)
	}
	stdDev := math.Sqrt(variance)

	result := spc.Statistics{
		Count:    len(values),
		Min:      lo,
		Max:      hi,
		Mean:     mean,
		Median:   median,
		Variance: variance,
		StdDev:   stdDev,
		LCL:      mean - ControlSigma*stdDev,
		UCL:      mean + ControlSigma*stdDev,
	}

	if stdDev == 0 {
		result.Degenerate = true
		return result, nil
	}

	result.Skewness, result.Kurtosis = standardizedMoments(values, mean, stdDev)
	result.Cp = (limits.USL - limits.LSL) / (6 * stdDev)
	result.Cpk = math.Min(
		(limits.USL-mean)/(ControlSigma*stdDev),
		(mean-limits.LSL)/(ControlSigma*stdDev),
	)

	return result, nil
}

// standardizedMoments returns the population skewness and excess kurtosis
func standardizedMoments(values []float64, mean, stdDev float64) (skewness, kurtosis float64) {
	var sum3, sum4 float64
	for _, x := range values {
		z := (x - mean) / stdDev
		z2 := z * z
		sum3 += z2 * z
		sum4 += z2 * z2
	}
	n := float64(len(values))
	return sum3 / n, sum4/n - 3
}
