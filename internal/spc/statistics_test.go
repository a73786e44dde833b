package spc

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extruder/domain/spc"
)

func TestComputeStatistics_OneToFive(t *testing.T) {
	got, err := ComputeStatistics([]float64{1, 2, 3, 4, 5}, spc.SpecLimits{USL: 8, LSL: 0})
	require.NoError(t, err)

	assert.Equal(t, 5, got.Count)
	assert.Equal(t, 1.0, got.Min)
	assert.Equal(t, 5.0, got.Max)
	assert.Equal(t, 3.0, got.Mean)
	assert.Equal(t, 3.0, got.Median)
	assert.InDelta(t, 2.0, got.Variance, 1e-12)
	assert.InDelta(t, math.Sqrt2, got.StdDev, 1e-12)
	assert.InDelta(t, -1.2426, got.LCL, 1e-4)
	assert.InDelta(t, 7.2426, got.UCL, 1e-4)
	assert.InDelta(t, 0.0, got.Skewness, 1e-12)
	assert.InDelta(t, -1.3, got.Kurtosis, 1e-12)
	assert.InDelta(t, 8/(6*math.Sqrt2), got.Cp, 1e-12)
	assert.InDelta(t, 3/(3*math.Sqrt2), got.Cpk, 1e-12)
	assert.False(t, got.Degenerate)
}

func TestComputeStatistics_EvenMedian(t *testing.T) {
	got, err := ComputeStatistics([]float64{4, 1, 3, 2}, spc.SpecLimits{})
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.Median)
}

func TestComputeStatistics_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, err := ComputeStatistics(values, spc.SpecLimits{})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestComputeStatistics_Empty(t *testing.T) {
	_, err := ComputeStatistics(nil, spc.SpecLimits{USL: 1, LSL: 0})
	assert.True(t, errors.Is(err, spc.ErrEmptySample))
}

func TestComputeStatistics_ConstantData(t *testing.T) {
	got, err := ComputeStatistics([]float64{1.75, 1.75, 1.75}, spc.SpecLimits{USL: 1.8, LSL: 1.7})
	require.NoError(t, err)

	assert.True(t, got.Degenerate)
	assert.Equal(t, 0.0, got.StdDev)
	assert.Equal(t, 1.75, got.LCL)
	assert.Equal(t, 1.75, got.UCL)
	for name, v := range map[string]float64{
		"skewness": got.Skewness, "kurtosis": got.Kurtosis, "cp": got.Cp, "cpk": got.Cpk,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s must be finite", name)
		assert.Equal(t, 0.0, v, name)
	}
}

func TestComputeStatistics_CpkTakesWorseSide(t *testing.T) {
	got, err := ComputeStatistics([]float64{9, 10, 11}, spc.SpecLimits{USL: 12, LSL: 0})
	require.NoError(t, err)
	sigma := got.StdDev
	assert.InDelta(t, (12-10)/(3*sigma), got.Cpk, 1e-12)
	assert.InDelta(t, 12/(6*sigma), got.Cp, 1e-12)
}

func TestComputeStatistics_SkewSign(t *testing.T) {
	got, err := ComputeStatistics([]float64{1, 1, 1, 1, 10}, spc.SpecLimits{})
	require.NoError(t, err)
	assert.Greater(t, got.Skewness, 0.0)
}

func TestComputeStatistics_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(200)
		values := make([]float64, n)
		for i := range values {
			values[i] = 1.75 + rng.NormFloat64()*0.02
		}

		got, err := ComputeStatistics(values, spc.SpecLimits{USL: 1.8, LSL: 1.7})
		require.NoError(t, err)

		assert.LessOrEqual(t, got.LCL, got.Mean)
		assert.LessOrEqual(t, got.Mean, got.UCL)
		assert.InDelta(t, 6*got.StdDev, got.UCL-got.LCL, 1e-12)
		assert.GreaterOrEqual(t, got.Variance, 0.0)
		assert.Equal(t, math.Sqrt(got.Variance), got.StdDev)
		assert.LessOrEqual(t, got.Min, got.Median)
		assert.LessOrEqual(t, got.Median, got.Max)
	}
}
