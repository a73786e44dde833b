package spc

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extruder/domain/spc"
)

func TestGenerateCurve_LengthAndSpacing(t *testing.T) {
	curve, err := GenerateCurve(0, 1, 200, -3, 3, 0)
	require.NoError(t, err)
	require.Len(t, curve, 200)

	assert.Equal(t, -3.0, curve[0].X)
	assert.Equal(t, 3.0, curve[199].X)
	for i := 1; i < len(curve); i++ {
		assert.Greater(t, curve[i].X, curve[i-1].X)
	}
}

func TestGenerateCurve_MatchesNormalDensity(t *testing.T) {
	curve, err := GenerateCurve(1.75, 0.01, 3, 1.74, 1.76, 0)
	require.NoError(t, err)

	peak := 1 / (0.01 * math.Sqrt(2*math.Pi))
	assert.InDelta(t, peak, curve[1].Y, 1e-9)
	assert.InDelta(t, peak*math.Exp(-0.5), curve[0].Y, 1e-9)
	assert.InDelta(t, curve[0].Y, curve[2].Y, 1e-9)
}

func TestGenerateCurve_SkewAdjustment(t *testing.T) {
	plain, err := GenerateCurve(0, 1, 3, -1, 1, 0)
	require.NoError(t, err)
	skewed, err := GenerateCurve(0, 1, 3, -1, 1, 0.6)
	require.NoError(t, err)

	assert.InDelta(t, plain[2].Y*(1+0.6/6), skewed[2].Y, 1e-12)
	assert.InDelta(t, plain[0].Y*(1-0.6/6), skewed[0].Y, 1e-12)
	assert.InDelta(t, plain[1].Y, skewed[1].Y, 1e-12)
}

func TestGenerateCurve_ClampsAtZero(t *testing.T) {
	curve, err := GenerateCurve(0, 1, 5, -4, 4, 3)
	require.NoError(t, err)
	for _, p := range curve {
		assert.GreaterOrEqual(t, p.Y, 0.0)
	}
	assert.Equal(t, 0.0, curve[0].Y, "1 + 3*(-64)/6 is negative")
}

func TestGenerateCurve_DegenerateSpread(t *testing.T) {
	_, err := GenerateCurve(1, 0, 10, 1, 1, 0)
	assert.True(t, errors.Is(err, spc.ErrDegenerateSpread))

	_, err = GenerateCurve(1, math.NaN(), 10, 1, 1, 0)
	assert.True(t, errors.Is(err, spc.ErrDegenerateSpread))
}

func TestGenerateCurve_BadArguments(t *testing.T) {
	_, err := GenerateCurve(0, 1, 0, -1, 1, 0)
	assert.Error(t, err)

	_, err = GenerateCurve(0, 1, 10, 1, -1, 0)
	assert.Error(t, err)

	single, err := GenerateCurve(0, 1, 1, -1, 1, 0)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, -1.0, single[0].X)
}
