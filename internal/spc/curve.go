package spc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"extruder/domain/spc"
)

// DefaultCurvePoints is the sample count of the dashboard distribution chart
const DefaultCurvePoints = 200

// GenerateCurve samples a skew-adjusted normal density at pointCount evenly
// spaced x values across [lo, hi] inclusive.
//
// The adjustment multiplies the normal pdf by 1 + skewness*z^3/6 and clamps
// at zero. This is a first-order (Gram-Charlier style) correction for
// display only, not a fitted skew-normal distribution.
func GenerateCurve(mean, stdDev float64, pointCount int, lo, hi, skewness float64) ([]spc.CurvePoint, error) {
	if stdDev <= 0 || math.IsNaN(stdDev) || math.IsInf(stdDev, 0) {
		return nil, spc.ErrDegenerateSpread
	}
	if pointCount < 1 {
		return nil, fmt.Errorf("point count must be positive, got %d", pointCount)
	}
	if hi < lo {
		return nil, fmt.Errorf("curve range is inverted: min %g > max %g", lo, hi)
	}

	normal := distuv.Normal{Mu: mean, Sigma: stdDev}

	step := 0.0
	if pointCount > 1 {
		step = (hi - lo) / float64(pointCount-1)
	}

	curve := make([]spc.CurvePoint, pointCount)
	for i := range curve {
		x := lo + float64(i)*step
		if i == pointCount-1 && pointCount > 1 {
			x = hi
		}
		z := (x - mean) / stdDev
		y := normal.Prob(x) * (1 + skewness*z*z*z/6)
		if y < 0 {
			y = 0
		}
		curve[i] = spc.CurvePoint{X: x, Y: y}
	}

	return curve, nil
}
