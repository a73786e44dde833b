package report

import (
	"math"
	"strconv"
)

// Display precision for measurement values and for sigma
const (
	ValueDecimals = 4
	SigmaDecimals = 6
)

// FormatValue renders a measurement with four decimals
func FormatValue(v float64) string {
	return formatFixed(v, ValueDecimals)
}

// FormatSigma renders a standard deviation with six decimals
func FormatSigma(v float64) string {
	return formatFixed(v, SigmaDecimals)
}

// FormatIndex renders a capability index or moment with three decimals
func FormatIndex(v float64) string {
	return formatFixed(v, 3)
}

func formatFixed(v float64, places int) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	return strconv.FormatFloat(v, 'f', places, 64)
}
