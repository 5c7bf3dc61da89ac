package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// Clamp bounds v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// RoundTo rounds v to the given number of decimal places using decimal
// arithmetic so that values like 86.745 do not drift on binary representation.
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
