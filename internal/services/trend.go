package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
)

const (
	trendMinPoints       = 3
	movingAveragePeriod  = 3
	directionThreshold   = 0.1
	highSignificanceR2   = 0.7
	mediumSignificanceR2 = 0.4
	highStabilityVol     = 0.1
	mediumStabilityVol   = 0.2
	highVolatilityVol    = 0.15
	lowVolatilityVol     = 0.05
	accelerationFactor   = 1.5
)

// Pattern names reported by AnalyzeTrend.
const (
	PatternUpwardTrend        = "upward_trend"
	PatternDownwardTrend      = "downward_trend"
	PatternHighVolatility     = "high_volatility"
	PatternLowVolatility      = "low_volatility"
	PatternRecentAcceleration = "recent_acceleration"
)

// AnalyzeTrend describes a metric stream: least-squares trend, volatility of
// period returns, momentum, recognised patterns, moving averages and summary
// statistics. At least three points are required.
func AnalyzeTrend(values []float64) (*models.TrendAnalysis, error) {
	if len(values) < trendMinPoints {
		return nil, utils.NewFieldValidationError("series",
			fmt.Sprintf("insufficient data: %d points, need at least %d", len(values), trendMinPoints))
	}
	for i, v := range values {
		if !isFinite(v) {
			return nil, utils.NewFieldValidationError("series", fmt.Sprintf("non-finite value at index %d", i))
		}
	}

	lt := LinearRegression(values)
	vol := Volatility(values)

	analysis := &models.TrendAnalysis{
		Trend:        lt,
		Direction:    directionOf(lt.Slope),
		Significance: significanceOf(lt.R2),
		Volatility:   vol,
		Stability:    stabilityOf(vol),
		Momentum:     momentumOf(values),
		Patterns:     patternsOf(values, vol),
		SMA:          movingAverage(values, trend.NewSmaWithPeriod[float64](movingAveragePeriod)),
		EMA:          movingAverage(values, trend.NewEmaWithPeriod[float64](movingAveragePeriod)),
		Statistics:   Summarize(values),
	}
	return analysis, nil
}

type floatIndicator interface {
	Compute(c <-chan float64) <-chan float64
}

func movingAverage(values []float64, ind floatIndicator) []float64 {
	out := helper.ChanToSlice(ind.Compute(helper.SliceToChan(values)))
	if out == nil {
		return []float64{}
	}
	return out
}

// LinearRegression fits y = slope*x + intercept with x = 1..n.
func LinearRegression(values []float64) models.LinearTrend {
	n := float64(len(values))
	if len(values) < 2 {
		if len(values) == 1 {
			return models.LinearTrend{Intercept: values[0]}
		}
		return models.LinearTrend{}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i + 1)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / n

	mean := sumY / n
	var ssTot, ssRes float64
	for i, y := range values {
		fit := slope*float64(i+1) + intercept
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - mean) * (y - mean)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return models.LinearTrend{Slope: slope, Intercept: intercept, R2: r2}
}

// Volatility is the population standard deviation of period-over-period
// returns. Steps starting from zero have no defined return and are skipped.
func Volatility(values []float64) float64 {
	returns := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	return StdDev(returns)
}

// Correlation returns the Pearson coefficient of x and y, or 0 when the
// series differ in length, are empty, or either is constant.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	n := float64(len(x))
	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
		sumYY += y[i] * y[i]
	}
	num := n*sumXY - sumX*sumY
	den := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return num / den
}

// Summarize returns current, mean, median, min, max and population standard
// deviation. An empty series yields the zero value.
func Summarize(values []float64) models.SeriesStatistics {
	if len(values) == 0 {
		return models.SeriesStatistics{}
	}
	stats := models.SeriesStatistics{
		Current: values[len(values)-1],
		Mean:    utils.Mean(values),
		Median:  Median(values),
		Min:     values[0],
		Max:     values[0],
		StdDev:  StdDev(values),
	}
	for _, v := range values[1:] {
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}
	return stats
}

// Median returns the middle value, averaging the two middle values of an
// even-length series. The input is not reordered.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// StdDev is the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := utils.Mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)))
}

func directionOf(slope float64) models.TrendDirection {
	switch {
	case slope > directionThreshold:
		return models.TrendIncreasing
	case slope < -directionThreshold:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

func significanceOf(r2 float64) models.Level {
	switch {
	case r2 > highSignificanceR2:
		return models.LevelHigh
	case r2 > mediumSignificanceR2:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

func stabilityOf(vol float64) models.Level {
	switch {
	case vol < highStabilityVol:
		return models.LevelHigh
	case vol < mediumStabilityVol:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// momentumOf compares the change across the last three points with the
// change across the three before them.
func momentumOf(values []float64) models.Momentum {
	n := len(values)
	var m models.Momentum
	if n >= 2 {
		recent := values[max(n-3, 0):]
		m.Current = recent[len(recent)-1] - recent[0]

		previous := values[max(n-6, 0):max(n-3, 0)]
		if len(previous) > 1 {
			m.Average = previous[len(previous)-1] - previous[0]
		}
	}
	m.Direction = "decelerating"
	if m.Current > m.Average {
		m.Direction = "accelerating"
	}
	return m
}

func patternsOf(values []float64, vol float64) []string {
	patterns := []string{}
	n := len(values)

	if third := n / 3; third > 0 {
		firstAvg := utils.Mean(values[:third])
		lastAvg := utils.Mean(values[n-third:])
		if lastAvg > firstAvg*1.1 {
			patterns = append(patterns, PatternUpwardTrend)
		} else if lastAvg < firstAvg*0.9 {
			patterns = append(patterns, PatternDownwardTrend)
		}
	}

	if vol > highVolatilityVol {
		patterns = append(patterns, PatternHighVolatility)
	} else if vol < lowVolatilityVol {
		patterns = append(patterns, PatternLowVolatility)
	}

	if n >= 4 {
		recentChange := values[n-1] - values[n-2]
		previousChange := values[n-3] - values[n-4]
		if math.Abs(recentChange) > math.Abs(previousChange)*accelerationFactor {
			patterns = append(patterns, PatternRecentAcceleration)
		}
	}
	return patterns
}
