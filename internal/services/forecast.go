package services

import (
	"fmt"
	"math"

	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
)

const (
	forecastMetric        = "forecast"
	forecastMinPoints     = 3
	defaultForecastWeeks  = 4
	maxForecastWeeks      = 52
	defaultForecastLevel  = 0.95
	minForecastConfidence = 0.5
	confidenceDecayPerWk  = 0.1
)

// zScore maps the supported confidence levels; anything else uses 95%.
func zScore(level float64) float64 {
	if level == 0.90 {
		return 1.645
	}
	return 1.96
}

// Forecast projects the Kalman-filtered trend of values horizon steps ahead.
// Each step carries a confidence that decays by 0.1 per step down to 0.5, and
// an interval that widens with the square root of the step. A zero horizon or
// level uses the defaults (4 steps, 95%).
func (s *TimeSeriesSmoother) Forecast(values []float64, horizon int, level float64) (*models.ForecastResult, error) {
	if len(values) < forecastMinPoints {
		return nil, utils.NewFieldValidationError("series",
			fmt.Sprintf("insufficient data: %d points, need at least %d", len(values), forecastMinPoints))
	}
	for i, v := range values {
		if !isFinite(v) {
			return nil, utils.NewFieldValidationError("series", fmt.Sprintf("non-finite value at index %d", i))
		}
	}
	if horizon == 0 {
		horizon = defaultForecastWeeks
	}
	if horizon < 0 || horizon > maxForecastWeeks {
		return nil, utils.NewFieldValidationError("horizon", fmt.Sprintf("must be in [1,%d], got %d", maxForecastWeeks, horizon))
	}
	if level == 0 {
		level = defaultForecastLevel
	}
	if math.IsNaN(level) || level <= 0 || level >= 1 {
		return nil, utils.NewFieldValidationError("confidence_level", fmt.Sprintf("must be in (0,1), got %v", level))
	}

	params := s.Params(forecastMetric)
	filtered := KalmanFilter(values, params.ProcessNoise, params.MeasurementNoise)
	slope := LinearRegression(filtered).Slope
	last := filtered[len(filtered)-1]
	vol := returnRMS(values)
	z := zScore(level)

	points := make([]models.ForecastPoint, 0, horizon)
	for w := 1; w <= horizon; w++ {
		value := math.Max(0, last+slope*float64(w))
		margin := z * vol * math.Sqrt(float64(w)) * value
		points = append(points, models.ForecastPoint{
			Week:       w,
			Value:      value,
			Confidence: math.Max(minForecastConfidence, 1-confidenceDecayPerWk*float64(w)),
			Lower:      math.Max(0, value-margin),
			Upper:      value + margin,
		})
	}

	return &models.ForecastResult{
		Horizon:         horizon,
		ConfidenceLevel: level,
		Slope:           slope,
		Volatility:      vol,
		Points:          points,
	}, nil
}

// returnRMS is the root mean square of period returns, used as the interval
// scale. Steps starting from zero are skipped.
func returnRMS(values []float64) float64 {
	var sum float64
	n := 0
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		r := (values[i] - values[i-1]) / values[i-1]
		sum += r * r
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
