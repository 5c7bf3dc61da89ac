package services

import (
	"github.com/irfndi/dealer-trust-engine/internal/models"
)

// NoiseParams are the process (q) and measurement (r) noise of a scalar filter.
type NoiseParams struct {
	ProcessNoise     float64 `json:"process_noise"`
	MeasurementNoise float64 `json:"measurement_noise"`
}

// Per-metric defaults. Forecast and elasticity streams are noisier, so they
// trust each measurement less.
var defaultNoise = map[string]NoiseParams{
	"aiv":        {ProcessNoise: 0.1, MeasurementNoise: 1.0},
	"ati":        {ProcessNoise: 0.1, MeasurementNoise: 1.0},
	"crs":        {ProcessNoise: 0.1, MeasurementNoise: 1.5},
	"forecast":   {ProcessNoise: 0.1, MeasurementNoise: 2.0},
	"elasticity": {ProcessNoise: 0.05, MeasurementNoise: 2.0},
}

var fallbackNoise = NoiseParams{ProcessNoise: 0.1, MeasurementNoise: 1.0}

// TimeSeriesSmoother applies a scalar Kalman filter to metric streams.
type TimeSeriesSmoother struct {
	noise map[string]NoiseParams
}

// NewTimeSeriesSmoother creates a smoother. Entries in processNoise and
// measurementNoise override the defaults for the named metric.
func NewTimeSeriesSmoother(processNoise, measurementNoise map[string]float64) *TimeSeriesSmoother {
	noise := make(map[string]NoiseParams, len(defaultNoise))
	for metric, p := range defaultNoise {
		noise[metric] = p
	}
	for metric, q := range processNoise {
		p := noise[metric]
		if p == (NoiseParams{}) {
			p = fallbackNoise
		}
		p.ProcessNoise = q
		noise[metric] = p
	}
	for metric, r := range measurementNoise {
		p := noise[metric]
		if p == (NoiseParams{}) {
			p = fallbackNoise
		}
		p.MeasurementNoise = r
		noise[metric] = p
	}
	return &TimeSeriesSmoother{noise: noise}
}

// Params returns the noise parameters used for metric.
func (s *TimeSeriesSmoother) Params(metric string) NoiseParams {
	if p, ok := s.noise[metric]; ok {
		return p
	}
	return fallbackNoise
}

// Smooth returns a new series whose Smoothed field holds the filtered value
// of Raw. The input slice is not modified. Series of length 0 or 1 are
// returned as an unchanged copy.
func (s *TimeSeriesSmoother) Smooth(series []models.HistoricalPoint, metric string) []models.HistoricalPoint {
	out := make([]models.HistoricalPoint, len(series))
	copy(out, series)
	if len(series) < 2 {
		return out
	}

	raw := make([]float64, len(series))
	for i, p := range series {
		raw[i] = p.Raw
	}
	params := s.Params(metric)
	filtered := KalmanFilter(raw, params.ProcessNoise, params.MeasurementNoise)
	for i := range out {
		out[i].Smoothed = filtered[i]
	}
	return out
}

// KalmanFilter runs the scalar predict/update recursion seeded with the first
// value and unit variance. Inputs shorter than 2 are copied unchanged.
func KalmanFilter(values []float64, q, r float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if len(values) < 2 {
		return out
	}

	x := values[0]
	p := 1.0
	for i, z := range values {
		pPred := p + q
		k := pPred / (pPred + r)
		x = x + k*(z-x)
		p = (1 - k) * pPred
		out[i] = x
	}
	return out
}
