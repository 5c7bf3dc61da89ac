package services

import (
	"math"
	"testing"
	"time"

	"github.com/irfndi/dealer-trust-engine/internal/config"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator() *ModelValidator {
	v := NewModelValidator(config.ValidatorConfig{}, nil)
	v.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return v
}

func TestModelValidator_Defaults(t *testing.T) {
	v := NewModelValidator(config.ValidatorConfig{MinSamples: 1, Dampening: 2}, nil)
	assert.Equal(t, defaultMinSamples, v.minSamples)
	assert.Equal(t, defaultDampening, v.Dampening())
	assert.Equal(t, defaultBacktestWindow, v.backtestWindow)
}

func TestValidate_Metrics(t *testing.T) {
	v := newTestValidator()

	res, err := v.Validate([]float64{10, 12, 14, 16, 18}, []float64{11, 12, 13, 16, 19}, "2026-W09", 0.9)
	require.NoError(t, err)

	assert.InDelta(t, -0.2, res.Bias, 1e-12)
	assert.InDelta(t, 0.925, res.R2, 1e-12)
	assert.InDelta(t, 0.6, res.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(0.6), res.RMSE, 1e-12)

	b := res.Benchmark
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "2026-W09", b.Period)
	assert.Equal(t, 5, b.SampleSize)
	assert.Equal(t, 0.9, b.PredictedConfidence)
	assert.InDelta(t, 0.025, b.CalibrationGap, 1e-12)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), b.RecordedAt)
}

func TestValidate_PerfectPrediction(t *testing.T) {
	v := newTestValidator()
	series := []float64{3, 1, 4, 1, 5, 9}

	res, err := v.Validate(series, series, "p", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.R2)
	assert.Equal(t, 0.0, res.Bias)
	assert.Equal(t, 0.0, res.Benchmark.CalibrationGap)
}

func TestValidate_ConstantObserved(t *testing.T) {
	v := newTestValidator()
	observed := []float64{5, 5, 5, 5, 5}

	res, err := v.Validate(observed, []float64{5, 5, 5, 5, 5}, "p", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.R2)

	res, err = v.Validate(observed, []float64{5, 5, 5, 5, 6}, "p", 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.R2)
	assert.False(t, math.IsNaN(res.R2))
}

func TestValidate_Rejections(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name       string
		observed   []float64
		predicted  []float64
		confidence float64
	}{
		{"too short", []float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, 0.5},
		{"length mismatch", []float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4}, 0.5},
		{"non-finite", []float64{1, 2, math.NaN(), 4, 5}, []float64{1, 2, 3, 4, 5}, 0.5},
		{"confidence above one", []float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5}, 1.5},
		{"empty", nil, nil, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.observed, tt.predicted, "p", tt.confidence)
			require.Error(t, err)
			assert.True(t, utils.IsValidationError(err))
		})
	}
}

func TestPredictNext(t *testing.T) {
	v := newTestValidator()

	p, err := v.PredictNext([]float64{10, 12})
	require.NoError(t, err)
	assert.Equal(t, 13.0, p.Value)
	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, 12.0, p.Last)
	assert.Equal(t, 10.0, p.Previous)

	linear := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	p, err = v.PredictNext(linear)
	require.NoError(t, err)
	assert.Equal(t, 10.5, p.Value)
	// Backtest errors are all 0.5 over observed 3..10: 1 - 2/42.
	assert.InDelta(t, 1-2.0/42.0, p.Confidence, 1e-12)

	down := []float64{20, 18}
	p, err = v.PredictNext(down)
	require.NoError(t, err)
	assert.Equal(t, 17.0, p.Value)
}

func TestPredictNext_ConfidenceUsesRecentWindow(t *testing.T) {
	v := newTestValidator()

	// Erratic history followed by a clean trend: only the last 12 steps count.
	series := []float64{50, 5, 80, 2, 90}
	for i := 0; i < 14; i++ {
		series = append(series, float64(10+i))
	}
	p, err := v.PredictNext(series)
	require.NoError(t, err)
	assert.Greater(t, p.Confidence, 0.9)
}

func TestPredictNext_Rejections(t *testing.T) {
	v := newTestValidator()

	_, err := v.PredictNext([]float64{1})
	assert.True(t, utils.IsValidationError(err))

	_, err = v.PredictNext([]float64{1, math.Inf(1)})
	assert.True(t, utils.IsValidationError(err))
}

func TestRSquared(t *testing.T) {
	assert.Equal(t, 0.0, RSquared(nil, nil))
	assert.Equal(t, 0.0, RSquared([]float64{1, 2}, []float64{1}))
	assert.InDelta(t, 0.925, RSquared([]float64{10, 12, 14, 16, 18}, []float64{11, 12, 13, 16, 19}), 1e-12)
}
