package services

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/dealer-trust-engine/internal/config"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	defaultMinSamples     = 5
	defaultDampening      = 0.5
	defaultBacktestWindow = 12
)

// ModelValidator scores predictions against observations and produces damped
// one-step projections. It holds only configuration and is safe for
// concurrent use.
type ModelValidator struct {
	minSamples     int
	dampening      float64
	backtestWindow int
	logger         *logrus.Logger
	now            func() time.Time
}

// NewModelValidator creates a validator. Zero-valued fields in cfg fall back
// to the defaults (5 samples, 0.5 dampening, 12-step backtest).
func NewModelValidator(cfg config.ValidatorConfig, logger *logrus.Logger) *ModelValidator {
	if logger == nil {
		logger = logrus.New()
	}
	v := &ModelValidator{
		minSamples:     cfg.MinSamples,
		dampening:      cfg.Dampening,
		backtestWindow: cfg.BacktestWindow,
		logger:         logger,
		now:            time.Now,
	}
	if v.minSamples < 2 {
		v.minSamples = defaultMinSamples
	}
	if v.dampening <= 0 || v.dampening > 1 {
		v.dampening = defaultDampening
	}
	if v.backtestWindow <= 0 {
		v.backtestWindow = defaultBacktestWindow
	}
	return v
}

// Dampening returns the damping constant applied to the last step.
func (v *ModelValidator) Dampening() float64 {
	return v.dampening
}

// Validate computes bias, R², RMSE and MAE for paired series and emits a
// benchmark record tagged with period. confidence is the confidence that was
// attached to the predictions and is compared against the achieved R².
func (v *ModelValidator) Validate(observed, predicted []float64, period string, confidence float64) (*models.ValidationResult, error) {
	if len(observed) != len(predicted) {
		return nil, utils.NewValidationErrorf("observed and predicted lengths differ: %d vs %d", len(observed), len(predicted))
	}
	if len(observed) < v.minSamples {
		return nil, utils.NewFieldValidationError("observed",
			fmt.Sprintf("insufficient data: %d points, need at least %d", len(observed), v.minSamples))
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, utils.NewFieldValidationError("confidence", fmt.Sprintf("must be in [0,1], got %v", confidence))
	}
	for i := range observed {
		if !isFinite(observed[i]) || !isFinite(predicted[i]) {
			return nil, utils.NewFieldValidationError("observed", fmt.Sprintf("non-finite value at index %d", i))
		}
	}

	n := float64(len(observed))
	var sumErr, sumAbs, sumSq float64
	for i := range observed {
		e := observed[i] - predicted[i]
		sumErr += e
		sumAbs += math.Abs(e)
		sumSq += e * e
	}

	r2 := RSquared(observed, predicted)
	result := &models.ValidationResult{
		Bias: sumErr / n,
		R2:   r2,
		RMSE: math.Sqrt(sumSq / n),
		MAE:  sumAbs / n,
	}
	result.Benchmark = models.BenchmarkRecord{
		ID:                  uuid.New().String(),
		Period:              period,
		SampleSize:          len(observed),
		Bias:                result.Bias,
		R2:                  r2,
		RMSE:                result.RMSE,
		MAE:                 result.MAE,
		PredictedConfidence: confidence,
		CalibrationGap:      math.Abs(confidence - utils.Clamp01(r2)),
		RecordedAt:          v.now().UTC(),
	}

	v.logger.WithFields(logrus.Fields{
		"period":      period,
		"sample_size": len(observed),
		"bias":        result.Bias,
		"r2":          r2,
	}).Debug("Validated model predictions")

	return result, nil
}

// PredictNext extrapolates one step ahead as last + (last - previous) * d.
// Its confidence is the clamped R² of the same rule replayed over the most
// recent steps of series, or 0 when there are too few steps to judge.
func (v *ModelValidator) PredictNext(series []float64) (*models.Projection, error) {
	if len(series) < 2 {
		return nil, utils.NewFieldValidationError("series",
			fmt.Sprintf("insufficient data: %d points, need at least 2", len(series)))
	}
	for i, x := range series {
		if !isFinite(x) {
			return nil, utils.NewFieldValidationError("series", fmt.Sprintf("non-finite value at index %d", i))
		}
	}

	last := series[len(series)-1]
	prev := series[len(series)-2]
	return &models.Projection{
		Value:      last + (last-prev)*v.dampening,
		Confidence: v.backtestConfidence(series),
		Last:       last,
		Previous:   prev,
		Dampening:  v.dampening,
	}, nil
}

// backtestConfidence replays the damped projection over the trailing window:
// for each i the rule predicts series[i] from series[i-2] and series[i-1].
func (v *ModelValidator) backtestConfidence(series []float64) float64 {
	start := 2
	if len(series)-start > v.backtestWindow {
		start = len(series) - v.backtestWindow
	}
	if len(series)-start < v.minSamples {
		return 0
	}

	observed := make([]float64, 0, len(series)-start)
	predicted := make([]float64, 0, len(series)-start)
	for i := start; i < len(series); i++ {
		observed = append(observed, series[i])
		predicted = append(predicted, series[i-1]+(series[i-1]-series[i-2])*v.dampening)
	}
	return utils.Clamp01(RSquared(observed, predicted))
}

// RSquared returns 1 - SS_res/SS_tot. A constant observed series yields 1
// when the predictions match it exactly and 0 otherwise.
func RSquared(observed, predicted []float64) float64 {
	if len(observed) == 0 || len(observed) != len(predicted) {
		return 0
	}
	mean := utils.Mean(observed)
	var ssRes, ssTot float64
	for i := range observed {
		e := observed[i] - predicted[i]
		ssRes += e * e
		d := observed[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
