package services

import (
	"fmt"
	"math"
	"time"

	"github.com/irfndi/dealer-trust-engine/internal/config"
	"github.com/irfndi/dealer-trust-engine/internal/metrics"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	defaultLearningRate      = 0.2
	defaultMaxNudge          = 0.05
	defaultTenantConfidence  = 0.85
	relativeErrorEpsilon     = 1e-6
	behavioralNudgeScale     = 0.1
	behavioralNudgeNeutral   = 0.5
	highTierConfidence       = 0.85
	mediumTierConfidence     = 0.70
	minorRecalibrationPct    = 5.0
	moderateRecalibrationPct = 15.0
	urgencyFullScalePct      = 20.0
)

// FeedbackLoop blends forecast accuracy into a confidence scalar. Recalibrate
// is pure; tenant-scoped persistence lives in ConfidenceStore.
type FeedbackLoop struct {
	learningRate float64
	maxNudge     float64
	logger       *logrus.Logger
	metrics      *metrics.Collector
	now          func() time.Time
}

// NewFeedbackLoop creates a feedback loop. Zero values in cfg use the
// defaults (α = 0.2, nudges capped at ±0.05).
func NewFeedbackLoop(cfg config.FeedbackConfig, logger *logrus.Logger, collector *metrics.Collector) *FeedbackLoop {
	if logger == nil {
		logger = logrus.New()
	}
	f := &FeedbackLoop{
		learningRate: cfg.LearningRate,
		maxNudge:     cfg.MaxNudge,
		logger:       logger,
		metrics:      collector,
		now:          time.Now,
	}
	if f.learningRate <= 0 || f.learningRate > 1 {
		f.learningRate = defaultLearningRate
	}
	if f.maxNudge <= 0 || f.maxNudge > defaultMaxNudge {
		f.maxNudge = defaultMaxNudge
	}
	return f
}

// Recalibrate scores a batch of forecast records and returns the new
// confidence. The whole batch is validated before anything is computed, so a
// rejected batch yields no partial result.
func (f *FeedbackLoop) Recalibrate(req models.RecalibrationRequest) (*models.RecalibrationResult, error) {
	if err := f.validate(req); err != nil {
		return nil, err
	}

	errs := make([]models.RecordError, len(req.ForecastRecords))
	var total float64
	for i, rec := range req.ForecastRecords {
		actual, derived := 0.0, false
		if rec.ActualValue != nil {
			actual = *rec.ActualValue
		} else {
			actual, derived = req.PerformanceInputs.ActualROI(), true
		}
		rel := math.Abs(actual-rec.PredictedValue) / math.Max(math.Abs(actual), relativeErrorEpsilon)
		errs[i] = models.RecordError{
			RecordID:      rec.ID,
			Predicted:     rec.PredictedValue,
			Actual:        actual,
			RelativeError: rel,
			Derived:       derived,
		}
		total += rel
	}
	mape := total / float64(len(errs))
	accuracy := 1 - utils.Clamp01(mape)

	prev := req.PreviousConfidence
	blended := prev*(1-f.learningRate) + accuracy*f.learningRate

	// Nudges apply in a fixed order: alert acknowledgement, then follow-through.
	var ackNudge, followNudge float64
	if p := req.PerformanceInputs; p != nil {
		if p.AlertAckRate != nil {
			ackNudge = f.nudge(*p.AlertAckRate)
		}
		if p.ActionFollowThroughRate != nil {
			followNudge = f.nudge(*p.ActionFollowThroughRate)
		}
	}
	unclamped := blended + ackNudge + followNudge
	next := utils.Clamp01(unclamped)

	mapePct := mape * 100
	tier := confidenceTier(next)
	kind := recalibrationType(mapePct)

	f.logger.WithFields(logrus.Fields{
		"records":             len(errs),
		"mape":                mape,
		"previous_confidence": prev,
		"new_confidence":      next,
	}).Debug("Recalibrated forecast confidence")

	return &models.RecalibrationResult{
		PreviousConfidence: prev,
		NewConfidence:      next,
		PerRecordError:     errs,
		MAPE:               mape,
		AggregateAccuracy:  accuracy,
		Breakdown: models.AdjustmentBreakdown{
			LearningRate:       f.learningRate,
			Blended:            blended,
			AlertAckNudge:      ackNudge,
			FollowThroughNudge: followNudge,
			Unclamped:          unclamped,
		},
		Tier:              tier,
		RecalibrationType: kind,
		Adaptation:        adaptationFor(next, tier, kind, mapePct),
		RecalibratedAt:    f.now().UTC(),
	}, nil
}

func (f *FeedbackLoop) validate(req models.RecalibrationRequest) error {
	if len(req.ForecastRecords) == 0 {
		return utils.NewFieldValidationError("forecast_records", "must not be empty")
	}
	if math.IsNaN(req.PreviousConfidence) || req.PreviousConfidence < 0 || req.PreviousConfidence > 1 {
		return utils.NewFieldValidationError("previous_confidence_score",
			fmt.Sprintf("must be in [0,1], got %v", req.PreviousConfidence))
	}

	needsInputs := false
	for i, rec := range req.ForecastRecords {
		if !isFinite(rec.PredictedValue) {
			return utils.NewFieldValidationError("forecast_records", fmt.Sprintf("record %d has a non-finite predicted value", i))
		}
		if rec.ActualValue == nil {
			needsInputs = true
		} else if !isFinite(*rec.ActualValue) {
			return utils.NewFieldValidationError("forecast_records", fmt.Sprintf("record %d has a non-finite actual value", i))
		}
	}
	if needsInputs && req.PerformanceInputs == nil {
		return utils.NewFieldValidationError("performance_inputs", "required when a record has no actual value")
	}

	if p := req.PerformanceInputs; p != nil {
		for name, v := range map[string]float64{
			"lead_volume":         p.LeadVolume,
			"close_rate":          p.CloseRate,
			"avg_gross":           p.AvgGross,
			"engagement_velocity": p.EngagementVelocity,
		} {
			if !isFinite(v) {
				return utils.NewFieldValidationError("performance_inputs."+name, "must be finite")
			}
		}
		if err := checkRate("performance_inputs.alert_ack_rate", p.AlertAckRate); err != nil {
			return err
		}
		if err := checkRate("performance_inputs.action_follow_through_rate", p.ActionFollowThroughRate); err != nil {
			return err
		}
	}
	return nil
}

func checkRate(field string, rate *float64) error {
	if rate == nil {
		return nil
	}
	if math.IsNaN(*rate) || *rate < 0 || *rate > 1 {
		return utils.NewFieldValidationError(field, fmt.Sprintf("must be in [0,1], got %v", *rate))
	}
	return nil
}

// nudge centres a behavioral rate on 0.5 and caps the shift at ±maxNudge.
func (f *FeedbackLoop) nudge(rate float64) float64 {
	return utils.Clamp((rate-behavioralNudgeNeutral)*behavioralNudgeScale, -f.maxNudge, f.maxNudge)
}

func confidenceTier(c float64) models.ConfidenceTier {
	switch {
	case c >= highTierConfidence:
		return models.TierHigh
	case c >= mediumTierConfidence:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

func recalibrationType(mapePct float64) models.RecalibrationType {
	switch {
	case mapePct < minorRecalibrationPct:
		return models.RecalibrationMinor
	case mapePct < moderateRecalibrationPct:
		return models.RecalibrationModerate
	default:
		return models.RecalibrationMajor
	}
}

func adaptationFor(c float64, tier models.ConfidenceTier, kind models.RecalibrationType, mapePct float64) models.AdaptationProfile {
	var tone string
	switch {
	case tier == models.TierHigh && kind == models.RecalibrationMinor:
		tone = "strategic"
	case tier == models.TierHigh:
		tone = "executive"
	case kind == models.RecalibrationMajor:
		tone = "tactical"
	default:
		tone = "advisory"
	}

	depth := "comprehensive"
	switch tier {
	case models.TierHigh:
		depth = "compact"
	case models.TierMedium:
		depth = "detailed"
	}

	return models.AdaptationProfile{
		Tone:                    tone,
		ForecastRangeMultiplier: utils.RoundTo(0.8+c*0.4, 2),
		MessageDepth:            depth,
		Urgency:                 utils.RoundTo(math.Min(mapePct/urgencyFullScalePct, 1), 2),
	}
}
