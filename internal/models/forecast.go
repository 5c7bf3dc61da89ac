package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrActualAlreadySet is returned when an observed value is recorded twice.
var ErrActualAlreadySet = errors.New("forecast record already has an actual value")

// ForecastRecord is a single prediction awaiting or holding its observed outcome.
type ForecastRecord struct {
	ID                  string    `json:"id"`
	ForecastDate        time.Time `json:"forecast_date"`
	WindowDays          int       `json:"window_days"`
	PredictedValue      float64   `json:"predicted_value"`
	ActualValue         *float64  `json:"actual_value,omitempty"`
	PredictedConfidence float64   `json:"predicted_confidence"`
	Role                string    `json:"role"`
}

// NewForecastRecord creates a record with no actual value yet.
func NewForecastRecord(forecastDate time.Time, windowDays int, predicted, confidence float64, role string) *ForecastRecord {
	return &ForecastRecord{
		ID:                  uuid.NewString(),
		ForecastDate:        forecastDate,
		WindowDays:          windowDays,
		PredictedValue:      predicted,
		PredictedConfidence: confidence,
		Role:                role,
	}
}

// HasActual reports whether the observed value has been recorded.
func (r *ForecastRecord) HasActual() bool {
	return r.ActualValue != nil
}

// RecordActual sets the observed value. It can only succeed once.
func (r *ForecastRecord) RecordActual(value float64) error {
	if r.ActualValue != nil {
		return ErrActualAlreadySet
	}
	v := value
	r.ActualValue = &v
	return nil
}

// PerformanceInputs are observed business metrics used to derive actual ROI.
type PerformanceInputs struct {
	LeadVolume              float64  `json:"lead_volume"`
	CloseRate               float64  `json:"close_rate"`
	AvgGross                float64  `json:"avg_gross"`
	EngagementVelocity      float64  `json:"engagement_velocity"`
	AlertAckRate            *float64 `json:"alert_ack_rate,omitempty"`
	ActionFollowThroughRate *float64 `json:"action_follow_through_rate,omitempty"`
}

// ActualROI derives the realized ROI from the four performance factors.
func (p PerformanceInputs) ActualROI() float64 {
	return p.LeadVolume * p.CloseRate * p.AvgGross * p.EngagementVelocity
}

// RecalibrationRequest is one batch submitted to the feedback loop.
type RecalibrationRequest struct {
	ForecastRecords    []ForecastRecord   `json:"forecast_records"`
	PerformanceInputs  *PerformanceInputs `json:"performance_inputs,omitempty"`
	PreviousConfidence float64            `json:"previous_confidence_score"`
}

// RecordError is the relative error of one forecast record.
type RecordError struct {
	RecordID      string  `json:"record_id"`
	Predicted     float64 `json:"predicted"`
	Actual        float64 `json:"actual"`
	RelativeError float64 `json:"relative_error"`
	Derived       bool    `json:"derived"`
}

// AdjustmentBreakdown shows how the new confidence was assembled.
type AdjustmentBreakdown struct {
	LearningRate       float64 `json:"learning_rate"`
	Blended            float64 `json:"blended"`
	AlertAckNudge      float64 `json:"alert_ack_nudge"`
	FollowThroughNudge float64 `json:"follow_through_nudge"`
	Unclamped          float64 `json:"unclamped"`
}

// ConfidenceTier buckets a confidence value for display.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "High"
	TierMedium ConfidenceTier = "Medium"
	TierLow    ConfidenceTier = "Low"
)

// RecalibrationType classifies the magnitude of the batch error.
type RecalibrationType string

const (
	RecalibrationMinor    RecalibrationType = "minor"
	RecalibrationModerate RecalibrationType = "moderate"
	RecalibrationMajor    RecalibrationType = "major"
)

// AdaptationProfile tells consumers how to present forecasts at the new confidence.
type AdaptationProfile struct {
	Tone                    string  `json:"tone"`
	ForecastRangeMultiplier float64 `json:"forecast_range_multiplier"`
	MessageDepth            string  `json:"message_depth"`
	Urgency                 float64 `json:"urgency"`
}

// RecalibrationResult is the outcome of a feedback-loop batch.
type RecalibrationResult struct {
	TenantID           string              `json:"tenant_id,omitempty"`
	PreviousConfidence float64             `json:"previous_confidence"`
	NewConfidence      float64             `json:"new_confidence"`
	PerRecordError     []RecordError       `json:"per_record_error"`
	MAPE               float64             `json:"mape"`
	AggregateAccuracy  float64             `json:"aggregate_accuracy"`
	Breakdown          AdjustmentBreakdown `json:"adjustment_breakdown"`
	Tier               ConfidenceTier      `json:"tier"`
	RecalibrationType  RecalibrationType   `json:"recalibration_type"`
	Adaptation         AdaptationProfile   `json:"adaptation"`
	RecalibratedAt     time.Time           `json:"recalibrated_at"`
}
