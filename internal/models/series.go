package models

import "time"

// HistoricalPoint is one observation in a per-entity metric stream.
type HistoricalPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Raw       float64   `json:"raw"`
	Smoothed  float64   `json:"smoothed"`
}

// BenchmarkRecord is the period-tagged accuracy snapshot emitted by validation.
type BenchmarkRecord struct {
	ID                  string    `json:"id"`
	Period              string    `json:"period"`
	SampleSize          int       `json:"sample_size"`
	Bias                float64   `json:"bias"`
	R2                  float64   `json:"r2"`
	RMSE                float64   `json:"rmse"`
	MAE                 float64   `json:"mae"`
	PredictedConfidence float64   `json:"predicted_confidence"`
	CalibrationGap      float64   `json:"calibration_gap"`
	RecordedAt          time.Time `json:"recorded_at"`
}

// ValidationResult holds accuracy metrics for an observed/predicted pair.
type ValidationResult struct {
	Bias      float64         `json:"bias"`
	R2        float64         `json:"r2"`
	RMSE      float64         `json:"rmse"`
	MAE       float64         `json:"mae"`
	Benchmark BenchmarkRecord `json:"benchmark_record"`
}

// Projection is a one-step damped linear extrapolation.
type Projection struct {
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	Last       float64 `json:"last"`
	Previous   float64 `json:"previous"`
	Dampening  float64 `json:"dampening"`
}

// TrendDirection classifies the slope of a least-squares fit.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Level is a coarse high/medium/low classification.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// LinearTrend is an ordinary least-squares fit against the sample index.
type LinearTrend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
}

// SeriesStatistics summarizes a series.
type SeriesStatistics struct {
	Current float64 `json:"current"`
	Mean    float64 `json:"mean"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"std_dev"`
}

// Momentum compares the change over the last three points with the change
// over the three before them.
type Momentum struct {
	Current   float64 `json:"current"`
	Average   float64 `json:"average"`
	Direction string  `json:"direction"`
}

// TrendAnalysis is the descriptive analysis of a metric stream.
type TrendAnalysis struct {
	Trend        LinearTrend      `json:"trend"`
	Direction    TrendDirection   `json:"direction"`
	Significance Level            `json:"significance"`
	Volatility   float64          `json:"volatility"`
	Stability    Level            `json:"stability"`
	Momentum     Momentum         `json:"momentum"`
	Patterns     []string         `json:"patterns"`
	SMA          []float64        `json:"sma"`
	EMA          []float64        `json:"ema"`
	Statistics   SeriesStatistics `json:"statistics"`
}

// ForecastPoint is one step of a multi-week forecast.
type ForecastPoint struct {
	Week       int     `json:"week"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
}

// ForecastResult is a multi-step forecast over a smoothed trend.
type ForecastResult struct {
	Horizon         int             `json:"horizon"`
	ConfidenceLevel float64         `json:"confidence_level"`
	Slope           float64         `json:"slope"`
	Volatility      float64         `json:"volatility"`
	Points          []ForecastPoint `json:"points"`
}
