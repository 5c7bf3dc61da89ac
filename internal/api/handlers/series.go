package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/services"
	"github.com/sirupsen/logrus"
)

// SeriesHandler serves smoothing, validation, projection, trend and forecast.
type SeriesHandler struct {
	smoother  *services.TimeSeriesSmoother
	validator *services.ModelValidator
	logger    *logrus.Logger
}

type SmoothRequest struct {
	Metric string                   `json:"metric"`
	Points []models.HistoricalPoint `json:"points"`
}

type ValidateRequest struct {
	Observed   []float64 `json:"observed"`
	Predicted  []float64 `json:"predicted"`
	Period     string    `json:"period"`
	Confidence float64   `json:"confidence"`
}

type SeriesRequest struct {
	Series []float64 `json:"series"`
}

type ForecastRequest struct {
	Series          []float64 `json:"series"`
	Horizon         int       `json:"horizon"`
	ConfidenceLevel float64   `json:"confidence_level"`
}

func NewSeriesHandler(smoother *services.TimeSeriesSmoother, validator *services.ModelValidator, logger *logrus.Logger) *SeriesHandler {
	return &SeriesHandler{
		smoother:  smoother,
		validator: validator,
		logger:    logger,
	}
}

// Smooth runs the Kalman smoother over a series of points.
func (h *SeriesHandler) Smooth(c *gin.Context) {
	var req SmoothRequest
	if !bindJSON(c, &req) {
		return
	}
	respondOK(c, h.smoother.Smooth(req.Points, req.Metric))
}

// Validate compares observed and predicted values
// @Summary Validate a model against observations
// @Tags models
// @Accept json
// @Produce json
// @Success 200 {object} models.ValidationResult
// @Router /api/v1/models/validate [post]
func (h *SeriesHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.validator.Validate(req.Observed, req.Predicted, req.Period, req.Confidence)
	if err != nil {
		respondError(c, h.logger, "validate model", err)
		return
	}
	respondOK(c, result)
}

// Predict projects the next value of a series.
func (h *SeriesHandler) Predict(c *gin.Context) {
	var req SeriesRequest
	if !bindJSON(c, &req) {
		return
	}
	projection, err := h.validator.PredictNext(req.Series)
	if err != nil {
		respondError(c, h.logger, "predict next value", err)
		return
	}
	respondOK(c, projection)
}

// Trend analyzes direction, volatility and patterns of a series.
func (h *SeriesHandler) Trend(c *gin.Context) {
	var req SeriesRequest
	if !bindJSON(c, &req) {
		return
	}
	analysis, err := services.AnalyzeTrend(req.Series)
	if err != nil {
		respondError(c, h.logger, "analyze trend", err)
		return
	}
	respondOK(c, analysis)
}

// Forecast projects a series several weeks ahead with intervals.
func (h *SeriesHandler) Forecast(c *gin.Context) {
	var req ForecastRequest
	if !bindJSON(c, &req) {
		return
	}
	forecast, err := h.smoother.Forecast(req.Series, req.Horizon, req.ConfidenceLevel)
	if err != nil {
		respondError(c, h.logger, "forecast series", err)
		return
	}
	respondOK(c, forecast)
}
