package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// ConfidenceService is the tenant confidence capability the handler needs.
type ConfidenceService interface {
	Get(ctx context.Context, tenantID string) (float64, error)
	RecalibrateTenant(ctx context.Context, tenantID string, req models.RecalibrationRequest) (*models.RecalibrationResult, error)
}

type ConfidenceHandler struct {
	confidence ConfidenceService
	logger     *logrus.Logger
}

func NewConfidenceHandler(confidence ConfidenceService, logger *logrus.Logger) *ConfidenceHandler {
	return &ConfidenceHandler{
		confidence: confidence,
		logger:     logger,
	}
}

// GetConfidence returns the tenant's current calibrated confidence
// @Summary Get tenant confidence
// @Tags confidence
// @Param tenant path string true "Tenant ID"
// @Produce json
// @Router /api/v1/confidence/{tenant} [get]
func (h *ConfidenceHandler) GetConfidence(c *gin.Context) {
	tenant := c.Param("tenant")
	value, err := h.confidence.Get(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, "load confidence", err)
		return
	}
	respondOK(c, gin.H{
		"tenant_id":  tenant,
		"confidence": value,
	})
}

// Recalibrate feeds a batch of forecast outcomes back into the tenant's
// confidence
// @Summary Recalibrate tenant confidence
// @Tags confidence
// @Param tenant path string true "Tenant ID"
// @Accept json
// @Produce json
// @Success 200 {object} models.RecalibrationResult
// @Router /api/v1/confidence/{tenant}/recalibrate [post]
func (h *ConfidenceHandler) Recalibrate(c *gin.Context) {
	var req models.RecalibrationRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.confidence.RecalibrateTenant(c.Request.Context(), c.Param("tenant"), req)
	if err != nil {
		respondError(c, h.logger, "recalibrate confidence", err)
		return
	}
	respondOK(c, result)
}
