package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/services"
	"github.com/sirupsen/logrus"
)

// CompositeHandler serves the composite calculators and the DTRI bundle.
type CompositeHandler struct {
	calculator *services.CompositeCalculator
	logger     *logrus.Logger
}

type CompositeRequest struct {
	Vertical models.Vertical     `json:"vertical"`
	Inputs   models.SignalInputs `json:"inputs"`
}

func NewCompositeHandler(calculator *services.CompositeCalculator, logger *logrus.Logger) *CompositeHandler {
	return &CompositeHandler{
		calculator: calculator,
		logger:     logger,
	}
}

// ComputeComposite scores one composite
// @Summary Compute a composite score
// @Tags composites
// @Param kind path string true "trust, qai, piqr or avi"
// @Accept json
// @Produce json
// @Success 200 {object} models.CompositeScore
// @Router /api/v1/composites/{kind} [post]
func (h *CompositeHandler) ComputeComposite(c *gin.Context) {
	var req CompositeRequest
	if !bindJSON(c, &req) {
		return
	}
	kind := models.CompositeKind(c.Param("kind"))

	score, err := h.calculator.ComputeCompositeForVertical(kind, req.Vertical, req.Inputs)
	if err != nil {
		respondError(c, h.logger, "compute composite", err)
		return
	}
	respondOK(c, score)
}

// ComputeBundle scores all four composites for a vertical and rolls them up
// @Summary Compute the DTRI bundle for a vertical
// @Tags composites
// @Param vertical path string true "acquisition, service or parts"
// @Accept json
// @Produce json
// @Success 200 {object} models.VerticalBundle
// @Router /api/v1/bundles/{vertical} [post]
func (h *CompositeHandler) ComputeBundle(c *gin.Context) {
	var inputs models.BundleInputs
	if !bindJSON(c, &inputs) {
		return
	}

	bundle, err := h.calculator.ComputeVerticalBundle(inputs, models.Vertical(c.Param("vertical")))
	if err != nil {
		respondError(c, h.logger, "compute bundle", err)
		return
	}
	respondOK(c, bundle)
}
