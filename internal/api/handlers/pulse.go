package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/services"
	"github.com/sirupsen/logrus"
)

type PulseHandler struct {
	ranker *services.PriorityRanker
	logger *logrus.Logger
}

type PulsesRequest struct {
	Pulses []models.Pulse `json:"pulses"`
}

func NewPulseHandler(ranker *services.PriorityRanker, logger *logrus.Logger) *PulseHandler {
	return &PulseHandler{
		ranker: ranker,
		logger: logger,
	}
}

// Rank orders pulses for a role
// @Summary Rank pulses for a role
// @Tags pulses
// @Param role query string true "gm, marketing, sales, service or parts"
// @Param limit query int false "Maximum number of pulses returned"
// @Accept json
// @Produce json
// @Router /api/v1/pulses/rank [post]
func (h *PulseHandler) Rank(c *gin.Context) {
	role := models.Role(c.Query("role"))
	if role == "" {
		respondBadRequest(c, "Role parameter is required")
		return
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			respondBadRequest(c, "Limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	var req PulsesRequest
	if !bindJSON(c, &req) {
		return
	}

	ranked := h.ranker.RankWithScores(req.Pulses, role)
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	respondOK(c, gin.H{
		"role":   role,
		"count":  len(ranked),
		"pulses": ranked,
	})
}

// Summary aggregates a pulse collection.
func (h *PulseHandler) Summary(c *gin.Context) {
	var req PulsesRequest
	if !bindJSON(c, &req) {
		return
	}
	respondOK(c, gin.H{
		"summary": services.SummarizePulses(req.Pulses),
		"groups":  services.GroupByKind(req.Pulses),
	})
}
