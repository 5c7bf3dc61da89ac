package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/services"
	"github.com/sirupsen/logrus"
)

// GeoPoolService is the geographic query pool as seen by the handler.
type GeoPoolService interface {
	Get(ctx context.Context, city, state string) (*models.PoolResponse, error)
	GetWithVariance(ctx context.Context, city, state string, variance services.VarianceFunc) (*models.PoolResponse, error)
	Stats(ctx context.Context) (*models.PoolStats, error)
	ClearExpired(ctx context.Context) (int, error)
}

// PoolHandler serves pooled geography scores and pool maintenance.
type PoolHandler struct {
	pool         GeoPoolService
	varianceSeed uint64
	logger       *logrus.Logger
}

func NewPoolHandler(pool GeoPoolService, varianceSeed uint64, logger *logrus.Logger) *PoolHandler {
	return &PoolHandler{
		pool:         pool,
		varianceSeed: varianceSeed,
		logger:       logger,
	}
}

// GetScore returns the pooled score for a geography
// @Summary Get pooled geography score
// @Description Serves the shared acquisition for (city, state). With a consumer query parameter the variance is stable per consumer.
// @Tags pool
// @Param state path string true "State code"
// @Param city path string true "City"
// @Param consumer query string false "Consumer ID"
// @Produce json
// @Success 200 {object} models.PoolResponse
// @Router /api/v1/pool/{state}/{city} [get]
func (h *PoolHandler) GetScore(c *gin.Context) {
	city, state := c.Param("city"), c.Param("state")

	var (
		resp *models.PoolResponse
		err  error
	)
	if consumer := c.Query("consumer"); consumer != "" {
		resp, err = h.pool.GetWithVariance(c.Request.Context(), city, state, services.NewConsumerVariance(consumer, h.varianceSeed))
	} else {
		resp, err = h.pool.Get(c.Request.Context(), city, state)
	}
	if err != nil {
		respondError(c, h.logger, "get pooled score", err)
		return
	}
	respondOK(c, resp)
}

// GetStats reports pool entries and hit/miss counters
// @Summary Get geo pool statistics
// @Tags pool
// @Produce json
// @Success 200 {object} models.PoolStats
// @Router /api/v1/pool/stats [get]
func (h *PoolHandler) GetStats(c *gin.Context) {
	stats, err := h.pool.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "get pool stats", err)
		return
	}
	respondOK(c, stats)
}

// Sweep removes expired entries now instead of waiting for the sweeper.
func (h *PoolHandler) Sweep(c *gin.Context) {
	removed, err := h.pool.ClearExpired(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "sweep pool", err)
		return
	}
	respondOK(c, gin.H{"removed": removed})
}
