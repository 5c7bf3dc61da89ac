package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const healthCheckTimeout = 5 * time.Second

// Checker probes one dependency. A nil error means healthy.
type Checker func(ctx context.Context) error

type HealthHandler struct {
	version string
	checks  map[string]Checker
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

func NewHealthHandler(version string, checks map[string]Checker) *HealthHandler {
	return &HealthHandler{
		version: version,
		checks:  checks,
	}
}

// HealthCheck reports each dependency. Any failing dependency makes the
// service unhealthy with a 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	services := make(map[string]string, len(h.checks))
	overallStatus := "healthy"
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
			continue
		}
		services[name] = "healthy"
	}

	status := http.StatusOK
	if overallStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  services,
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	})
}
