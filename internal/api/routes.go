package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/api/handlers"
	"github.com/irfndi/dealer-trust-engine/internal/metrics"
	"github.com/irfndi/dealer-trust-engine/internal/services"
	"github.com/sirupsen/logrus"
)

// Engine bundles the services the routes expose.
type Engine struct {
	Calculator   *services.CompositeCalculator
	Smoother     *services.TimeSeriesSmoother
	Validator    *services.ModelValidator
	Confidence   handlers.ConfidenceService
	Pool         handlers.GeoPoolService
	Ranker       *services.PriorityRanker
	VarianceSeed uint64
	Metrics      *metrics.Collector
	HealthChecks map[string]handlers.Checker
	Version      string
	Logger       *logrus.Logger
}

func SetupRoutes(router *gin.Engine, engine Engine) {
	healthHandler := handlers.NewHealthHandler(engine.Version, engine.HealthChecks)
	compositeHandler := handlers.NewCompositeHandler(engine.Calculator, engine.Logger)
	seriesHandler := handlers.NewSeriesHandler(engine.Smoother, engine.Validator, engine.Logger)
	confidenceHandler := handlers.NewConfidenceHandler(engine.Confidence, engine.Logger)
	poolHandler := handlers.NewPoolHandler(engine.Pool, engine.VarianceSeed, engine.Logger)
	pulseHandler := handlers.NewPulseHandler(engine.Ranker, engine.Logger)
	financialHandler := handlers.NewFinancialHandler(engine.Logger)

	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(engine.Metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/composites/:kind", compositeHandler.ComputeComposite)
		v1.POST("/bundles/:vertical", compositeHandler.ComputeBundle)

		series := v1.Group("/series")
		{
			series.POST("/smooth", seriesHandler.Smooth)
		}

		models := v1.Group("/models")
		{
			models.POST("/validate", seriesHandler.Validate)
			models.POST("/predict", seriesHandler.Predict)
			models.POST("/forecast", seriesHandler.Forecast)
			models.POST("/trend", seriesHandler.Trend)
		}

		confidence := v1.Group("/confidence")
		{
			confidence.GET("/:tenant", confidenceHandler.GetConfidence)
			confidence.POST("/:tenant/recalibrate", confidenceHandler.Recalibrate)
		}

		pool := v1.Group("/pool")
		{
			pool.GET("/stats", poolHandler.GetStats)
			pool.POST("/sweep", poolHandler.Sweep)
			pool.GET("/:state/:city", poolHandler.GetScore)
		}

		pulses := v1.Group("/pulses")
		{
			pulses.POST("/rank", pulseHandler.Rank)
			pulses.POST("/summary", pulseHandler.Summary)
		}

		financial := v1.Group("/financial")
		{
			financial.POST("/decay-tax", financialHandler.DecayTax)
			financial.POST("/actionable-roi", financialHandler.ActionableROI)
			financial.POST("/strategic-window", financialHandler.StrategicWindow)
			financial.POST("/triggers", financialHandler.Triggers)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Route not found",
		})
	})
}
