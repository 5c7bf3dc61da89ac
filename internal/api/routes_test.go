package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/api/handlers"
	"github.com/irfndi/dealer-trust-engine/internal/cache"
	"github.com/irfndi/dealer-trust-engine/internal/config"
	"github.com/irfndi/dealer-trust-engine/internal/metrics"
	"github.com/irfndi/dealer-trust-engine/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	collector := metrics.NewCollector()
	store := cache.NewMemoryStore()

	acquire := func(ctx context.Context, city, state string) (float64, error) {
		return 64.5, nil
	}
	pool := services.NewGeoQueryPool(services.GeoPoolConfig{}, store, acquire, nil, logger, collector)
	loop := services.NewFeedbackLoop(config.FeedbackConfig{}, logger, collector)

	router := gin.New()
	SetupRoutes(router, Engine{
		Calculator:   services.NewCompositeCalculator(logger, collector),
		Smoother:     services.NewTimeSeriesSmoother(nil, nil),
		Validator:    services.NewModelValidator(config.ValidatorConfig{}, logger),
		Confidence:   services.NewConfidenceStore(store, loop, 0.85, logger),
		Pool:         pool,
		Ranker:       services.NewPriorityRanker(nil),
		Metrics:      collector,
		HealthChecks: map[string]handlers.Checker{"probe": func(context.Context) error { return nil }},
		Version:      "test",
		Logger:       logger,
	})
	return router
}

func TestSetupRoutes(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"health head", http.MethodHead, "/health", "", http.StatusOK},
		{"composite", http.MethodPost, "/api/v1/composites/trust", `{"inputs":{}}`, http.StatusOK},
		{"bundle", http.MethodPost, "/api/v1/bundles/parts", `{}`, http.StatusOK},
		{"smooth", http.MethodPost, "/api/v1/series/smooth", `{"metric":"aiv","points":[]}`, http.StatusOK},
		{"predict", http.MethodPost, "/api/v1/models/predict", `{"series":[1,2,3]}`, http.StatusOK},
		{"trend too short", http.MethodPost, "/api/v1/models/trend", `{"series":[1]}`, http.StatusBadRequest},
		{"confidence", http.MethodGet, "/api/v1/confidence/dealer-1", "", http.StatusOK},
		{"pool stats", http.MethodGet, "/api/v1/pool/stats", "", http.StatusOK},
		{"pool sweep", http.MethodPost, "/api/v1/pool/sweep", "", http.StatusOK},
		{"pool score", http.MethodGet, "/api/v1/pool/CA/Fresno", "", http.StatusOK},
		{"pulse rank", http.MethodPost, "/api/v1/pulses/rank?role=gm", `{"pulses":[]}`, http.StatusOK},
		{"triggers", http.MethodPost, "/api/v1/financial/triggers", `{}`, http.StatusOK},
		{"unknown route", http.MethodGet, "/api/v1/does-not-exist", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestSetupRoutes_PoolSharesAcquisition(t *testing.T) {
	router := setupTestRouter(t)

	var responses []map[string]interface{}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pool/CA/Fresno", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		responses = append(responses, body.Data)
	}
	assert.Equal(t, false, responses[0]["is_from_pool"])
	assert.Equal(t, true, responses[1]["is_from_pool"])
	assert.Equal(t, 64.5, responses[1]["score"])
}

func TestSetupRoutes_NotFoundEnvelope(t *testing.T) {
	router := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Route not found"}`, w.Body.String())
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/composites/avi", strings.NewReader(`{"inputs":{}}`)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dealer_trust_composites_computed_total")
}
