package services

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/irfndi/dealer-trust-engine/internal/cache"
	"github.com/irfndi/dealer-trust-engine/internal/config"
	"github.com/irfndi/dealer-trust-engine/internal/metrics"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func newTestFeedbackLoop() *FeedbackLoop {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewFeedbackLoop(config.FeedbackConfig{}, logger, nil)
}

func settledRecord(predicted, actual float64) models.ForecastRecord {
	rec := models.NewForecastRecord(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 30, predicted, 0.8, "gm")
	_ = rec.RecordActual(actual)
	return *rec
}

func TestRecalibrate_PerfectForecastMovesTowardOne(t *testing.T) {
	f := newTestFeedbackLoop()

	for _, prev := range []float64{0, 0.3, 0.5, 0.99} {
		res, err := f.Recalibrate(models.RecalibrationRequest{
			ForecastRecords:    []models.ForecastRecord{settledRecord(100, 100), settledRecord(250, 250)},
			PreviousConfidence: prev,
		})
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.MAPE)
		assert.Equal(t, 1.0, res.AggregateAccuracy)
		assert.Greater(t, res.NewConfidence, prev)
		assert.InDelta(t, defaultLearningRate*(1-prev), res.NewConfidence-prev, 1e-12)
	}
}

func TestRecalibrate_DerivesActualFromPerformance(t *testing.T) {
	f := newTestFeedbackLoop()
	rec := models.NewForecastRecord(time.Now(), 30, 54000, 0.8, "gm")

	res, err := f.Recalibrate(models.RecalibrationRequest{
		ForecastRecords: []models.ForecastRecord{*rec},
		PerformanceInputs: &models.PerformanceInputs{
			LeadVolume: 200, CloseRate: 0.1, AvgGross: 2500, EngagementVelocity: 1.2,
		},
		PreviousConfidence: 0.85,
	})
	require.NoError(t, err)

	require.Len(t, res.PerRecordError, 1)
	e := res.PerRecordError[0]
	assert.True(t, e.Derived)
	assert.InDelta(t, 60000, e.Actual, 1e-9)
	assert.InDelta(t, 0.1, e.RelativeError, 1e-12)
	assert.InDelta(t, 0.1, res.MAPE, 1e-12)
	assert.InDelta(t, 0.86, res.NewConfidence, 1e-12)

	assert.Equal(t, models.TierHigh, res.Tier)
	assert.Equal(t, models.RecalibrationModerate, res.RecalibrationType)
	assert.Equal(t, models.AdaptationProfile{
		Tone:                    "executive",
		ForecastRangeMultiplier: 1.14,
		MessageDepth:            "compact",
		Urgency:                 0.5,
	}, res.Adaptation)
}

func TestRecalibrate_BehavioralNudges(t *testing.T) {
	f := newTestFeedbackLoop()
	records := []models.ForecastRecord{settledRecord(100, 100)}

	res, err := f.Recalibrate(models.RecalibrationRequest{
		ForecastRecords: records,
		PerformanceInputs: &models.PerformanceInputs{
			AlertAckRate:            ptr(0.9),
			ActionFollowThroughRate: ptr(0.8),
		},
		PreviousConfidence: 0.5,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, res.Breakdown.Blended, 1e-12)
	assert.InDelta(t, 0.04, res.Breakdown.AlertAckNudge, 1e-12)
	assert.InDelta(t, 0.03, res.Breakdown.FollowThroughNudge, 1e-12)
	assert.InDelta(t, 0.67, res.NewConfidence, 1e-12)

	capped, err := f.Recalibrate(models.RecalibrationRequest{
		ForecastRecords: records,
		PerformanceInputs: &models.PerformanceInputs{
			AlertAckRate:            ptr(1),
			ActionFollowThroughRate: ptr(1),
		},
		PreviousConfidence: 1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.05, capped.Breakdown.AlertAckNudge, 1e-12)
	assert.InDelta(t, 1.1, capped.Breakdown.Unclamped, 1e-12)
	assert.Equal(t, 1.0, capped.NewConfidence)

	low, err := f.Recalibrate(models.RecalibrationRequest{
		ForecastRecords:    []models.ForecastRecord{settledRecord(10, 0)},
		PerformanceInputs:  &models.PerformanceInputs{AlertAckRate: ptr(0)},
		PreviousConfidence: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, low.AggregateAccuracy)
	assert.InDelta(t, -0.05, low.Breakdown.AlertAckNudge, 1e-12)
	assert.Equal(t, 0.0, low.NewConfidence)
	assert.Equal(t, models.RecalibrationMajor, low.RecalibrationType)
	assert.Equal(t, "tactical", low.Adaptation.Tone)
	assert.Equal(t, "comprehensive", low.Adaptation.MessageDepth)
	assert.Equal(t, 1.0, low.Adaptation.Urgency)
}

func TestRecalibrate_Rejections(t *testing.T) {
	f := newTestFeedbackLoop()
	pending := *models.NewForecastRecord(time.Now(), 30, 100, 0.8, "gm")

	tests := []struct {
		name  string
		req   models.RecalibrationRequest
		field string
	}{
		{"empty records", models.RecalibrationRequest{PreviousConfidence: 0.5}, "forecast_records"},
		{"missing performance inputs", models.RecalibrationRequest{
			ForecastRecords:    []models.ForecastRecord{settledRecord(1, 1), pending},
			PreviousConfidence: 0.5,
		}, "performance_inputs"},
		{"previous confidence out of range", models.RecalibrationRequest{
			ForecastRecords:    []models.ForecastRecord{settledRecord(1, 1)},
			PreviousConfidence: 1.2,
		}, "previous_confidence_score"},
		{"previous confidence NaN", models.RecalibrationRequest{
			ForecastRecords:    []models.ForecastRecord{settledRecord(1, 1)},
			PreviousConfidence: math.NaN(),
		}, "previous_confidence_score"},
		{"rate out of range", models.RecalibrationRequest{
			ForecastRecords:    []models.ForecastRecord{settledRecord(1, 1)},
			PerformanceInputs:  &models.PerformanceInputs{AlertAckRate: ptr(1.5)},
			PreviousConfidence: 0.5,
		}, "performance_inputs.alert_ack_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Recalibrate(tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, utils.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfidenceStore_DefaultAndPersist(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	collector := metrics.NewCollector()
	loop := NewFeedbackLoop(config.FeedbackConfig{}, logrus.New(), collector)
	cs := NewConfidenceStore(store, loop, 0.85, logrus.New())

	c, err := cs.Get(ctx, "dealer-1")
	require.NoError(t, err)
	assert.Equal(t, 0.85, c)

	res, err := cs.RecalibrateTenant(ctx, "dealer-1", models.RecalibrationRequest{
		ForecastRecords:    []models.ForecastRecord{settledRecord(100, 100)},
		PreviousConfidence: 0.1, // ignored in favour of the stored value
	})
	require.NoError(t, err)
	assert.Equal(t, "dealer-1", res.TenantID)
	assert.Equal(t, 0.85, res.PreviousConfidence)
	assert.InDelta(t, 0.88, res.NewConfidence, 1e-12)

	c, err = cs.Get(ctx, "dealer-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.88, c, 1e-12)

	raw, ok, err := store.Get(ctx, "confidence:dealer-1")
	require.NoError(t, err)
	require.True(t, ok)
	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Contains(t, stored, "updated_at")

	n, err := testutil.GatherAndCount(collector.Registry(), "dealer_trust_tenant_confidence")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConfidenceStore_RejectedBatchLeavesState(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	cs := NewConfidenceStore(store, newTestFeedbackLoop(), 0.85, nil)

	_, err := cs.RecalibrateTenant(ctx, "dealer-1", models.RecalibrationRequest{})
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))

	_, ok, err := store.Get(ctx, "confidence:dealer-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = cs.RecalibrateTenant(ctx, "", models.RecalibrationRequest{})
	assert.True(t, utils.IsValidationError(err))
}

func TestConfidenceStore_SerializesPerTenant(t *testing.T) {
	ctx := context.Background()
	cs := NewConfidenceStore(cache.NewMemoryStore(), newTestFeedbackLoop(), 0.85, nil)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cs.RecalibrateTenant(ctx, "dealer-1", models.RecalibrationRequest{
				ForecastRecords: []models.ForecastRecord{settledRecord(100, 100)},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Every update applied in turn: 1 - 0.15 * 0.8^20.
	c, err := cs.Get(ctx, "dealer-1")
	require.NoError(t, err)
	assert.InDelta(t, 1-0.15*math.Pow(0.8, workers), c, 1e-9)
}

func TestConfidenceStore_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	cs := NewConfidenceStore(cache.NewRedisStore(client, "dte:", nil), newTestFeedbackLoop(), 0.85, nil)

	_, err = cs.RecalibrateTenant(ctx, "dealer-9", models.RecalibrationRequest{
		ForecastRecords: []models.ForecastRecord{settledRecord(100, 50)},
	})
	require.NoError(t, err)
	assert.True(t, mr.Exists("dte:confidence:dealer-9"))

	// MAPE 1.0: 0.85*0.8 + 0 = 0.68
	c, err := cs.Get(ctx, "dealer-9")
	require.NoError(t, err)
	assert.InDelta(t, 0.68, c, 1e-12)
}
