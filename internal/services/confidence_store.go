package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/telemetry"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/irfndi/dealer-trust-engine/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

const confidenceKeyPrefix = "confidence:"

type storedConfidence struct {
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConfidenceStore keeps one confidence scalar per tenant in a KeyValueStore
// and serializes recalibrations per tenant.
type ConfidenceStore struct {
	store             interfaces.KeyValueStore
	loop              *FeedbackLoop
	defaultConfidence float64
	locks             *keyedMutex
	tracer            *telemetry.BusinessTracer
	logger            *logrus.Logger
}

// NewConfidenceStore creates a store. defaultConfidence is reported for
// tenants with no stored value; values outside [0,1] fall back to 0.85.
func NewConfidenceStore(store interfaces.KeyValueStore, loop *FeedbackLoop, defaultConfidence float64, logger *logrus.Logger) *ConfidenceStore {
	if logger == nil {
		logger = logrus.New()
	}
	if math.IsNaN(defaultConfidence) || defaultConfidence < 0 || defaultConfidence > 1 {
		defaultConfidence = defaultTenantConfidence
	}
	return &ConfidenceStore{
		store:             store,
		loop:              loop,
		defaultConfidence: defaultConfidence,
		locks:             newKeyedMutex(),
		tracer:            telemetry.NewBusinessTracer(),
		logger:            logger,
	}
}

func confidenceKey(tenantID string) string {
	return confidenceKeyPrefix + tenantID
}

// Get returns the tenant's confidence, or the default when none is stored.
func (c *ConfidenceStore) Get(ctx context.Context, tenantID string) (float64, error) {
	if tenantID == "" {
		return 0, utils.NewFieldValidationError("tenant_id", "must not be empty")
	}
	return c.load(ctx, tenantID)
}

func (c *ConfidenceStore) load(ctx context.Context, tenantID string) (float64, error) {
	raw, ok, err := c.store.Get(ctx, confidenceKey(tenantID))
	if err != nil {
		return 0, fmt.Errorf("load confidence for %s: %w", tenantID, err)
	}
	if !ok {
		return c.defaultConfidence, nil
	}
	var sc storedConfidence
	if err := json.Unmarshal(raw, &sc); err != nil {
		return 0, fmt.Errorf("decode confidence for %s: %w", tenantID, err)
	}
	return utils.Clamp01(sc.Confidence), nil
}

// RecalibrateTenant runs one feedback batch against the tenant's stored
// confidence and persists the result. The PreviousConfidence of req is
// replaced by the stored value. Concurrent calls for the same tenant are
// applied one after another; a rejected batch leaves the stored value alone.
func (c *ConfidenceStore) RecalibrateTenant(ctx context.Context, tenantID string, req models.RecalibrationRequest) (*models.RecalibrationResult, error) {
	if tenantID == "" {
		return nil, utils.NewFieldValidationError("tenant_id", "must not be empty")
	}

	ctx, span := c.tracer.TraceRecalibration(ctx, tenantID, len(req.ForecastRecords))
	defer span.End()

	unlock := c.locks.Lock(tenantID)
	defer unlock()

	prev, err := c.load(ctx, tenantID)
	if err != nil {
		c.tracer.RecordError(span, err)
		return nil, err
	}
	req.PreviousConfidence = prev

	result, err := c.loop.Recalibrate(req)
	if err != nil {
		c.tracer.RecordError(span, err)
		return nil, err
	}
	result.TenantID = tenantID

	payload, err := json.Marshal(storedConfidence{Confidence: result.NewConfidence, UpdatedAt: result.RecalibratedAt})
	if err != nil {
		return nil, fmt.Errorf("encode confidence for %s: %w", tenantID, err)
	}
	if err := c.store.Set(ctx, confidenceKey(tenantID), payload, 0); err != nil {
		c.tracer.RecordError(span, err)
		return nil, fmt.Errorf("store confidence for %s: %w", tenantID, err)
	}

	c.tracer.RecordRecalibration(span, prev, result.NewConfidence, result.MAPE)
	c.loop.metrics.Recalibrated(tenantID, string(result.RecalibrationType), result.MAPE, result.NewConfidence)

	c.logger.WithFields(logrus.Fields{
		"tenant_id":          tenantID,
		"previous":           prev,
		"new":                result.NewConfidence,
		"mape":               result.MAPE,
		"recalibration_type": result.RecalibrationType,
	}).Info("Tenant confidence recalibrated")

	return result, nil
}
