package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/irfndi/dealer-trust-engine/internal/metrics"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/telemetry"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/irfndi/dealer-trust-engine/pkg/interfaces"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
)

const (
	geoPoolKeyPrefix  = "geo_pool:"
	defaultPoolTTL    = 24 * time.Hour
	nearExpiryShare   = 0.10
	defaultPoolCostPQ = "0.015"
)

// AcquireFunc performs the expensive external probe for a geography and
// returns its base score on the 0-100 scale.
type AcquireFunc func(ctx context.Context, city, state string) (float64, error)

// GeoPoolConfig configures a GeoQueryPool.
type GeoPoolConfig struct {
	TTL          time.Duration
	CostPerQuery decimal.Decimal
}

// GeoQueryPool shares one acquisition per geography among all consumers
// until the entry expires. Hits get bounded per-call variance so consumers
// in the same market do not see identical scores.
//
// Writes are serialized per geo key, and concurrent misses for the same key
// share one in-flight acquisition. Expired entries stay in the store until
// ClearExpired is called.
type GeoQueryPool struct {
	store    interfaces.KeyValueStore
	acquire  AcquireFunc
	variance VarianceFunc
	ttl      time.Duration
	cost     decimal.Decimal
	now      func() time.Time

	locks  *keyedMutex
	flight singleflight.Group
	fold   cases.Caser
	foldMu sync.Mutex

	hits         atomic.Int64
	misses       atomic.Int64
	acquisitions atomic.Int64
	acquireErrs  atomic.Int64
	savingsMu    sync.Mutex
	savings      decimal.Decimal

	logger  *logrus.Logger
	metrics *metrics.Collector
	tracer  *telemetry.BusinessTracer
}

// NewGeoQueryPool creates a pool. A zero TTL uses 24h and a zero cost uses
// $0.015 per query. variance may be nil, in which case hits return the base
// score unchanged.
func NewGeoQueryPool(cfg GeoPoolConfig, store interfaces.KeyValueStore, acquire AcquireFunc, variance VarianceFunc, logger *logrus.Logger, collector *metrics.Collector) *GeoQueryPool {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPoolTTL
	}
	if cfg.CostPerQuery.IsZero() || cfg.CostPerQuery.IsNegative() {
		cfg.CostPerQuery = decimal.RequireFromString(defaultPoolCostPQ)
	}
	if variance == nil {
		variance = NoVariance
	}
	return &GeoQueryPool{
		store:    store,
		acquire:  acquire,
		variance: variance,
		ttl:      cfg.TTL,
		cost:     cfg.CostPerQuery,
		now:      time.Now,
		locks:    newKeyedMutex(),
		fold:     cases.Fold(),
		savings:  decimal.Zero,
		logger:   logger,
		metrics:  collector,
		tracer:   telemetry.NewBusinessTracer(),
	}
}

// GeoKey normalizes a (city, state) pair: city is trimmed and case-folded,
// state is trimmed and upper-cased.
func (p *GeoQueryPool) GeoKey(city, state string) string {
	p.foldMu.Lock()
	c := p.fold.String(strings.Join(strings.Fields(city), " "))
	p.foldMu.Unlock()
	return geoPoolKeyPrefix + c + "|" + strings.ToUpper(strings.TrimSpace(state))
}

// Get returns the pooled score for (city, state) using the pool's variance
// source.
func (p *GeoQueryPool) Get(ctx context.Context, city, state string) (*models.PoolResponse, error) {
	return p.get(ctx, city, state, p.variance)
}

// GetWithVariance is Get with a caller-chosen variance source, typically one
// bound to a consumer.
func (p *GeoQueryPool) GetWithVariance(ctx context.Context, city, state string, variance VarianceFunc) (*models.PoolResponse, error) {
	if variance == nil {
		variance = p.variance
	}
	return p.get(ctx, city, state, variance)
}

func (p *GeoQueryPool) get(ctx context.Context, city, state string, variance VarianceFunc) (*models.PoolResponse, error) {
	if strings.TrimSpace(city) == "" {
		return nil, utils.NewFieldValidationError("city", "must not be empty")
	}
	if strings.TrimSpace(state) == "" {
		return nil, utils.NewFieldValidationError("state", "must not be empty")
	}
	key := p.GeoKey(city, state)

	ctx, span := p.tracer.TracePoolLookup(ctx, key)
	defer span.End()

	resp, ok, err := p.tryHit(ctx, key, variance)
	if err != nil {
		p.tracer.RecordError(span, err)
		return nil, err
	}
	if ok {
		p.tracer.RecordPoolResult(span, true, resp.QueryCount, resp.Score)
		return resp, nil
	}

	// Only the caller whose closure runs becomes the leader; everyone else
	// waiting on the same key reads the fresh entry as a pooled hit.
	led := false
	ch := p.flight.DoChan(key, func() (interface{}, error) {
		led = true
		return p.populate(context.WithoutCancel(ctx), key, city, state)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		p.tracer.RecordError(span, res.Err)
		return nil, res.Err
	}

	populated := res.Val.(*populateResult)
	if led && populated.fresh {
		p.misses.Add(1)
		p.metrics.PoolRequest(metrics.PoolResultMiss)
		resp := p.response(populated.entry, populated.entry.BaseScore, false)
		p.tracer.RecordPoolResult(span, false, resp.QueryCount, resp.Score)
		return resp, nil
	}

	resp, ok, err = p.tryHit(ctx, key, variance)
	if err != nil {
		p.tracer.RecordError(span, err)
		return nil, err
	}
	if !ok {
		// The shared entry expired before this caller could read it.
		return nil, fmt.Errorf("geo pool entry %s expired during acquisition", key)
	}
	p.tracer.RecordPoolResult(span, true, resp.QueryCount, resp.Score)
	return resp, nil
}

type populateResult struct {
	entry models.PooledResult
	fresh bool
}

// populate acquires and stores a fresh entry unless a concurrent flight has
// already stored a live one.
func (p *GeoQueryPool) populate(ctx context.Context, key, city, state string) (*populateResult, error) {
	unlock := p.locks.Lock(key)
	existing, ok, err := p.load(ctx, key)
	unlock()
	if err != nil {
		return nil, err
	}
	if ok && !existing.Expired(p.now()) {
		return &populateResult{entry: existing}, nil
	}

	actx, span := p.tracer.TracePoolAcquisition(ctx, city, state)
	base, err := p.acquire(actx, city, state)
	if err != nil {
		p.acquireErrs.Add(1)
		p.metrics.PoolAcquisitionError()
		p.tracer.RecordError(span, err)
		span.End()
		p.logger.WithFields(logrus.Fields{
			"geo_key": key,
			"error":   err.Error(),
		}).Warn("Geo pool acquisition failed")
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	span.End()
	p.acquisitions.Add(1)

	if !isFinite(base) {
		return nil, fmt.Errorf("acquire %s: non-finite base score %v", key, base)
	}
	base = utils.Clamp(base, 0, 100)

	now := p.now()
	entry := models.PooledResult{
		GeoKey:        key,
		City:          strings.TrimSpace(city),
		State:         strings.ToUpper(strings.TrimSpace(state)),
		BaseScore:     base,
		VarianceBound: VarianceBound(base),
		CachedAt:      now,
		ExpiresAt:     now.Add(p.ttl),
		QueryCount:    1,
	}

	unlock = p.locks.Lock(key)
	defer unlock()
	if err := p.save(ctx, entry); err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"geo_key":    key,
		"base_score": base,
		"expires_at": entry.ExpiresAt,
	}).Info("Geo pool entry acquired")

	return &populateResult{entry: entry, fresh: true}, nil
}

// tryHit serves a live entry, incrementing its query count under the key lock.
func (p *GeoQueryPool) tryHit(ctx context.Context, key string, variance VarianceFunc) (*models.PoolResponse, bool, error) {
	unlock := p.locks.Lock(key)
	defer unlock()

	entry, ok, err := p.load(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok || entry.Expired(p.now()) {
		return nil, false, nil
	}

	entry.QueryCount++
	if err := p.save(ctx, entry); err != nil {
		return nil, false, err
	}

	score := utils.Clamp(entry.BaseScore+variance(entry.BaseScore, entry.VarianceBound), 0, 100)
	resp := p.response(entry, score, true)

	p.hits.Add(1)
	p.metrics.PoolRequest(metrics.PoolResultHit)
	saved, _ := p.cost.Float64()
	p.metrics.PoolSavings(saved)
	p.savingsMu.Lock()
	p.savings = p.savings.Add(p.cost)
	p.savingsMu.Unlock()

	if len(resp.Warnings) > 0 {
		p.logger.WithFields(logrus.Fields{
			"geo_key":    key,
			"expires_at": entry.ExpiresAt,
		}).Warn("Geo pool entry served near expiry")
	}
	return resp, true, nil
}

func (p *GeoQueryPool) response(entry models.PooledResult, score float64, fromPool bool) *models.PoolResponse {
	resp := &models.PoolResponse{
		GeoKey:      entry.GeoKey,
		Score:       utils.RoundTo(score, 1),
		IsFromPool:  fromPool,
		QueryCount:  entry.QueryCount,
		ExpiresAt:   entry.ExpiresAt,
		CostSavings: CostSavingsFor(entry.QueryCount, p.cost),
	}
	if remaining := entry.ExpiresAt.Sub(p.now()); remaining < time.Duration(float64(p.ttl)*nearExpiryShare) {
		resp.Warnings = append(resp.Warnings, utils.NewStaleDataWarning(utils.WarningNearExpiry, entry.GeoKey,
			fmt.Sprintf("pooled result expires in %s", remaining.Round(time.Second))))
	}
	return resp
}

// CostSavingsFor prices queryCount lookups served by one acquisition.
func CostSavingsFor(queryCount int64, costPerQuery decimal.Decimal) models.CostSavings {
	if queryCount < 1 {
		queryCount = 1
	}
	without := costPerQuery.Mul(decimal.NewFromInt(queryCount))
	saved := costPerQuery.Mul(decimal.NewFromInt(queryCount - 1))
	pct := 0.0
	if without.IsPositive() {
		pct, _ = saved.Div(without).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	}
	return models.CostSavings{
		CostPerQuery:      costPerQuery,
		QueryCount:        queryCount,
		WithoutPooling:    without,
		Saved:             saved,
		SavingsPercentage: pct,
	}
}

// Stats reports entry counts from the store and activity counters since the
// pool was created.
func (p *GeoQueryPool) Stats(ctx context.Context) (*models.PoolStats, error) {
	keys, err := p.store.Keys(ctx, geoPoolKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list geo pool keys: %w", err)
	}

	stats := &models.PoolStats{
		Hits:              p.hits.Load(),
		Misses:            p.misses.Load(),
		Acquisitions:      p.acquisitions.Load(),
		AcquisitionErrors: p.acquireErrs.Load(),
	}
	now := p.now()
	for _, key := range keys {
		entry, ok, err := p.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		stats.Entries++
		stats.TotalQueries += entry.QueryCount
		if entry.Expired(now) {
			stats.ExpiredEntries++
		} else {
			stats.LiveEntries++
		}
	}
	if stats.Entries > 0 {
		stats.AverageQueries = utils.RoundTo(float64(stats.TotalQueries)/float64(stats.Entries), 2)
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = utils.RoundTo(float64(stats.Hits)/float64(total), 4)
	}
	p.savingsMu.Lock()
	stats.TotalSavings = p.savings
	p.savingsMu.Unlock()
	return stats, nil
}

// ClearExpired deletes every expired entry and returns how many were removed.
func (p *GeoQueryPool) ClearExpired(ctx context.Context) (int, error) {
	keys, err := p.store.Keys(ctx, geoPoolKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list geo pool keys: %w", err)
	}

	removed := 0
	for _, key := range keys {
		ok, err := p.clearIfExpired(ctx, key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}

	p.metrics.PoolEvictions(removed)
	if removed > 0 {
		p.logger.WithField("removed", removed).Info("Cleared expired geo pool entries")
	}
	return removed, nil
}

func (p *GeoQueryPool) clearIfExpired(ctx context.Context, key string) (bool, error) {
	unlock := p.locks.Lock(key)
	defer unlock()

	entry, ok, err := p.load(ctx, key)
	if err != nil || !ok || !entry.Expired(p.now()) {
		return false, err
	}
	if err := p.store.Delete(ctx, key); err != nil {
		return false, fmt.Errorf("delete geo pool entry %s: %w", key, err)
	}
	return true, nil
}

func (p *GeoQueryPool) load(ctx context.Context, key string) (models.PooledResult, bool, error) {
	raw, ok, err := p.store.Get(ctx, key)
	if err != nil || !ok {
		return models.PooledResult{}, false, err
	}
	var entry models.PooledResult
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.PooledResult{}, false, fmt.Errorf("decode geo pool entry %s: %w", key, err)
	}
	return entry, true, nil
}

// save writes without a store TTL; expiry is decided by ExpiresAt so that
// expired entries remain visible to Stats until swept.
func (p *GeoQueryPool) save(ctx context.Context, entry models.PooledResult) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode geo pool entry %s: %w", entry.GeoKey, err)
	}
	if err := p.store.Set(ctx, entry.GeoKey, raw, 0); err != nil {
		return fmt.Errorf("store geo pool entry %s: %w", entry.GeoKey, err)
	}
	return nil
}
