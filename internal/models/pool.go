package models

import (
	"time"

	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/shopspring/decimal"
)

// PooledResult is a cached acquisition result shared by every consumer in a geography.
type PooledResult struct {
	GeoKey        string    `json:"geo_key"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	BaseScore     float64   `json:"base_score"`
	VarianceBound float64   `json:"variance_bound"`
	CachedAt      time.Time `json:"cached_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	QueryCount    int64     `json:"query_count"`
}

// Expired reports whether the entry is past its expiry at now.
func (p PooledResult) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// CostSavings is the derived cost accounting for a pooled entry.
type CostSavings struct {
	CostPerQuery      decimal.Decimal `json:"cost_per_query"`
	QueryCount        int64           `json:"query_count"`
	WithoutPooling    decimal.Decimal `json:"without_pooling"`
	Saved             decimal.Decimal `json:"saved"`
	SavingsPercentage float64         `json:"savings_percentage"`
}

// PoolResponse is what a pool consumer receives.
type PoolResponse struct {
	GeoKey      string                   `json:"geo_key"`
	Score       float64                  `json:"score"`
	IsFromPool  bool                     `json:"is_from_pool"`
	QueryCount  int64                    `json:"query_count"`
	ExpiresAt   time.Time                `json:"expires_at"`
	CostSavings CostSavings              `json:"cost_savings"`
	Warnings    []utils.StaleDataWarning `json:"warnings,omitempty"`
}

// PoolStats summarizes pool state and activity since process start.
type PoolStats struct {
	Entries           int             `json:"entries"`
	LiveEntries       int             `json:"live_entries"`
	ExpiredEntries    int             `json:"expired_entries"`
	TotalQueries      int64           `json:"total_queries"`
	Hits              int64           `json:"hits"`
	Misses            int64           `json:"misses"`
	Acquisitions      int64           `json:"acquisitions"`
	AcquisitionErrors int64           `json:"acquisition_errors"`
	HitRate           float64         `json:"hit_rate"`
	TotalSavings      decimal.Decimal `json:"total_savings"`
	AverageQueries    float64         `json:"average_queries_per_entry"`
}
