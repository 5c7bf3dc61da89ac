package models

import "github.com/shopspring/decimal"

// PulseKind is the category of a recommendation.
type PulseKind string

const (
	PulseReputation  PulseKind = "reputation"
	PulseVisibility  PulseKind = "visibility"
	PulseCompliance  PulseKind = "compliance"
	PulseInventory   PulseKind = "inventory"
	PulseService     PulseKind = "service"
	PulseCompetitive PulseKind = "competitive"
	PulseContent     PulseKind = "content"
)

// Priority is an optional urgency tag on a pulse.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Role is the dashboard consumer a ranking is tailored to.
type Role string

const (
	RoleGM        Role = "gm"
	RoleMarketing Role = "marketing"
	RoleSales     Role = "sales"
	RoleService   Role = "service"
	RoleParts     Role = "parts"
)

// Pulse is a candidate recommendation produced by an upstream detector.
type Pulse struct {
	ID               string          `json:"id"`
	Kind             PulseKind       `json:"kind"`
	Title            string          `json:"title,omitempty"`
	ImpactMonthlyUSD decimal.Decimal `json:"impact_monthly_usd"`
	ETASeconds       int64           `json:"eta_seconds"`
	Confidence       float64         `json:"confidence"`
	RecencyMinutes   int64           `json:"recency_minutes"`
	Priority         Priority        `json:"priority,omitempty"`
}

// ScoreBreakdown shows each weighted term of a pulse score.
type ScoreBreakdown struct {
	RoleWeight   float64 `json:"role_weight"`
	ImpactScore  float64 `json:"impact_score"`
	Confidence   float64 `json:"confidence"`
	RecencyScore float64 `json:"recency_score"`
	ETAScore     float64 `json:"eta_score"`
	Multiplier   float64 `json:"multiplier"`
}

// RankedPulse is a pulse with its computed score.
type RankedPulse struct {
	Pulse
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// PulseSummary aggregates a pulse collection.
type PulseSummary struct {
	Count          int               `json:"count"`
	TotalImpact    decimal.Decimal   `json:"total_impact"`
	MeanConfidence float64           `json:"mean_confidence"`
	MeanETASeconds float64           `json:"mean_eta_seconds"`
	ByPriority     map[Priority]int  `json:"by_priority"`
	ByKind         map[PulseKind]int `json:"by_kind"`
}

// KindGroup is one bucket of GroupByKind output, in first-seen order.
type KindGroup struct {
	Kind   PulseKind `json:"kind"`
	Pulses []Pulse   `json:"pulses"`
}
