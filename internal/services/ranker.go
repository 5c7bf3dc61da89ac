package services

import (
	"math"
	"sort"

	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/shopspring/decimal"
)

const (
	impactFullScaleUSD  = 50000.0
	recencyHorizonMin   = 10080.0 // 7 days
	etaHorizonSeconds   = 28800.0 // 8 hours
	defaultRoleWeight   = 0.5
	roleWeightShare     = 0.3
	impactShare         = 0.3
	confidenceShare     = 0.2
	recencyShare        = 0.1
	etaShare            = 0.1
	defaultPriorityMult = 1.0
)

var priorityMultipliers = map[models.Priority]float64{
	models.PriorityCritical: 1.5,
	models.PriorityHigh:     1.2,
	models.PriorityMedium:   1.0,
	models.PriorityLow:      0.8,
}

// defaultRoleWeights express how relevant each pulse kind is to a role.
var defaultRoleWeights = map[models.Role]map[models.PulseKind]float64{
	models.RoleGM: {
		models.PulseReputation:  0.9,
		models.PulseVisibility:  0.8,
		models.PulseCompliance:  1.0,
		models.PulseInventory:   0.7,
		models.PulseService:     0.7,
		models.PulseCompetitive: 0.9,
		models.PulseContent:     0.5,
	},
	models.RoleMarketing: {
		models.PulseReputation:  0.8,
		models.PulseVisibility:  1.0,
		models.PulseCompliance:  0.6,
		models.PulseInventory:   0.5,
		models.PulseService:     0.3,
		models.PulseCompetitive: 0.8,
		models.PulseContent:     1.0,
	},
	models.RoleSales: {
		models.PulseReputation:  0.7,
		models.PulseVisibility:  0.6,
		models.PulseCompliance:  0.5,
		models.PulseInventory:   1.0,
		models.PulseService:     0.2,
		models.PulseCompetitive: 0.8,
		models.PulseContent:     0.4,
	},
	models.RoleService: {
		models.PulseReputation:  0.8,
		models.PulseVisibility:  0.5,
		models.PulseCompliance:  0.6,
		models.PulseInventory:   0.2,
		models.PulseService:     1.0,
		models.PulseCompetitive: 0.4,
		models.PulseContent:     0.4,
	},
	models.RoleParts: {
		models.PulseReputation:  0.5,
		models.PulseVisibility:  0.5,
		models.PulseCompliance:  0.5,
		models.PulseInventory:   0.9,
		models.PulseService:     0.7,
		models.PulseCompetitive: 0.5,
		models.PulseContent:     0.3,
	},
}

// PriorityRanker orders pulses for a role. It never modifies its input.
type PriorityRanker struct {
	weights map[models.Role]map[models.PulseKind]float64
}

// NewPriorityRanker creates a ranker with the built-in role table. Entries in
// overrides replace individual role/kind weights; values are clamped to [0,1].
func NewPriorityRanker(overrides map[models.Role]map[models.PulseKind]float64) *PriorityRanker {
	weights := make(map[models.Role]map[models.PulseKind]float64, len(defaultRoleWeights))
	for role, kinds := range defaultRoleWeights {
		weights[role] = make(map[models.PulseKind]float64, len(kinds))
		for kind, w := range kinds {
			weights[role][kind] = w
		}
	}
	for role, kinds := range overrides {
		if weights[role] == nil {
			weights[role] = make(map[models.PulseKind]float64, len(kinds))
		}
		for kind, w := range kinds {
			weights[role][kind] = math.Max(0, math.Min(1, w))
		}
	}
	return &PriorityRanker{weights: weights}
}

// RoleWeight returns the relevance of kind to role, 0.5 when unlisted.
func (r *PriorityRanker) RoleWeight(role models.Role, kind models.PulseKind) float64 {
	if w, ok := r.weights[role][kind]; ok {
		return w
	}
	return defaultRoleWeight
}

// ScoreBreakdown returns the weighted terms behind a pulse's score.
func (r *PriorityRanker) ScoreBreakdown(p models.Pulse, role models.Role) models.ScoreBreakdown {
	impact, _ := p.ImpactMonthlyUSD.Float64()
	mult, ok := priorityMultipliers[p.Priority]
	if !ok {
		mult = defaultPriorityMult
	}
	return models.ScoreBreakdown{
		RoleWeight:   r.RoleWeight(role, p.Kind),
		ImpactScore:  math.Max(0, math.Min(impact/impactFullScaleUSD, 1)),
		Confidence:   math.Max(0, math.Min(p.Confidence, 1)),
		RecencyScore: math.Max(0, 1-float64(p.RecencyMinutes)/recencyHorizonMin),
		ETAScore:     math.Max(0, 1-float64(p.ETASeconds)/etaHorizonSeconds),
		Multiplier:   mult,
	}
}

// Score computes the composite ranking score of p for role.
func (r *PriorityRanker) Score(p models.Pulse, role models.Role) float64 {
	b := r.ScoreBreakdown(p, role)
	return (b.RoleWeight*roleWeightShare +
		b.ImpactScore*impactShare +
		b.Confidence*confidenceShare +
		b.RecencyScore*recencyShare +
		b.ETAScore*etaShare) * b.Multiplier
}

// RankWithScores returns pulses sorted by descending score. Equal scores keep
// their input order.
func (r *PriorityRanker) RankWithScores(pulses []models.Pulse, role models.Role) []models.RankedPulse {
	ranked := make([]models.RankedPulse, len(pulses))
	for i, p := range pulses {
		ranked[i] = models.RankedPulse{
			Pulse:     p,
			Score:     r.Score(p, role),
			Breakdown: r.ScoreBreakdown(p, role),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Rank returns a reordered copy of pulses for role.
func (r *PriorityRanker) Rank(pulses []models.Pulse, role models.Role) []models.Pulse {
	ranked := r.RankWithScores(pulses, role)
	out := make([]models.Pulse, len(ranked))
	for i, rp := range ranked {
		out[i] = rp.Pulse
	}
	return out
}

// GetTop returns at most limit of the highest-ranked pulses. A non-positive
// limit returns an empty slice.
func (r *PriorityRanker) GetTop(pulses []models.Pulse, role models.Role, limit int) []models.Pulse {
	if limit <= 0 {
		return []models.Pulse{}
	}
	ranked := r.Rank(pulses, role)
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

// FilterByKinds keeps pulses whose kind is in kinds, preserving order.
func FilterByKinds(pulses []models.Pulse, kinds ...models.PulseKind) []models.Pulse {
	allowed := make(map[models.PulseKind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	out := make([]models.Pulse, 0, len(pulses))
	for _, p := range pulses {
		if _, ok := allowed[p.Kind]; ok {
			out = append(out, p)
		}
	}
	return out
}

// FilterByMinImpact keeps pulses whose monthly impact is at least threshold.
func FilterByMinImpact(pulses []models.Pulse, threshold decimal.Decimal) []models.Pulse {
	out := make([]models.Pulse, 0, len(pulses))
	for _, p := range pulses {
		if p.ImpactMonthlyUSD.GreaterThanOrEqual(threshold) {
			out = append(out, p)
		}
	}
	return out
}

// GroupByKind buckets pulses by kind. Groups appear in the order their kind
// is first seen and keep input order within a group.
func GroupByKind(pulses []models.Pulse) []models.KindGroup {
	index := make(map[models.PulseKind]int)
	groups := make([]models.KindGroup, 0)
	for _, p := range pulses {
		i, ok := index[p.Kind]
		if !ok {
			i = len(groups)
			index[p.Kind] = i
			groups = append(groups, models.KindGroup{Kind: p.Kind})
		}
		groups[i].Pulses = append(groups[i].Pulses, p)
	}
	return groups
}

// TotalImpact sums monthly impact.
func TotalImpact(pulses []models.Pulse) decimal.Decimal {
	total := decimal.Zero
	for _, p := range pulses {
		total = total.Add(p.ImpactMonthlyUSD)
	}
	return total
}

// SummarizePulses aggregates a collection. Pulses without a priority tag are
// counted as medium.
func SummarizePulses(pulses []models.Pulse) models.PulseSummary {
	s := models.PulseSummary{
		Count:       len(pulses),
		TotalImpact: TotalImpact(pulses),
		ByPriority:  make(map[models.Priority]int),
		ByKind:      make(map[models.PulseKind]int),
	}
	if len(pulses) == 0 {
		return s
	}
	var conf, eta float64
	for _, p := range pulses {
		conf += p.Confidence
		eta += float64(p.ETASeconds)
		prio := p.Priority
		if prio == "" {
			prio = models.PriorityMedium
		}
		s.ByPriority[prio]++
		s.ByKind[p.Kind]++
	}
	n := float64(len(pulses))
	s.MeanConfidence = conf / n
	s.MeanETASeconds = eta / n
	return s
}
