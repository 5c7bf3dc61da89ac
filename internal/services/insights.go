package services

import (
	"fmt"
	"strings"

	"github.com/irfndi/dealer-trust-engine/internal/models"
)

const (
	strengthThreshold   = 85.0
	weakSignalThreshold = 0.70
	dtriRiskThreshold   = 60.0
)

// Thresholds on the 0-100 scale below which a composite needs attention.
// QAI is compared after scaling by 100.
var attentionThresholds = map[models.CompositeKind]float64{
	models.CompositeTrust: 70,
	models.CompositeQAI:   70,
	models.CompositePIQR:  70,
	models.CompositeAVI:   60,
}

var compositeLabels = map[models.CompositeKind]string{
	models.CompositeTrust: "Trust",
	models.CompositeQAI:   "QAI",
	models.CompositePIQR:  "PIQR",
	models.CompositeAVI:   "AVI",
}

var compositeRecommendations = map[models.CompositeKind]string{
	models.CompositeTrust: "Prioritize reputation and compliance fixes before expanding ad spend",
	models.CompositeQAI:   "Strengthen authority signals with expert-authored, well-structured content",
	models.CompositePIQR:  "Raise platform inclusion quality by fixing listing coverage and consistency",
	models.CompositeAVI:   "Invest in answer-engine and generative-engine visibility",
}

var signalRecommendations = map[models.CompositeKind]map[string]string{
	models.CompositeTrust: {
		"eeat":       "Publish expert-authored content with visible author credentials",
		"reputation": "Increase review velocity and respond to negative reviews within 24 hours",
		"technical":  "Fix Core Web Vitals and crawl errors on inventory pages",
		"localVis":   "Complete and sync Google Business Profile listings",
		"compliance": "Audit advertised pricing and disclosures for compliance",
	},
	models.CompositeQAI: {
		"authority":  "Earn citations from authoritative automotive publishers",
		"trust":      "Add trust markers such as certifications and warranties to key pages",
		"experience": "Showcase first-hand ownership and service experience content",
		"recency":    "Refresh inventory and content on a weekly cadence",
		"structure":  "Add schema.org structured data to vehicle and service pages",
	},
	models.CompositePIQR: {
		"visibility":  "Expand listing coverage across third-party platforms",
		"ux":          "Improve listing photos and vehicle detail page experience",
		"consistency": "Align name, address and pricing across every platform",
		"sentiment":   "Address recurring complaint themes surfaced in reviews",
		"compliance":  "Correct listings flagged for platform policy violations",
	},
	models.CompositeAVI: {
		"seo": "Close technical SEO gaps on high-intent inventory queries",
		"aeo": "Add answer-ready FAQ content for AI assistants",
		"geo": "Publish entity-rich pages that generative engines can cite",
		"ugc": "Encourage customer photos and video reviews",
	},
}

var verticalRecommendations = map[models.Vertical]map[models.CompositeKind]string{
	models.VerticalAcquisition: {
		models.CompositeTrust: "Protect sales lead flow by resolving reputation issues on high-traffic listings",
		models.CompositeQAI:   "Publish model comparison and buying-guide content to win research-stage shoppers",
		models.CompositePIQR:  "Syndicate complete inventory with pricing to every marketplace",
		models.CompositeAVI:   "Answer financing and trade-in questions where AI assistants source them",
	},
	models.VerticalService: {
		models.CompositeTrust: "Follow up every service visit with a review request and resolve open complaints",
		models.CompositeQAI:   "Document maintenance procedures and technician expertise on service pages",
		models.CompositePIQR:  "Keep service menus, hours and booking links consistent across platforms",
		models.CompositeAVI:   "Answer common repair and maintenance questions for voice and AI search",
	},
	models.VerticalParts: {
		models.CompositeTrust: "Publish fitment guarantees and return policies on parts listings",
		models.CompositeQAI:   "Add OEM part numbers and compatibility data to every parts page",
		models.CompositePIQR:  "Sync parts catalog availability across marketplaces",
		models.CompositeAVI:   "Structure parts fitment data so AI shopping assistants can cite it",
	},
}

// scoreOn100 returns the composite value on the 0-100 scale.
func scoreOn100(kind models.CompositeKind, value float64) float64 {
	if kind == models.CompositeQAI {
		return value * 100
	}
	return value
}

// compositeInsights derives insights and recommendations for one composite.
// Iteration follows key order so output is reproducible.
func compositeInsights(kind models.CompositeKind, value float64, keys []string, normalized map[string]float64) ([]string, []string) {
	insights := []string{}
	recommendations := []string{}
	label := compositeLabels[kind]
	score := scoreOn100(kind, value)

	if threshold := attentionThresholds[kind]; score < threshold {
		insights = append(insights, fmt.Sprintf("%s score %.1f is below the %.0f attention threshold", label, score, threshold))
		recommendations = append(recommendations, compositeRecommendations[kind])
	} else if score >= strengthThreshold {
		insights = append(insights, fmt.Sprintf("%s score %.1f is a competitive strength", label, score))
	}

	weakest := ""
	weakestValue := 0.0
	for _, k := range keys {
		v := normalized[k]
		if weakest == "" || v < weakestValue {
			weakest = k
			weakestValue = v
		}
	}
	if weakest != "" && weakestValue < weakSignalThreshold {
		insights = append(insights, fmt.Sprintf("Weakest %s signal is %s at %.2f", label, weakest, weakestValue))
		if rec, ok := signalRecommendations[kind][weakest]; ok {
			recommendations = append(recommendations, rec)
		}
	}

	return insights, recommendations
}

// bundleInsights derives the DTRI-level insights for a vertical.
func bundleInsights(vertical models.Vertical, dtri float64, scores map[models.CompositeKind]float64) ([]string, []string) {
	insights := []string{}
	recommendations := []string{}
	name := strings.ToUpper(string(vertical[:1])) + string(vertical[1:])

	for _, kind := range models.CompositeKinds {
		score := scoreOn100(kind, scores[kind])
		threshold := attentionThresholds[kind]
		if score < threshold {
			insights = append(insights, fmt.Sprintf("%s below %.0f (%.1f) in %s", compositeLabels[kind], threshold, score, vertical))
			recommendations = append(recommendations, verticalRecommendations[vertical][kind])
		}
	}

	switch {
	case dtri >= strengthThreshold:
		insights = append(insights, fmt.Sprintf("%s DTRI %.1f is a strong trust position", name, dtri))
	case dtri < dtriRiskThreshold:
		insights = append(insights, fmt.Sprintf("%s DTRI %.1f puts revenue at risk", name, dtri))
		recommendations = append(recommendations, fmt.Sprintf("Escalate a %s trust recovery plan to the general manager", vertical))
	}

	return insights, dedupe(recommendations)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
