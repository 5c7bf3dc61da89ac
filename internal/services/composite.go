package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/irfndi/dealer-trust-engine/internal/metrics"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CompositeCalculator turns normalized sub-signals into composite index scores.
// It holds no mutable state and is safe for concurrent use.
type CompositeCalculator struct {
	logger  *logrus.Logger
	metrics *metrics.Collector
}

// NewCompositeCalculator creates a calculator. metrics may be nil.
func NewCompositeCalculator(logger *logrus.Logger, collector *metrics.Collector) *CompositeCalculator {
	if logger == nil {
		logger = logrus.New()
	}
	return &CompositeCalculator{
		logger:  logger,
		metrics: collector,
	}
}

// compositeScale returns the multiplier and rounding precision of a composite.
func compositeScale(kind models.CompositeKind) (float64, int32) {
	switch kind {
	case models.CompositeTrust:
		return 100, 2
	case models.CompositeQAI:
		return 1, 2
	default:
		return 100, 1
	}
}

// ComputeComposite scores inputs with the default weight table of kind.
func (c *CompositeCalculator) ComputeComposite(kind models.CompositeKind, inputs models.SignalInputs) (*models.CompositeScore, error) {
	weights, ok := defaultWeights[kind]
	if !ok {
		return nil, utils.NewFieldValidationError("kind", fmt.Sprintf("unknown composite %q", kind))
	}
	return c.compute(kind, "", weights, inputs), nil
}

// ComputeCompositeForVertical scores inputs with the vertical-specific table.
// An empty vertical falls back to the default table.
func (c *CompositeCalculator) ComputeCompositeForVertical(kind models.CompositeKind, vertical models.Vertical, inputs models.SignalInputs) (*models.CompositeScore, error) {
	if vertical == "" {
		return c.ComputeComposite(kind, inputs)
	}
	tables, ok := verticalWeights[vertical]
	if !ok {
		return nil, utils.NewFieldValidationError("vertical", fmt.Sprintf("unknown vertical %q", vertical))
	}
	weights, ok := tables[kind]
	if !ok {
		return nil, utils.NewFieldValidationError("kind", fmt.Sprintf("unknown composite %q", kind))
	}
	return c.compute(kind, vertical, weights, inputs), nil
}

// ComputeVerticalBundle computes all four composites for a vertical and rolls
// them up into the DTRI score.
func (c *CompositeCalculator) ComputeVerticalBundle(inputs models.BundleInputs, vertical models.Vertical) (*models.VerticalBundle, error) {
	tables, ok := verticalWeights[vertical]
	if !ok {
		return nil, utils.NewFieldValidationError("vertical", fmt.Sprintf("unknown vertical %q", vertical))
	}

	trust := c.compute(models.CompositeTrust, vertical, tables[models.CompositeTrust], inputs.Trust)
	qai := c.compute(models.CompositeQAI, vertical, tables[models.CompositeQAI], inputs.QAI)
	piqr := c.compute(models.CompositePIQR, vertical, tables[models.CompositePIQR], inputs.PIQR)
	avi := c.compute(models.CompositeAVI, vertical, tables[models.CompositeAVI], inputs.AVI)

	scores := map[models.CompositeKind]float64{
		models.CompositeTrust: trust.Value,
		models.CompositeQAI:   qai.Value,
		models.CompositePIQR:  piqr.Value,
		models.CompositeAVI:   avi.Value,
	}

	dtriTable := dtriWeights[vertical]
	sum := decimal.Zero
	for _, key := range dtriTable.Keys {
		kind := models.CompositeKind(key)
		w := decimal.NewFromFloat(dtriTable.Weights[key])
		sum = sum.Add(w.Mul(decimal.NewFromFloat(scoreOn100(kind, scores[kind]))))
	}
	dtri, _ := sum.Round(1).Float64()
	dtri = utils.Clamp(dtri, 0, 100)

	insights, recommendations := bundleInsights(vertical, dtri, scores)

	var warnings []utils.StaleDataWarning
	for _, s := range []*models.CompositeScore{trust, qai, piqr, avi} {
		warnings = append(warnings, s.Warnings...)
	}

	c.logger.WithFields(logrus.Fields{
		"vertical": vertical,
		"dtri":     dtri,
		"warnings": len(warnings),
	}).Debug("Computed vertical bundle")

	return &models.VerticalBundle{
		Vertical:        vertical,
		Trust:           *trust,
		QAI:             *qai,
		PIQR:            *piqr,
		AVI:             *avi,
		DTRI:            dtri,
		Grade:           Grade(dtri),
		Insights:        insights,
		Recommendations: recommendations,
		Warnings:        warnings,
	}, nil
}

func (c *CompositeCalculator) compute(kind models.CompositeKind, vertical models.Vertical, weights WeightTable, inputs models.SignalInputs) *models.CompositeScore {
	scale, places := compositeScale(kind)
	scaleDec := decimal.NewFromFloat(scale)

	var warnings []utils.StaleDataWarning
	normalized := make(map[string]float64, len(weights.Keys))
	breakdown := make(map[string]float64, len(weights.Keys))
	sum := decimal.Zero

	for _, key := range weights.Keys {
		subject := string(kind) + "." + key
		v, ok := inputs[key]
		switch {
		case !ok || math.IsNaN(v):
			warnings = append(warnings, utils.NewStaleDataWarning(utils.WarningMissingInput, subject, "input missing, contributing 0"))
			v = 0
		case v < 0 || v > 1:
			clamped := utils.Clamp01(v)
			warnings = append(warnings, utils.NewStaleDataWarning(utils.WarningClampedInput, subject,
				fmt.Sprintf("input %v outside [0,1], clamped to %v", v, clamped)))
			v = clamped
		}
		normalized[key] = v

		contribution := decimal.NewFromFloat(weights.Weights[key]).Mul(decimal.NewFromFloat(v))
		sum = sum.Add(contribution)
		breakdown[key], _ = contribution.Mul(scaleDec).Round(4).Float64()
	}

	extra := make([]string, 0)
	for key := range inputs {
		if _, ok := weights.Weights[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		warnings = append(warnings, utils.NewStaleDataWarning(utils.WarningUnknownInput, string(kind)+"."+key, "input not used by this composite"))
	}

	value, _ := sum.Mul(scaleDec).Round(places).Float64()
	value = utils.Clamp(value, 0, scale)

	insights, recommendations := compositeInsights(kind, value, weights.Keys, normalized)

	warningKinds := make([]string, len(warnings))
	for i, w := range warnings {
		warningKinds[i] = w.Kind
	}
	c.metrics.CompositeComputed(string(kind), string(vertical), warningKinds)

	if len(warnings) > 0 {
		c.logger.WithFields(logrus.Fields{
			"composite": kind,
			"vertical":  vertical,
			"warnings":  len(warnings),
		}).Warn("Composite computed from partial inputs")
	}

	return &models.CompositeScore{
		Kind:            kind,
		Vertical:        vertical,
		Value:           value,
		Breakdown:       breakdown,
		Grade:           Grade(scoreOn100(kind, value)),
		Insights:        insights,
		Recommendations: recommendations,
		Warnings:        warnings,
	}
}
