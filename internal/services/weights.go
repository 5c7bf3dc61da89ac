package services

import (
	"fmt"
	"math"

	"github.com/irfndi/dealer-trust-engine/internal/models"
)

const weightSumTolerance = 1e-6

// WeightTable is an ordered set of sub-signal weights for one composite.
// Keys fixes evaluation and tie-break order.
type WeightTable struct {
	Keys    []string
	Weights map[string]float64
}

// Validate checks that the table covers its keys exactly and sums to 1.
func (w WeightTable) Validate() error {
	if len(w.Keys) == 0 {
		return fmt.Errorf("weight table has no keys")
	}
	if len(w.Keys) != len(w.Weights) {
		return fmt.Errorf("weight table has %d keys but %d weights", len(w.Keys), len(w.Weights))
	}
	sum := 0.0
	for _, k := range w.Keys {
		v, ok := w.Weights[k]
		if !ok {
			return fmt.Errorf("weight table missing weight for %q", k)
		}
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("weight for %q out of range: %v", k, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights sum to %.6f, want 1", sum)
	}
	return nil
}

func table(keys []string, weights ...float64) WeightTable {
	w := make(map[string]float64, len(keys))
	for i, k := range keys {
		w[k] = weights[i]
	}
	return WeightTable{Keys: keys, Weights: w}
}

// Required sub-signal keys per composite.
var (
	TrustKeys = []string{"eeat", "reputation", "technical", "localVis", "compliance"}
	QAIKeys   = []string{"authority", "trust", "experience", "recency", "structure"}
	PIQRKeys  = []string{"visibility", "ux", "consistency", "sentiment", "compliance"}
	AVIKeys   = []string{"seo", "aeo", "geo", "ugc"}
)

// defaultWeights apply when no vertical is given. Trust is equal-weight here
// and scores the reference dealer at 84.00; the 86.75 regression anchor comes
// from the acquisition table in verticalWeights.
var defaultWeights = map[models.CompositeKind]WeightTable{
	models.CompositeTrust: table(TrustKeys, 0.20, 0.20, 0.20, 0.20, 0.20),
	models.CompositeQAI:   table(QAIKeys, 0.25, 0.25, 0.20, 0.15, 0.15),
	models.CompositePIQR:  table(PIQRKeys, 0.30, 0.20, 0.20, 0.15, 0.15),
	models.CompositeAVI:   table(AVIKeys, 0.25, 0.30, 0.25, 0.20),
}

var verticalWeights = map[models.Vertical]map[models.CompositeKind]WeightTable{
	models.VerticalAcquisition: {
		models.CompositeTrust: table(TrustKeys, 0.15, 0.35, 0.20, 0.05, 0.25),
		models.CompositeQAI:   table(QAIKeys, 0.30, 0.25, 0.15, 0.15, 0.15),
		models.CompositePIQR:  table(PIQRKeys, 0.35, 0.20, 0.15, 0.15, 0.15),
		models.CompositeAVI:   table(AVIKeys, 0.25, 0.35, 0.25, 0.15),
	},
	models.VerticalService: {
		models.CompositeTrust: table(TrustKeys, 0.25, 0.30, 0.10, 0.15, 0.20),
		models.CompositeQAI:   table(QAIKeys, 0.20, 0.30, 0.25, 0.10, 0.15),
		models.CompositePIQR:  table(PIQRKeys, 0.20, 0.20, 0.20, 0.25, 0.15),
		models.CompositeAVI:   table(AVIKeys, 0.20, 0.30, 0.35, 0.15),
	},
	models.VerticalParts: {
		models.CompositeTrust: table(TrustKeys, 0.20, 0.20, 0.25, 0.10, 0.25),
		models.CompositeQAI:   table(QAIKeys, 0.25, 0.20, 0.15, 0.20, 0.20),
		models.CompositePIQR:  table(PIQRKeys, 0.25, 0.25, 0.25, 0.10, 0.15),
		models.CompositeAVI:   table(AVIKeys, 0.35, 0.25, 0.20, 0.20),
	},
}

var dtriKeys = []string{string(models.CompositeTrust), string(models.CompositeQAI), string(models.CompositePIQR), string(models.CompositeAVI)}

// dtriWeights combine the four composites into the vertical bundle score.
var dtriWeights = map[models.Vertical]WeightTable{
	models.VerticalAcquisition: table(dtriKeys, 0.35, 0.25, 0.20, 0.20),
	models.VerticalService:     table(dtriKeys, 0.40, 0.25, 0.15, 0.20),
	models.VerticalParts:       table(dtriKeys, 0.30, 0.20, 0.30, 0.20),
}

func init() {
	if err := ValidateWeightTables(); err != nil {
		panic(err)
	}
}

// ValidateWeightTables checks every built-in table.
func ValidateWeightTables() error {
	for kind, t := range defaultWeights {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("default %s weights: %w", kind, err)
		}
	}
	for vertical, tables := range verticalWeights {
		for _, kind := range models.CompositeKinds {
			t, ok := tables[kind]
			if !ok {
				return fmt.Errorf("%s vertical has no %s weights", vertical, kind)
			}
			if err := t.Validate(); err != nil {
				return fmt.Errorf("%s %s weights: %w", vertical, kind, err)
			}
		}
	}
	for vertical, t := range dtriWeights {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%s dtri weights: %w", vertical, err)
		}
	}
	return nil
}

// KeysFor returns the required sub-signal keys of a composite.
func KeysFor(kind models.CompositeKind) ([]string, bool) {
	t, ok := defaultWeights[kind]
	if !ok {
		return nil, false
	}
	return t.Keys, true
}
