package models

import (
	"github.com/irfndi/dealer-trust-engine/internal/utils"
)

// CompositeKind names one of the weighted composite indices.
type CompositeKind string

const (
	CompositeTrust CompositeKind = "trust"
	CompositeQAI   CompositeKind = "qai"
	CompositePIQR  CompositeKind = "piqr"
	CompositeAVI   CompositeKind = "avi"
)

// CompositeKinds lists every composite in bundle order.
var CompositeKinds = []CompositeKind{CompositeTrust, CompositeQAI, CompositePIQR, CompositeAVI}

// Vertical selects the dealership line of business a weight table is tuned for.
type Vertical string

const (
	VerticalAcquisition Vertical = "acquisition"
	VerticalService     Vertical = "service"
	VerticalParts       Vertical = "parts"
)

// Verticals lists every supported vertical.
var Verticals = []Vertical{VerticalAcquisition, VerticalService, VerticalParts}

// SignalInputs maps a named sub-metric to a normalized value in [0,1].
// Calculators read it and never write to it.
type SignalInputs map[string]float64

// CompositeScore is the computed value of a single composite index.
type CompositeScore struct {
	Kind            CompositeKind            `json:"kind"`
	Vertical        Vertical                 `json:"vertical,omitempty"`
	Value           float64                  `json:"value"`
	Breakdown       map[string]float64       `json:"breakdown"`
	Grade           string                   `json:"grade"`
	Insights        []string                 `json:"insights"`
	Recommendations []string                 `json:"recommendations"`
	Warnings        []utils.StaleDataWarning `json:"warnings,omitempty"`
}

// BundleInputs carries the sub-signal sets for all four composites.
type BundleInputs struct {
	Trust SignalInputs `json:"trust"`
	QAI   SignalInputs `json:"qai"`
	PIQR  SignalInputs `json:"piqr"`
	AVI   SignalInputs `json:"avi"`
}

// VerticalBundle is the DTRI roll-up of the four composites for one vertical.
type VerticalBundle struct {
	Vertical        Vertical                 `json:"vertical"`
	Trust           CompositeScore           `json:"trust"`
	QAI             CompositeScore           `json:"qai"`
	PIQR            CompositeScore           `json:"piqr"`
	AVI             CompositeScore           `json:"avi"`
	DTRI            float64                  `json:"dtri"`
	Grade           string                   `json:"grade"`
	Insights        []string                 `json:"insights"`
	Recommendations []string                 `json:"recommendations"`
	Warnings        []utils.StaleDataWarning `json:"warnings,omitempty"`
}
