package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// FinancialHandler serves the trust-revenue formulas.
type FinancialHandler struct {
	logger *logrus.Logger
}

type ActionableROIRequest struct {
	Lift           decimal.Decimal `json:"lift"`
	CostOfEffort   decimal.Decimal `json:"cost_of_effort"`
	DeclineRate    float64         `json:"decline_rate"`
	ConfidenceDrop float64         `json:"confidence_drop"`
	LAM            float64         `json:"lam"`
}

func NewFinancialHandler(logger *logrus.Logger) *FinancialHandler {
	return &FinancialHandler{logger: logger}
}

func (h *FinancialHandler) DecayTax(c *gin.Context) {
	var in models.DecayTaxInputs
	if !bindJSON(c, &in) {
		return
	}
	cost, err := services.DecayTaxCost(in)
	if err != nil {
		respondError(c, h.logger, "compute decay tax", err)
		return
	}
	respondOK(c, gin.H{
		"decay_tax_cost":         cost,
		"sensitivity_multiplier": services.TrustSensitivityMultiplier(in.DeclineRate, in.ConfidenceDrop),
	})
}

func (h *FinancialHandler) ActionableROI(c *gin.Context) {
	var req ActionableROIRequest
	if !bindJSON(c, &req) {
		return
	}
	roi, err := services.ActionableROI(req.Lift, req.CostOfEffort, req.DeclineRate, req.ConfidenceDrop, req.LAM)
	if err != nil {
		respondError(c, h.logger, "compute actionable ROI", err)
		return
	}
	respondOK(c, gin.H{"actionable_roi": roi})
}

func (h *FinancialHandler) StrategicWindow(c *gin.Context) {
	var in models.StrategicWindowInputs
	if !bindJSON(c, &in) {
		return
	}
	value, err := services.StrategicWindowValue(in)
	if err != nil {
		respondError(c, h.logger, "compute strategic window value", err)
		return
	}
	respondOK(c, gin.H{"strategic_window_value": value})
}

func (h *FinancialHandler) Triggers(c *gin.Context) {
	var signals models.TriggerSignals
	if !bindJSON(c, &signals) {
		return
	}
	respondOK(c, gin.H{"triggers": services.EvaluateTriggers(signals)})
}
