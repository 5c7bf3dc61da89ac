package services

import (
	"fmt"

	"github.com/irfndi/dealer-trust-engine/internal/models"
	"github.com/irfndi/dealer-trust-engine/internal/utils"
	"github.com/shopspring/decimal"
)

const (
	defaultLeadAttributionMultiplier = 1.25
	financialRoundingPlaces          = 2
	sensitivityDeclineWeight         = 0.3
	sensitivityConfidenceDropWeight  = 0.5

	reviewCrisisEEATThreshold   = 0.85
	reviewCrisisResponseMinutes = 4.0
	competitiveAttackDTRIDelta  = 0.10
	budgetReallocationDecayCost = 50000
)

// Trigger names reported by EvaluateTriggers.
const (
	TriggerReviewCrisis       = "review_crisis"
	TriggerCompetitiveAttack  = "competitive_attack"
	TriggerBudgetReallocation = "budget_reallocation"
)

// TrustSensitivityMultiplier scales revenue effects by how fast trust is
// declining and how much confidence was lost.
func TrustSensitivityMultiplier(declineRate, confidenceDrop float64) decimal.Decimal {
	return decimal.NewFromInt(1).
		Add(decimal.NewFromFloat(sensitivityDeclineWeight).Mul(decimal.NewFromFloat(declineRate))).
		Add(decimal.NewFromFloat(sensitivityConfidenceDropWeight).Mul(decimal.NewFromFloat(confidenceDrop)))
}

// DecayTaxCost estimates the acquisition spend needed to replace the organic
// leads lost to a trust decline.
func DecayTaxCost(in models.DecayTaxInputs) (decimal.Decimal, error) {
	if in.OrganicCloseRate <= 0 {
		return decimal.Zero, utils.NewFieldValidationError("organic_close_rate", "must be positive")
	}
	if in.CAC.IsNegative() {
		return decimal.Zero, utils.NewFieldValidationError("cac", "must not be negative")
	}
	lostLeads := decimal.NewFromFloat(in.TrustDecline).
		Mul(decimal.NewFromFloat(in.BetaLeads)).
		Div(decimal.NewFromFloat(in.OrganicCloseRate))
	tsm := TrustSensitivityMultiplier(in.DeclineRate, in.ConfidenceDrop)
	return lostLeads.Mul(in.CAC).Mul(tsm).Round(financialRoundingPlaces), nil
}

// ActionableROI is (lift * TSM * LAM) / costOfEffort. A zero lam uses 1.25.
func ActionableROI(lift, costOfEffort decimal.Decimal, declineRate, confidenceDrop, lam float64) (decimal.Decimal, error) {
	if !costOfEffort.IsPositive() {
		return decimal.Zero, utils.NewFieldValidationError("cost_of_effort", "must be positive")
	}
	if lam == 0 {
		lam = defaultLeadAttributionMultiplier
	}
	if lam < 0 {
		return decimal.Zero, utils.NewFieldValidationError("lam", fmt.Sprintf("must not be negative, got %v", lam))
	}
	tsm := TrustSensitivityMultiplier(declineRate, confidenceDrop)
	return lift.Mul(tsm).Mul(decimal.NewFromFloat(lam)).Div(costOfEffort).Round(4), nil
}

// StrategicWindowValue is the gross value at stake over a window of months.
func StrategicWindowValue(in models.StrategicWindowInputs) (decimal.Decimal, error) {
	if in.Months < 0 {
		return decimal.Zero, utils.NewFieldValidationError("months", "must not be negative")
	}
	if in.CloseRate < 0 || in.CloseRate > 1 {
		return decimal.Zero, utils.NewFieldValidationError("close_rate", fmt.Sprintf("must be in [0,1], got %v", in.CloseRate))
	}
	tsm := TrustSensitivityMultiplier(in.DeclineRate, in.ConfidenceDrop)
	return decimal.NewFromFloat(in.LeadGain).
		Mul(decimal.NewFromFloat(in.Months)).
		Mul(decimal.NewFromFloat(in.CloseRate)).
		Mul(in.AvgGross).
		Mul(tsm).
		Round(financialRoundingPlaces), nil
}

// EvaluateTriggers returns the automated-action conditions met by signals,
// in a fixed order.
func EvaluateTriggers(s models.TriggerSignals) []models.Trigger {
	triggers := []models.Trigger{}
	if s.EEATTrust < reviewCrisisEEATThreshold && s.LeadResponseMinutes > reviewCrisisResponseMinutes {
		triggers = append(triggers, models.Trigger{
			Name:   TriggerReviewCrisis,
			Reason: fmt.Sprintf("EEAT trust %.2f with %.1f minute lead response", s.EEATTrust, s.LeadResponseMinutes),
		})
	}
	if s.DTRIDelta > competitiveAttackDTRIDelta {
		triggers = append(triggers, models.Trigger{
			Name:   TriggerCompetitiveAttack,
			Reason: fmt.Sprintf("DTRI moved %.2f against a competitor", s.DTRIDelta),
		})
	}
	if s.DecayTaxCost.GreaterThan(decimal.NewFromInt(budgetReallocationDecayCost)) {
		triggers = append(triggers, models.Trigger{
			Name:   TriggerBudgetReallocation,
			Reason: fmt.Sprintf("decay tax cost %s exceeds %d", s.DecayTaxCost.StringFixed(2), budgetReallocationDecayCost),
		})
	}
	return triggers
}
