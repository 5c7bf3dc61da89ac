package models

import "github.com/shopspring/decimal"

// DecayTaxInputs feed the trust-decay cost estimate.
type DecayTaxInputs struct {
	TrustDecline     float64         `json:"trust_decline"`
	BetaLeads        float64         `json:"beta_leads"`
	OrganicCloseRate float64         `json:"organic_close_rate"`
	CAC              decimal.Decimal `json:"cac"`
	DeclineRate      float64         `json:"decline_rate"`
	ConfidenceDrop   float64         `json:"confidence_drop"`
}

// StrategicWindowInputs feed the value-at-stake estimate for a time window.
type StrategicWindowInputs struct {
	LeadGain       float64         `json:"lead_gain"`
	Months         float64         `json:"months"`
	CloseRate      float64         `json:"close_rate"`
	AvgGross       decimal.Decimal `json:"avg_gross"`
	DeclineRate    float64         `json:"decline_rate"`
	ConfidenceDrop float64         `json:"confidence_drop"`
}

// TriggerSignals are the live readings the autonomous triggers watch.
type TriggerSignals struct {
	EEATTrust           float64         `json:"eeat_trust"`
	LeadResponseMinutes float64         `json:"lead_response_minutes"`
	DTRIDelta           float64         `json:"dtri_delta"`
	DecayTaxCost        decimal.Decimal `json:"decay_tax_cost"`
}

// Trigger names an automated action condition that fired.
type Trigger struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
