package pricing

import "fmt"

// Contract length and severity bounds accepted by the quoting flow.
const (
	MinContractMonths = 6
	MaxContractMonths = 24

	MinSeverity     = 1
	MaxSeverity     = 6
	defaultSeverity = 3
)

// Vehicle is the read-only vehicle record consumed from persistence.
type Vehicle struct {
	ID      int64   `json:"id"`
	Value   float64 `json:"value"`
	GroupID string  `json:"group_id"`
}

// QuoteParams configures how one vehicle (or the whole quote) is priced.
type QuoteParams struct {
	ContractMonths   int    `json:"contract_months"`
	MonthlyKm        int    `json:"monthly_km"`
	Severity         int    `json:"severity"`
	HasTracking      bool   `json:"has_tracking"`
	ProtectionPlanID *int64 `json:"protection_plan_id,omitempty"`
	IncludeIpva      bool   `json:"include_ipva"`
	IncludeLicensing bool   `json:"include_licensing"`
	IncludeTaxes     bool   `json:"include_taxes"`
}

// Validate checks the parameter ranges accepted by the quoting flow.
func (p QuoteParams) Validate() error {
	if p.ContractMonths < MinContractMonths || p.ContractMonths > MaxContractMonths {
		return fmt.Errorf("contract months must be between %d and %d, got %d",
			MinContractMonths, MaxContractMonths, p.ContractMonths)
	}
	if p.MonthlyKm <= 0 {
		return fmt.Errorf("monthly km must be positive, got %d", p.MonthlyKm)
	}
	if p.Severity < MinSeverity || p.Severity > MaxSeverity {
		return fmt.Errorf("operation severity must be between %d and %d, got %d",
			MinSeverity, MaxSeverity, p.Severity)
	}
	return nil
}

// ClampSeverity maps an out-of-range severity to the safe default. The
// calculators themselves reject bad severities; callers clamp first.
func ClampSeverity(severity int) int {
	if severity < MinSeverity || severity > MaxSeverity {
		return defaultSeverity
	}
	return severity
}

// QuoteVehicle pairs a vehicle with an optional per-vehicle parameter
// override.
type QuoteVehicle struct {
	Vehicle Vehicle      `json:"vehicle"`
	Params  *QuoteParams `json:"params,omitempty"`
}

// EffectiveParams resolves the parameters used for this vehicle: its own
// override when present, else the quote-global set.
func (qv QuoteVehicle) EffectiveParams(global QuoteParams) QuoteParams {
	if qv.Params != nil {
		return *qv.Params
	}
	return global
}

// Quote is the input of a quote calculation.
type Quote struct {
	ClientID int64          `json:"client_id"`
	Global   QuoteParams    `json:"global"`
	Vehicles []QuoteVehicle `json:"vehicles"`
}
