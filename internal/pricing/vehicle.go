package pricing

import (
	"fmt"

	"fleetquote/internal/rates"
)

// Breakdown is the monthly cost breakdown of one vehicle. Total is always
// the exact sum of the seven cost fields.
type Breakdown struct {
	VehicleID    int64   `json:"vehicle_id"`
	Depreciation float64 `json:"depreciation"`
	Maintenance  float64 `json:"maintenance"`
	Tracking     float64 `json:"tracking"`
	Protection   float64 `json:"protection"`
	Ipva         float64 `json:"ipva"`
	Licensing    float64 `json:"licensing"`
	Tax          float64 `json:"tax"`
	Total        float64 `json:"total"`
	CostPerKm    float64 `json:"cost_per_km"`
	ExtraKmRate  float64 `json:"extra_km_rate"`
}

// vehicleCost builds one vehicle's breakdown from already-resolved inputs.
// Both calculation paths run through this function; only how the protection
// cost was obtained differs between them.
func vehicleCost(v Vehicle, p QuoteParams, snap rates.Snapshot, protectionCost float64) (Breakdown, error) {
	group, ok := snap.Group(v.GroupID)
	if !ok {
		return Breakdown{}, fmt.Errorf("vehicle %d: unknown vehicle group %q", v.ID, v.GroupID)
	}

	severity := ClampSeverity(p.Severity)
	depreciation, err := Depreciation(v.Value, p.ContractMonths, p.MonthlyKm, severity, snap.Params)
	if err != nil {
		return Breakdown{}, fmt.Errorf("vehicle %d: %w", v.ID, err)
	}

	b := Breakdown{
		VehicleID:    v.ID,
		Depreciation: depreciation,
		Maintenance:  Maintenance(group, p.ContractMonths, p.MonthlyKm),
		Tracking:     TrackingFee(p.HasTracking, snap.Params),
		Protection:   protectionCost,
		Ipva:         Ipva(v.Value, group, p.IncludeIpva),
		Licensing:    Licensing(group, p.IncludeLicensing),
		Tax:          FinancialCost(v.Value, p.ContractMonths, snap.Taxes, p.IncludeTaxes),
		ExtraKmRate:  ExtraKmRate(v.Value, snap.Params),
	}
	b.Total = b.Depreciation + b.Maintenance + b.Tracking + b.Protection +
		b.Ipva + b.Licensing + b.Tax

	contractKm := p.ContractMonths * p.MonthlyKm
	if contractKm > 0 {
		b.CostPerKm = b.Total / float64(contractKm)
	}

	return b, nil
}
