package rates

import (
	"fmt"
	"time"
)

// CalcParams holds the global calculation constants shared by every
// calculator.
type CalcParams struct {
	BaseDepreciation   float64 `json:"base_depreciation"`
	MileageMultiplier  float64 `json:"mileage_multiplier"`
	SeverityMultiplier float64 `json:"severity_multiplier"`
	TrackingFee        float64 `json:"tracking_fee"`
	ExtraKmPercentage  float64 `json:"extra_km_percentage"`
}

// GroupTable is the per-vehicle-group maintenance and tax cost table.
type GroupTable struct {
	RevisionIntervalKm int     `json:"revision_interval_km"`
	RevisionCost       float64 `json:"revision_cost"`
	TireIntervalKm     int     `json:"tire_interval_km"`
	TireCost           float64 `json:"tire_cost"`
	IpvaRate           float64 `json:"ipva_rate"`
	LicensingFee       float64 `json:"licensing_fee"`
}

// TaxIndices carries the market indices used for the financial cost
// component. SELIC is tiered by contract length.
type TaxIndices struct {
	Ipca    float64 `json:"ipca"`
	Igpm    float64 `json:"igpm"`
	Spread  float64 `json:"spread"`
	Selic12 float64 `json:"selic_12"`
	Selic18 float64 `json:"selic_18"`
	Selic24 float64 `json:"selic_24"`
}

// Snapshot is one immutable rate configuration. It is replaced wholesale on
// refresh, never mutated in place.
type Snapshot struct {
	Params    CalcParams            `json:"params"`
	Groups    map[string]GroupTable `json:"groups"`
	Taxes     TaxIndices            `json:"taxes"`
	FetchedAt time.Time             `json:"fetched_at"`
}

// Group resolves a vehicle-group table, falling back to the default tables
// when the code is unknown.
func (s Snapshot) Group(code string) (GroupTable, bool) {
	table, ok := s.Groups[code]
	if !ok {
		table, ok = defaultGroups()[code]
	}
	return table, ok
}

// Defaults returns the documented hard-coded fallback configuration, used
// when no snapshot was ever fetched successfully.
func Defaults() Snapshot {
	return Snapshot{
		Params: CalcParams{
			BaseDepreciation:   0.015,
			MileageMultiplier:  0.05,
			SeverityMultiplier: 0.10,
			TrackingFee:        50,
			ExtraKmPercentage:  0.0000075,
		},
		Groups: defaultGroups(),
		Taxes: TaxIndices{
			Ipca:    4.5,
			Igpm:    4.0,
			Spread:  2.0,
			Selic12: 10.5,
			Selic18: 10.0,
			Selic24: 9.5,
		},
	}
}

func defaultGroups() map[string]GroupTable {
	return map[string]GroupTable{
		"A": {RevisionIntervalKm: 10000, RevisionCost: 300, TireIntervalKm: 40000, TireCost: 1200, IpvaRate: 0.04, LicensingFee: 160},
		"B": {RevisionIntervalKm: 10000, RevisionCost: 450, TireIntervalKm: 45000, TireCost: 1800, IpvaRate: 0.04, LicensingFee: 160},
		"C": {RevisionIntervalKm: 15000, RevisionCost: 600, TireIntervalKm: 50000, TireCost: 2600, IpvaRate: 0.04, LicensingFee: 160},
	}
}

// Validate rejects snapshots with negative numeric fields. A snapshot that
// fails validation is treated as a failed fetch.
func (s Snapshot) Validate() error {
	if s.Params.BaseDepreciation < 0 || s.Params.MileageMultiplier < 0 ||
		s.Params.SeverityMultiplier < 0 || s.Params.TrackingFee < 0 ||
		s.Params.ExtraKmPercentage < 0 {
		return fmt.Errorf("calc params contain negative values: %+v", s.Params)
	}
	for code, g := range s.Groups {
		if g.RevisionIntervalKm < 0 || g.RevisionCost < 0 || g.TireIntervalKm < 0 ||
			g.TireCost < 0 || g.IpvaRate < 0 || g.LicensingFee < 0 {
			return fmt.Errorf("group %s table contains negative values", code)
		}
	}
	if s.Taxes.Spread < 0 || s.Taxes.Selic12 < 0 || s.Taxes.Selic18 < 0 || s.Taxes.Selic24 < 0 {
		return fmt.Errorf("tax indices contain negative values: %+v", s.Taxes)
	}
	return nil
}
