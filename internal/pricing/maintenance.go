package pricing

import (
	"math"

	"fleetquote/internal/rates"
)

// Maintenance computes the monthly maintenance amortization for one vehicle
// from its group cost table. Every contract pays for at least one revision;
// tire changes only accrue once total mileage crosses the tire interval.
//
// The tracking surcharge is not part of this figure: it is reported
// separately as trackingCost in the breakdown.
func Maintenance(group rates.GroupTable, contractMonths, monthlyKm int) float64 {
	if contractMonths <= 0 {
		return 0
	}

	totalKm := float64(monthlyKm * contractMonths)

	revisions := 1.0
	if group.RevisionIntervalKm > 0 {
		revisions = math.Ceil(totalKm / float64(group.RevisionIntervalKm))
		if revisions < 1 {
			revisions = 1
		}
	}

	tireChanges := 0.0
	if group.TireIntervalKm > 0 {
		tireChanges = math.Ceil(totalKm / float64(group.TireIntervalKm))
		if tireChanges < 0 {
			tireChanges = 0
		}
	}

	return (group.RevisionCost*revisions + group.TireCost*tireChanges) / float64(contractMonths)
}

// TrackingFee returns the flat monthly tracking surcharge, zero when the
// vehicle carries no tracker.
func TrackingFee(hasTracking bool, params rates.CalcParams) float64 {
	if !hasTracking {
		return 0
	}
	return params.TrackingFee
}
