package pricing

import (
	"errors"

	"fleetquote/internal/rates"
)

// ErrInvalidSeverity is returned when an operation severity outside 1-6
// reaches a calculator. Callers clamp with ClampSeverity before invoking.
var ErrInvalidSeverity = errors.New("operation severity out of range")

// Depreciation computes the monthly depreciation cost of one vehicle.
//
// Shorter contracts depreciate faster: the base rate is scaled by
// (25 - months) / 12. Mileage above 1000 km/month and severity above 1 each
// apply a multiplier on top.
func Depreciation(vehicleValue float64, contractMonths, monthlyKm, severity int, params rates.CalcParams) (float64, error) {
	if severity < MinSeverity || severity > MaxSeverity {
		return 0, ErrInvalidSeverity
	}
	if vehicleValue <= 0 {
		return 0, nil
	}

	rate := params.BaseDepreciation * float64(25-contractMonths) / 12
	mileageMult := 1 + (float64(monthlyKm-1000)/5000)*params.MileageMultiplier
	severityMult := 1 + float64(severity-1)*params.SeverityMultiplier

	return vehicleValue * rate * mileageMult * severityMult, nil
}
