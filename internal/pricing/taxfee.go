package pricing

import "fleetquote/internal/rates"

// Ipva returns the monthly share of the annual vehicle ownership tax.
func Ipva(vehicleValue float64, group rates.GroupTable, include bool) float64 {
	if !include || vehicleValue <= 0 {
		return 0
	}
	return vehicleValue * group.IpvaRate / 12
}

// Licensing returns the monthly share of the annual licensing fee.
func Licensing(group rates.GroupTable, include bool) float64 {
	if !include {
		return 0
	}
	return group.LicensingFee / 12
}

// FinancialCost returns the monthly financial/tax cost of carrying the
// vehicle, priced off the SELIC tier for the contract length plus spread.
func FinancialCost(vehicleValue float64, contractMonths int, taxes rates.TaxIndices, include bool) float64 {
	if !include || vehicleValue <= 0 {
		return 0
	}
	annualRate := selicTier(taxes, contractMonths) + taxes.Spread
	return vehicleValue * annualRate / 100 / 12
}

// selicTier is a closed 3-way choice. Contracts below the shortest tier
// still price at the 12-month rate; there is no extrapolation.
func selicTier(taxes rates.TaxIndices, contractMonths int) float64 {
	switch {
	case contractMonths >= 24:
		return taxes.Selic24
	case contractMonths >= 18:
		return taxes.Selic18
	default:
		return taxes.Selic12
	}
}
