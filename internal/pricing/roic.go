package pricing

import (
	"errors"
	"math"
	"time"
)

// Monthly ROIC slider bounds, in percent.
const (
	MinRoicPercent = 3.0
	MaxRoicPercent = 8.0
)

// residualValueShare is the fleet resale assumption used only by the
// reporting-side estimated ROIC, never by the pricing slider.
const residualValueShare = 0.60

var (
	// ErrUnjustifiedAdjustment blocks accepting a below-floor override that
	// is still missing its justification.
	ErrUnjustifiedAdjustment = errors.New("roic adjustment below suggested requires a justification")
	// ErrIncompleteJustification signals an empty reason or authorizer.
	ErrIncompleteJustification = errors.New("justification reason and authorizer must be non-empty")
)

// SuggestedRoic derives the floor ROIC from the unadjusted quote total,
// clamped to the slider bounds.
func SuggestedRoic(totalCost, totalVehicleValue float64) float64 {
	if totalVehicleValue <= 0 {
		return MinRoicPercent
	}
	return clampRoic(totalCost / totalVehicleValue * 100)
}

// AdjustedTotal prices the quote at a given monthly ROIC.
func AdjustedTotal(roic, totalVehicleValue float64) float64 {
	if totalVehicleValue <= 0 {
		return 0
	}
	return totalVehicleValue * roic / 100
}

// AnnualEquivalent converts a monthly ROIC percentage to its compounded
// annual percentage.
func AnnualEquivalent(monthlyRoic float64) float64 {
	return (math.Pow(1+monthlyRoic/100, 12) - 1) * 100
}

// EstimatedRoic is the reporting-only return/investment figure, computed
// under the 60% residual-value assumption. It is distinct from the pricing
// slider's SuggestedRoic.
func EstimatedRoic(totalCost, totalVehicleValue float64, contractMonths int) float64 {
	if totalVehicleValue <= 0 || contractMonths <= 0 {
		return 0
	}
	revenue := totalCost*float64(contractMonths) + totalVehicleValue*residualValueShare
	gain := revenue - totalVehicleValue
	return gain / totalVehicleValue / float64(contractMonths) * 100
}

func clampRoic(roic float64) float64 {
	if roic < MinRoicPercent {
		return MinRoicPercent
	}
	if roic > MaxRoicPercent {
		return MaxRoicPercent
	}
	return roic
}

func clampOverride(roic float64) float64 {
	if roic < 0 {
		return 0
	}
	if roic > MaxRoicPercent {
		return MaxRoicPercent
	}
	return roic
}

// Justification is the mandatory audit pair for pricing below the suggested
// floor.
type Justification struct {
	Reason       string `json:"reason"`
	AuthorizedBy string `json:"authorized_by"`
}

// Complete reports whether both fields are filled in.
func (j Justification) Complete() bool {
	return j.Reason != "" && j.AuthorizedBy != ""
}

// AdjustmentState tags where an adjustment sits in its lifecycle.
type AdjustmentState string

const (
	StateUnset       AdjustmentState = "unset"
	StateSuggested   AdjustmentState = "suggested"
	StateJustified   AdjustmentState = "justified"
	StateUnjustified AdjustmentState = "unjustified"
)

// Adjustment is the ROIC override state of a quote. Transitions are pure:
// each method returns the next value, the receiver is never mutated.
type Adjustment struct {
	State         AdjustmentState `json:"state"`
	Suggested     float64         `json:"suggested"`
	Roic          float64         `json:"roic"`
	AdjustedTotal float64         `json:"adjusted_total"`
	Justification *Justification  `json:"justification,omitempty"`
}

// Suggest opens the adjustment at the suggested ROIC for the given quote
// total and fleet value.
func Suggest(totalCost, totalVehicleValue float64) Adjustment {
	suggested := SuggestedRoic(totalCost, totalVehicleValue)
	return Adjustment{
		State:         StateSuggested,
		Suggested:     suggested,
		Roic:          suggested,
		AdjustedTotal: AdjustedTotal(suggested, totalVehicleValue),
	}
}

// WithRoic moves the slider. At or above the suggested floor the adjustment
// is immediately justified and any pending justification requirement is
// cleared. Below the floor it becomes unjustified until a complete
// justification arrives. Overrides may go below the suggested bounds; only
// negative and above-ceiling values are clamped.
func (a Adjustment) WithRoic(roic, totalVehicleValue float64) Adjustment {
	next := a
	next.Roic = clampOverride(roic)
	next.AdjustedTotal = AdjustedTotal(next.Roic, totalVehicleValue)
	next.Justification = nil
	if next.Roic < next.Suggested {
		next.State = StateUnjustified
	} else {
		next.State = StateJustified
	}
	return next
}

// WithJustification supplies the audit pair for a below-floor override. An
// incomplete pair leaves the adjustment unjustified.
func (a Adjustment) WithJustification(j Justification) (Adjustment, error) {
	if !j.Complete() {
		return a, ErrIncompleteJustification
	}
	next := a
	next.Justification = &j
	if next.State == StateUnjustified {
		next.State = StateJustified
	}
	return next, nil
}

// Final reports whether the adjustment may be persisted as the quote's
// price. An unjustified below-floor override is pending, never final.
func (a Adjustment) Final() bool {
	return a.State == StateSuggested || a.State == StateJustified
}

// AuditEntry is the immutable record written when an adjustment is
// accepted. A later slider change does not retroactively invalidate it.
type AuditEntry struct {
	Roic          float64        `json:"roic"`
	Suggested     float64        `json:"suggested"`
	AdjustedTotal float64        `json:"adjusted_total"`
	Justification *Justification `json:"justification,omitempty"`
	RecordedAt    time.Time      `json:"recorded_at"`
}

// Accept turns a final adjustment into its audit record.
func (a Adjustment) Accept(now time.Time) (AuditEntry, error) {
	if !a.Final() {
		return AuditEntry{}, ErrUnjustifiedAdjustment
	}
	entry := AuditEntry{
		Roic:          a.Roic,
		Suggested:     a.Suggested,
		AdjustedTotal: a.AdjustedTotal,
		RecordedAt:    now,
	}
	if a.Justification != nil {
		j := *a.Justification
		entry.Justification = &j
	}
	return entry, nil
}
