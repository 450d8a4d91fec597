package pricing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"fleetquote/internal/rates"
)

// ErrInsufficientData is returned when a quote has no client or no vehicles.
var ErrInsufficientData = errors.New("quote: insufficient data")

// Result is one quote calculation. It is an immutable value: every
// recalculation produces a new Result, superseding the previous one
// wholesale.
type Result struct {
	Vehicles []Breakdown `json:"vehicles"`
	Total    float64     `json:"total"`

	// Provisional marks a fast-path result computed before every cached
	// lookup resolved. A provisional result must not be persisted as final.
	Provisional bool `json:"provisional"`

	// ProtectionLookupFailed reports a non-fatal protection plan lookup
	// failure: the affected cost was substituted with 0.
	ProtectionLookupFailed bool `json:"protection_lookup_failed"`
}

// Engine aggregates per-vehicle breakdowns into quote totals. It exposes two
// entry points over one arithmetic core: Calculate resolves rates and
// protection costs through their caches (authoritative), CalculateCached
// reads only what is already cached and never blocks (fast path).
type Engine struct {
	rates      *rates.Provider
	protection *ProtectionResolver
	logger     *zap.Logger
}

// EngineDeps collects the engine's collaborators.
type EngineDeps struct {
	Rates      *rates.Provider
	Protection *ProtectionResolver
	Logger     *zap.Logger
}

func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Rates == nil {
		return nil, errors.New("pricing engine: rates provider is required")
	}
	if deps.Protection == nil {
		return nil, errors.New("pricing engine: protection resolver is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		rates:      deps.Rates,
		protection: deps.Protection,
		logger:     logger,
	}, nil
}

// Calculate is the authoritative path: the rate snapshot is refreshed when
// stale and protection costs are resolved through the cache, blocking on
// misses. Its results are safe to persist.
func (e *Engine) Calculate(ctx context.Context, q Quote) (Result, error) {
	snap := e.rates.Snapshot(ctx)
	return e.calculate(q, snap, func(planID *int64) (float64, bool, bool) {
		cost, failed := e.protection.Resolve(ctx, planID)
		return cost, failed, false
	})
}

// CalculateCached is the fast path: it reads only cached data. Protection
// plans not yet in the cache price at 0 and mark the result provisional.
// Callers must re-resolve through Calculate before persisting.
func (e *Engine) CalculateCached(q Quote) (Result, error) {
	snap := e.rates.Cached()
	return e.calculate(q, snap, func(planID *int64) (float64, bool, bool) {
		cost, ok := e.protection.Cached(planID)
		if !ok {
			return 0, false, true
		}
		return cost, false, false
	})
}

// calculate is the shared arithmetic core. The lookup callback is the only
// difference between the two entry points.
func (e *Engine) calculate(q Quote, snap rates.Snapshot, lookup func(planID *int64) (cost float64, failed, provisional bool)) (Result, error) {
	if q.ClientID == 0 || len(q.Vehicles) == 0 {
		return Result{}, ErrInsufficientData
	}

	result := Result{Vehicles: make([]Breakdown, 0, len(q.Vehicles))}
	for _, qv := range q.Vehicles {
		params := qv.EffectiveParams(q.Global)

		cost, failed, provisional := lookup(params.ProtectionPlanID)
		if failed {
			result.ProtectionLookupFailed = true
		}
		if provisional {
			result.Provisional = true
		}

		b, err := vehicleCost(qv.Vehicle, params, snap, cost)
		if err != nil {
			return Result{}, err
		}
		result.Vehicles = append(result.Vehicles, b)
		result.Total += b.Total
	}

	return result, nil
}

// TotalVehicleValue sums the vehicle values of a quote, the investment base
// of the ROIC figures.
func (q Quote) TotalVehicleValue() float64 {
	var total float64
	for _, qv := range q.Vehicles {
		if qv.Vehicle.Value > 0 {
			total += qv.Vehicle.Value
		}
	}
	return total
}
