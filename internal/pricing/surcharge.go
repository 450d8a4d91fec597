package pricing

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"fleetquote/internal/rates"
)

// ExtraKmRate is the per-kilometer rate billed for mileage beyond the
// contracted allowance.
func ExtraKmRate(vehicleValue float64, params rates.CalcParams) float64 {
	if vehicleValue <= 0 {
		return 0
	}
	return vehicleValue * params.ExtraKmPercentage
}

// ProtectionPlan is the plan record consumed from the external plan-details
// source.
type ProtectionPlan struct {
	ID          int64   `json:"id"`
	MonthlyCost float64 `json:"monthly_cost"`
}

// PlanSource looks up protection plan details.
type PlanSource interface {
	FetchProtectionPlan(ctx context.Context, planID int64) (ProtectionPlan, error)
}

// ProtectionResolver resolves protection-plan monthly costs through a
// session-lifetime cache. Plans do not change within a quoting session, so
// entries never expire. Concurrent lookups of the same plan share one fetch.
type ProtectionResolver struct {
	source PlanSource
	logger *zap.Logger

	sf singleflight.Group

	mu    sync.RWMutex
	costs map[int64]float64
}

func NewProtectionResolver(source PlanSource, logger *zap.Logger) *ProtectionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProtectionResolver{
		source: source,
		logger: logger,
		costs:  make(map[int64]float64),
	}
}

// Resolve returns the monthly protection cost for a plan, fetching and
// caching it on first use. A nil plan costs nothing and triggers no fetch.
// Lookup failures are non-fatal: cost 0 with the failure flag raised.
func (r *ProtectionResolver) Resolve(ctx context.Context, planID *int64) (cost float64, failed bool) {
	if planID == nil {
		return 0, false
	}
	if cost, ok := r.cached(*planID); ok {
		return cost, false
	}

	key := fmt.Sprintf("plan:%d", *planID)
	result, err, _ := r.sf.Do(key, func() (any, error) {
		if cost, ok := r.cached(*planID); ok {
			return cost, nil
		}
		plan, err := r.source.FetchProtectionPlan(ctx, *planID)
		if err != nil {
			return 0.0, fmt.Errorf("fetch protection plan %d: %w", *planID, err)
		}
		r.mu.Lock()
		r.costs[plan.ID] = plan.MonthlyCost
		r.mu.Unlock()
		return plan.MonthlyCost, nil
	})
	if err != nil {
		r.logger.Warn("protection plan lookup failed", zap.Int64("plan_id", *planID), zap.Error(err))
		return 0, true
	}
	return result.(float64), false
}

// Cached returns the cost only if it is already in the cache. The fast
// calculation path uses this so it never blocks on I/O.
func (r *ProtectionResolver) Cached(planID *int64) (cost float64, ok bool) {
	if planID == nil {
		return 0, true
	}
	return r.cached(*planID)
}

func (r *ProtectionResolver) cached(planID int64) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cost, ok := r.costs[planID]
	return cost, ok
}
