package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fleetquote/internal/rates"
)

type fakePlanSource struct {
	mu    sync.Mutex
	plans map[int64]float64
	err   error
	calls int
}

func (f *fakePlanSource) FetchProtectionPlan(ctx context.Context, planID int64) (ProtectionPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return ProtectionPlan{}, f.err
	}
	cost, ok := f.plans[planID]
	if !ok {
		return ProtectionPlan{}, errors.New("plan not found")
	}
	return ProtectionPlan{ID: planID, MonthlyCost: cost}, nil
}

func (f *fakePlanSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func planID(id int64) *int64 {
	return &id
}

func TestExtraKmRate(t *testing.T) {
	params := rates.Defaults().Params

	nearlyEqual(t, "extraKmRate", ExtraKmRate(100000, params), 0.75)
	nearlyEqual(t, "extraKmRate zero value", ExtraKmRate(0, params), 0)
	nearlyEqual(t, "extraKmRate negative value", ExtraKmRate(-100, params), 0)
}

func TestProtectionResolver_NilPlanNoFetch(t *testing.T) {
	source := &fakePlanSource{plans: map[int64]float64{1: 120}}
	resolver := NewProtectionResolver(source, nil)

	cost, failed := resolver.Resolve(context.Background(), nil)
	nearlyEqual(t, "cost", cost, 0)
	if failed {
		t.Fatal("nil plan must not flag a failure")
	}
	if source.callCount() != 0 {
		t.Fatalf("nil plan must not fetch, got %d calls", source.callCount())
	}
}

func TestProtectionResolver_CachesPerPlan(t *testing.T) {
	ctx := context.Background()
	source := &fakePlanSource{plans: map[int64]float64{1: 120, 2: 90}}
	resolver := NewProtectionResolver(source, nil)

	for i := 0; i < 3; i++ {
		cost, failed := resolver.Resolve(ctx, planID(1))
		nearlyEqual(t, "cost", cost, 120)
		if failed {
			t.Fatal("unexpected failure flag")
		}
	}
	if source.callCount() != 1 {
		t.Fatalf("expected a single fetch for plan 1, got %d", source.callCount())
	}

	cost, _ := resolver.Resolve(ctx, planID(2))
	nearlyEqual(t, "cost", cost, 90)
	if source.callCount() != 2 {
		t.Fatalf("expected one fetch per plan, got %d", source.callCount())
	}
}

func TestProtectionResolver_FailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	source := &fakePlanSource{err: errors.New("plan service down")}
	resolver := NewProtectionResolver(source, nil)

	cost, failed := resolver.Resolve(ctx, planID(7))
	nearlyEqual(t, "cost", cost, 0)
	if !failed {
		t.Fatal("expected failure flag on lookup error")
	}

	// Failures are not cached: the next resolve retries.
	source.mu.Lock()
	source.err = nil
	source.plans = map[int64]float64{7: 60}
	source.mu.Unlock()

	cost, failed = resolver.Resolve(ctx, planID(7))
	nearlyEqual(t, "cost", cost, 60)
	if failed {
		t.Fatal("expected recovery after source came back")
	}
}

func TestProtectionResolver_CachedReadsOnly(t *testing.T) {
	ctx := context.Background()
	source := &fakePlanSource{plans: map[int64]float64{1: 120}}
	resolver := NewProtectionResolver(source, nil)

	if _, ok := resolver.Cached(planID(1)); ok {
		t.Fatal("cold cache must miss")
	}
	if cost, ok := resolver.Cached(nil); !ok || cost != 0 {
		t.Fatalf("nil plan is always resolved at 0, got %v %v", cost, ok)
	}

	resolver.Resolve(ctx, planID(1))

	cost, ok := resolver.Cached(planID(1))
	if !ok {
		t.Fatal("warm cache must hit")
	}
	nearlyEqual(t, "cost", cost, 120)
	if source.callCount() != 1 {
		t.Fatalf("Cached must not fetch, got %d calls", source.callCount())
	}
}
