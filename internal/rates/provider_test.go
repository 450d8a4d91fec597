package rates

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu    sync.Mutex
	snap  Snapshot
	err   error
	calls int
}

func (f *fakeSource) FetchRates(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Snapshot{}, f.err
	}
	return f.snap, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testSnapshot() Snapshot {
	snap := Defaults()
	snap.Params.TrackingFee = 75
	return snap
}

func newTestProvider(t *testing.T, source Source, clock *fixedClock) *Provider {
	t.Helper()
	provider, err := NewProvider(ProviderDeps{
		Source: source,
		TTL:    5 * time.Minute,
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	return provider
}

func TestProvider_ServesFromCacheWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	source := &fakeSource{snap: testSnapshot()}
	provider := newTestProvider(t, source, clock)

	first := provider.Snapshot(ctx)
	if first.Params.TrackingFee != 75 {
		t.Fatalf("expected fetched snapshot, got tracking fee %v", first.Params.TrackingFee)
	}

	clock.Advance(4 * time.Minute)
	provider.Snapshot(ctx)
	if got := source.callCount(); got != 1 {
		t.Fatalf("expected a single fetch within TTL, got %d", got)
	}

	clock.Advance(2 * time.Minute)
	provider.Snapshot(ctx)
	if got := source.callCount(); got != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", got)
	}
}

func TestProvider_FallsBackToLastGoodOnFailure(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	source := &fakeSource{snap: testSnapshot()}
	provider := newTestProvider(t, source, clock)

	provider.Snapshot(ctx)

	source.mu.Lock()
	source.err = errors.New("rate service down")
	source.mu.Unlock()

	clock.Advance(10 * time.Minute)
	snap := provider.Snapshot(ctx)
	if snap.Params.TrackingFee != 75 {
		t.Fatalf("expected last good snapshot on failure, got tracking fee %v", snap.Params.TrackingFee)
	}
}

func TestProvider_FallsBackToDefaultsWhenNeverFetched(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	source := &fakeSource{err: errors.New("rate service down")}
	provider := newTestProvider(t, source, clock)

	snap := provider.Snapshot(ctx)
	defaults := Defaults()
	if snap.Params != defaults.Params {
		t.Fatalf("expected default params, got %+v", snap.Params)
	}
	if provider.Warm() {
		t.Fatal("provider must not report warm after failed fetches")
	}
}

func TestProvider_CachedNeverFetches(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	source := &fakeSource{snap: testSnapshot()}
	provider := newTestProvider(t, source, clock)

	snap := provider.Cached()
	if got := source.callCount(); got != 0 {
		t.Fatalf("Cached must not fetch, got %d calls", got)
	}
	if snap.Params != Defaults().Params {
		t.Fatalf("expected defaults before first fetch, got %+v", snap.Params)
	}
}

func TestProvider_RejectsInvalidSnapshot(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	bad := testSnapshot()
	bad.Params.BaseDepreciation = -1
	source := &fakeSource{snap: bad}
	provider := newTestProvider(t, source, clock)

	snap := provider.Snapshot(ctx)
	if snap.Params != Defaults().Params {
		t.Fatalf("invalid snapshot must be treated as a failed fetch, got %+v", snap.Params)
	}
}

func TestSnapshot_GroupFallsBackToDefaults(t *testing.T) {
	snap := Snapshot{Groups: map[string]GroupTable{
		"X": {RevisionIntervalKm: 20000, RevisionCost: 500},
	}}

	if _, ok := snap.Group("X"); !ok {
		t.Fatal("expected explicit group to resolve")
	}
	if _, ok := snap.Group("A"); !ok {
		t.Fatal("expected default group A to resolve")
	}
	if _, ok := snap.Group("Z"); ok {
		t.Fatal("unknown group must not resolve")
	}
}
