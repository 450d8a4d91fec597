package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source fetches a fresh rate configuration from the external rate service.
type Source interface {
	FetchRates(ctx context.Context) (Snapshot, error)
}

// DefaultTTL is the freshness window of a cached snapshot.
const DefaultTTL = 5 * time.Minute

// Provider serves rate snapshots through a TTL cache. Refresh failures are
// never fatal: callers get the last good snapshot, or the hard defaults when
// nothing was ever fetched.
type Provider struct {
	source Source
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	sf singleflight.Group

	mu   sync.RWMutex
	last *Snapshot
}

// ProviderDeps collects the provider's collaborators.
type ProviderDeps struct {
	Source Source
	TTL    time.Duration
	Logger *zap.Logger
	Now    func() time.Time
}

func NewProvider(deps ProviderDeps) (*Provider, error) {
	if deps.Source == nil {
		return nil, errors.New("rates provider: source is required")
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		source: deps.Source,
		ttl:    ttl,
		logger: logger,
		now:    now,
	}, nil
}

// Snapshot returns a rate configuration, refreshing the cache when the
// freshness window has elapsed. Concurrent callers share one in-flight
// fetch. The returned snapshot is always usable.
func (p *Provider) Snapshot(ctx context.Context) Snapshot {
	if snap, ok := p.fresh(); ok {
		return snap
	}

	result, err, _ := p.sf.Do("rates", func() (any, error) {
		// Re-check under the flight: a concurrent refresh may have landed.
		if snap, ok := p.fresh(); ok {
			return snap, nil
		}
		snap, err := p.fetch(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		return snap, nil
	})
	if err != nil {
		p.logger.Warn("rate refresh failed, serving fallback", zap.Error(err))
		return p.Cached()
	}
	return result.(Snapshot)
}

// Cached returns whatever is currently cached without refreshing: the last
// good snapshot regardless of age, or the hard defaults.
func (p *Provider) Cached() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last != nil {
		return *p.last
	}
	return Defaults()
}

// Warm returns true once at least one fetch has succeeded.
func (p *Provider) Warm() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last != nil
}

func (p *Provider) fresh() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last != nil && p.now().Sub(p.last.FetchedAt) < p.ttl {
		return *p.last, true
	}
	return Snapshot{}, false
}

func (p *Provider) fetch(ctx context.Context) (Snapshot, error) {
	snap, err := p.source.FetchRates(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch rates: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("reject fetched rates: %w", err)
	}
	snap.FetchedAt = p.now()

	p.mu.Lock()
	p.last = &snap
	p.mu.Unlock()

	p.logger.Info("rate snapshot refreshed",
		zap.Time("fetched_at", snap.FetchedAt),
		zap.Int("groups", len(snap.Groups)))
	return snap, nil
}
