package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetquote/internal/pricing"
	"fleetquote/internal/storage/redis"
)

var (
	// ErrSuperseded marks a recalculation whose result was discarded
	// because a newer one was requested while it ran.
	ErrSuperseded = errors.New("session: recalculation superseded by a newer request")
	// ErrProvisionalResult blocks accepting a quote whose latest result is
	// still a fast-path estimate.
	ErrProvisionalResult = errors.New("session: latest result is provisional, re-resolve before accepting")
	// ErrNoResult means the session was never calculated.
	ErrNoResult = errors.New("session: no calculation result yet")
)

// Manager drives one quoting session: it applies parameter changes, gives
// the negotiator an immediate fast-path estimate, and reconciles through the
// authoritative path with last-write-wins semantics.
type Manager struct {
	store  SessionStore
	engine *pricing.Engine
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	gens map[string]uint64
}

func NewManager(store SessionStore, engine *pricing.Engine, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		engine: engine,
		logger: logger,
		now:    time.Now,
		gens:   make(map[string]uint64),
	}
}

// SetClient selects the quote's client.
func (m *Manager) SetClient(ctx context.Context, sessionID string, clientID int64) error {
	return m.update(ctx, sessionID, func(s *redis.QuoteSession) error {
		s.ClientID = clientID
		return nil
	})
}

// SetGlobalParams replaces the quote-global parameter set.
func (m *Manager) SetGlobalParams(ctx context.Context, sessionID string, params pricing.QuoteParams) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("global params: %w", err)
	}
	return m.update(ctx, sessionID, func(s *redis.QuoteSession) error {
		s.Global = params
		return nil
	})
}

// AddVehicle adds a vehicle to the quote, optionally with its own parameter
// override.
func (m *Manager) AddVehicle(ctx context.Context, sessionID string, vehicle pricing.Vehicle, params *pricing.QuoteParams) error {
	if params != nil {
		if err := params.Validate(); err != nil {
			return fmt.Errorf("vehicle %d params: %w", vehicle.ID, err)
		}
	}
	return m.update(ctx, sessionID, func(s *redis.QuoteSession) error {
		for _, qv := range s.Vehicles {
			if qv.Vehicle.ID == vehicle.ID {
				return fmt.Errorf("vehicle %d already in quote", vehicle.ID)
			}
		}
		s.Vehicles = append(s.Vehicles, pricing.QuoteVehicle{Vehicle: vehicle, Params: params})
		return nil
	})
}

// RemoveVehicle drops a vehicle from the quote.
func (m *Manager) RemoveVehicle(ctx context.Context, sessionID string, vehicleID int64) error {
	return m.update(ctx, sessionID, func(s *redis.QuoteSession) error {
		for i, qv := range s.Vehicles {
			if qv.Vehicle.ID == vehicleID {
				s.Vehicles = append(s.Vehicles[:i], s.Vehicles[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("vehicle %d not in quote", vehicleID)
	})
}

// SetVehicleParams replaces (or clears, with nil) one vehicle's parameter
// override.
func (m *Manager) SetVehicleParams(ctx context.Context, sessionID string, vehicleID int64, params *pricing.QuoteParams) error {
	if params != nil {
		if err := params.Validate(); err != nil {
			return fmt.Errorf("vehicle %d params: %w", vehicleID, err)
		}
	}
	return m.update(ctx, sessionID, func(s *redis.QuoteSession) error {
		for i := range s.Vehicles {
			if s.Vehicles[i].Vehicle.ID == vehicleID {
				s.Vehicles[i].Params = params
				return nil
			}
		}
		return fmt.Errorf("vehicle %d not in quote", vehicleID)
	})
}

// Estimate runs the fast path over the current session state and stores the
// (possibly provisional) result.
func (m *Manager) Estimate(ctx context.Context, sessionID string) (pricing.Result, error) {
	sess, err := m.store.GetQuoteSession(ctx, sessionID)
	if err != nil {
		return pricing.Result{}, fmt.Errorf("GetQuoteSession failed: %w", err)
	}

	result, err := m.engine.CalculateCached(sess.Quote())
	if err != nil {
		return pricing.Result{}, err
	}

	sess.Result = &result
	m.refreshAdjustment(sess)
	if err := m.store.SetQuoteSession(ctx, sessionID, sess); err != nil {
		return pricing.Result{}, fmt.Errorf("SetQuoteSession failed: %w", err)
	}
	return result, nil
}

// Recalculate runs the authoritative path. When several recalculations race
// for one session the newest wins: an older run finds its generation stale
// and its result is discarded.
func (m *Manager) Recalculate(ctx context.Context, sessionID string) (pricing.Result, error) {
	gen := m.nextGeneration(sessionID)

	sess, err := m.store.GetQuoteSession(ctx, sessionID)
	if err != nil {
		return pricing.Result{}, fmt.Errorf("GetQuoteSession failed: %w", err)
	}

	result, err := m.engine.Calculate(ctx, sess.Quote())
	if err != nil {
		return pricing.Result{}, err
	}

	if !m.isCurrentGeneration(sessionID, gen) {
		m.logger.Debug("discarding stale recalculation", zap.String("session_id", sessionID))
		return pricing.Result{}, ErrSuperseded
	}

	// Re-read before storing: parameters may have changed while the
	// calculation ran; only the result slot is replaced.
	sess, err = m.store.GetQuoteSession(ctx, sessionID)
	if err != nil {
		return pricing.Result{}, fmt.Errorf("GetQuoteSession failed: %w", err)
	}
	sess.Result = &result
	m.refreshAdjustment(sess)
	if err := m.store.SetQuoteSession(ctx, sessionID, sess); err != nil {
		return pricing.Result{}, fmt.Errorf("SetQuoteSession failed: %w", err)
	}
	return result, nil
}

// SetRoic moves the ROIC slider for the session.
func (m *Manager) SetRoic(ctx context.Context, sessionID string, roic float64) (pricing.Adjustment, error) {
	var adjusted pricing.Adjustment
	err := m.withAdjustment(ctx, sessionID, func(sess *redis.QuoteSession, adj pricing.Adjustment) (pricing.Adjustment, error) {
		adjusted = adj.WithRoic(roic, sess.Quote().TotalVehicleValue())
		return adjusted, nil
	})
	return adjusted, err
}

// Justify attaches the audit pair to a below-floor override.
func (m *Manager) Justify(ctx context.Context, sessionID string, j pricing.Justification) (pricing.Adjustment, error) {
	var adjusted pricing.Adjustment
	err := m.withAdjustment(ctx, sessionID, func(sess *redis.QuoteSession, adj pricing.Adjustment) (pricing.Adjustment, error) {
		next, err := adj.WithJustification(j)
		if err != nil {
			return adj, err
		}
		adjusted = next
		return next, nil
	})
	return adjusted, err
}

// Accept finalizes the session's adjustment, recording the immutable audit
// entry. Provisional results and pending justifications are rejected.
func (m *Manager) Accept(ctx context.Context, sessionID string) (pricing.AuditEntry, error) {
	sess, err := m.store.GetQuoteSession(ctx, sessionID)
	if err != nil {
		return pricing.AuditEntry{}, fmt.Errorf("GetQuoteSession failed: %w", err)
	}
	if sess.Result == nil {
		return pricing.AuditEntry{}, ErrNoResult
	}
	if sess.Result.Provisional {
		return pricing.AuditEntry{}, ErrProvisionalResult
	}
	if sess.Adjustment == nil {
		return pricing.AuditEntry{}, pricing.ErrUnjustifiedAdjustment
	}

	entry, err := sess.Adjustment.Accept(m.now().UTC())
	if err != nil {
		return pricing.AuditEntry{}, err
	}

	sess.Audit = append(sess.Audit, entry)
	if err := m.store.SetQuoteSession(ctx, sessionID, sess); err != nil {
		return pricing.AuditEntry{}, fmt.Errorf("SetQuoteSession failed: %w", err)
	}
	return entry, nil
}

// Clear drops the session state.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.gens, sessionID)
	m.mu.Unlock()
	return m.store.DropQuoteSession(ctx, sessionID)
}

func (m *Manager) update(ctx context.Context, sessionID string, mutate func(*redis.QuoteSession) error) error {
	sess, err := m.store.GetQuoteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("GetQuoteSession failed: %w", err)
	}
	if err := mutate(sess); err != nil {
		return err
	}
	// A parameter change invalidates previous results and ROIC state.
	sess.Result = nil
	sess.Adjustment = nil
	return m.store.SetQuoteSession(ctx, sessionID, sess)
}

// withAdjustment loads the session's adjustment (seeding it from the latest
// result when absent), applies the transition, and stores the outcome.
func (m *Manager) withAdjustment(ctx context.Context, sessionID string, transition func(*redis.QuoteSession, pricing.Adjustment) (pricing.Adjustment, error)) error {
	sess, err := m.store.GetQuoteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("GetQuoteSession failed: %w", err)
	}
	if sess.Result == nil {
		return ErrNoResult
	}

	adj := pricing.Adjustment{}
	if sess.Adjustment != nil {
		adj = *sess.Adjustment
	} else {
		adj = pricing.Suggest(sess.Result.Total, sess.Quote().TotalVehicleValue())
	}

	next, err := transition(sess, adj)
	if err != nil {
		return err
	}

	sess.Adjustment = &next
	if err := m.store.SetQuoteSession(ctx, sessionID, sess); err != nil {
		return fmt.Errorf("SetQuoteSession failed: %w", err)
	}
	return nil
}

// refreshAdjustment re-seeds the suggested ROIC after a recalculation while
// keeping an override the negotiator already made.
func (m *Manager) refreshAdjustment(sess *redis.QuoteSession) {
	if sess.Result == nil {
		sess.Adjustment = nil
		return
	}
	suggested := pricing.Suggest(sess.Result.Total, sess.Quote().TotalVehicleValue())
	if sess.Adjustment == nil || sess.Adjustment.State == pricing.StateSuggested {
		sess.Adjustment = &suggested
		return
	}
	// Keep the slider position, re-evaluate it against the new floor.
	next := suggested.WithRoic(sess.Adjustment.Roic, sess.Quote().TotalVehicleValue())
	if sess.Adjustment.Justification != nil {
		if withJ, err := next.WithJustification(*sess.Adjustment.Justification); err == nil {
			next = withJ
		}
	}
	sess.Adjustment = &next
}

func (m *Manager) nextGeneration(sessionID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[sessionID]++
	return m.gens[sessionID]
}

func (m *Manager) isCurrentGeneration(sessionID string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[sessionID] == gen
}
