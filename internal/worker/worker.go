package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fleetquote/internal/pricing"
	"fleetquote/internal/storage"
)

// Requoter periodically refreshes the rate snapshot and recomputes every
// open quote through the authoritative path, persisting fresh breakdowns so
// stored totals never drift from current rates.
type Requoter struct {
	storage   *storage.PostgresStorage
	engine    *pricing.Engine
	logger    *zap.Logger
	interval  time.Duration
	exportDir string
}

type Deps struct {
	Storage   *storage.PostgresStorage
	Engine    *pricing.Engine
	Logger    *zap.Logger
	Interval  time.Duration
	ExportDir string
}

func New(deps Deps) *Requoter {
	interval := deps.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requoter{
		storage:   deps.Storage,
		engine:    deps.Engine,
		logger:    logger,
		interval:  interval,
		exportDir: deps.ExportDir,
	}
}

// Run blocks until the context is canceled, requoting on each tick.
func (r *Requoter) Run(ctx context.Context) error {
	r.logger.Info("Requote worker started", zap.Duration("interval", r.interval))

	// First pass on startup, then on every tick.
	r.requoteAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.requoteAll(ctx)
		}
	}
}

func (r *Requoter) requoteAll(ctx context.Context) {
	started := time.Now()

	quotes, err := r.storage.ListOpenQuotes(ctx)
	if err != nil {
		r.logger.Error("Failed to list open quotes", zap.Error(err))
		return
	}

	var requoted, skipped int
	for _, stored := range quotes {
		if err := r.requote(ctx, stored); err != nil {
			if errors.Is(err, pricing.ErrInsufficientData) {
				skipped++
				continue
			}
			r.logger.Error("Failed to requote",
				zap.Int64("quote_id", stored.ID),
				zap.Error(err))
			continue
		}
		requoted++
	}

	r.logger.Info("Requote pass finished",
		zap.Int("requoted", requoted),
		zap.Int("skipped", skipped),
		zap.Duration("elapsed", time.Since(started)))
}

func (r *Requoter) requote(ctx context.Context, stored storage.StoredQuote) error {
	result, err := r.engine.Calculate(ctx, stored.Quote)
	if err != nil {
		return err
	}

	if result.ProtectionLookupFailed {
		r.logger.Warn("Protection lookup failed, quote priced without protection",
			zap.Int64("quote_id", stored.ID))
	}

	adj := pricing.Suggest(result.Total, stored.Quote.TotalVehicleValue())
	if _, err := r.storage.SaveQuoteResult(ctx, stored.ID, result, adj); err != nil {
		return err
	}

	if r.exportDir != "" {
		path, err := r.storage.ExportQuoteToExcel(stored.ID, result, adj, r.exportDir)
		if err != nil {
			r.logger.Warn("Failed to export quote report",
				zap.Int64("quote_id", stored.ID),
				zap.Error(err))
		} else {
			r.logger.Debug("Quote report exported", zap.String("path", path))
		}
	}
	return nil
}
