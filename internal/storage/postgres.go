package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"fleetquote/internal/pricing"
	"fleetquote/pkg/redis"
)

// ErrNotFinal rejects persisting a provisional result or a pending ROIC
// adjustment. Callers must re-resolve through the authoritative path first.
var ErrNotFinal = errors.New("storage: refusing to persist a non-final quote result")

type PostgresStorage struct {
	db     *sqlx.DB
	redis  *redis.Client
	logger *zap.Logger
}

type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type vehicleRow struct {
	ID      int64   `db:"id"`
	Value   float64 `db:"value"`
	GroupID string  `db:"group_id"`
}

type quoteRow struct {
	ID           int64  `db:"id"`
	ClientID     int64  `db:"client_id"`
	GlobalParams []byte `db:"global_params"`
}

type quoteVehicleRow struct {
	VehicleID int64   `db:"vehicle_id"`
	Value     float64 `db:"value"`
	GroupID   string  `db:"group_id"`
	Params    []byte  `db:"params"`
}

// StoredQuote is a persisted quote resolved into calculation input.
type StoredQuote struct {
	ID    int64
	Quote pricing.Quote
}

func NewPostgresStorage(ctx context.Context, cfg Config, redisClient *redis.Client, logger *zap.Logger) (*PostgresStorage, error) {
	const operation = "storage.NewPostgresStorage"

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
	)

	var db *sqlx.DB
	var err error

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = 2 * time.Minute
	retryPolicy.MaxInterval = 15 * time.Second

	logger.Info("Connecting to PostgreSQL...")

	err = backoff.RetryNotify(
		func() error {
			db, err = sqlx.ConnectContext(ctx, "postgres", connStr)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			if err = db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
		retryPolicy,
		func(err error, duration time.Duration) {
			logger.Warn("PostgreSQL connection failed, retrying...",
				zap.Error(err),
				zap.Duration("next_attempt_in", duration))
		},
	)

	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect after retries: %w", operation, err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	logger.Info("Successfully connected to PostgreSQL")
	return &PostgresStorage{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for migrations.
func (s *PostgresStorage) DB() *sql.DB {
	return s.db.DB
}

// GetVehicle loads one vehicle record, serving repeat reads from Redis.
func (s *PostgresStorage) GetVehicle(ctx context.Context, vehicleID int64) (pricing.Vehicle, error) {
	cacheKey := fmt.Sprintf("vehicle:%d", vehicleID)

	// Try Redis first
	if cached, err := s.redis.Get(ctx, cacheKey); err == nil {
		var vehicle pricing.Vehicle
		if err := json.Unmarshal(cached, &vehicle); err == nil {
			return vehicle, nil
		}
	}

	const query = `
        SELECT id, value, group_id
        FROM vehicles
        WHERE id = $1
    `

	var row vehicleRow
	err := s.db.GetContext(ctx, &row, query, vehicleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pricing.Vehicle{}, fmt.Errorf("vehicle %d not found: %w", vehicleID, err)
		}
		return pricing.Vehicle{}, fmt.Errorf("failed to get vehicle: %w", err)
	}

	vehicle := pricing.Vehicle{ID: row.ID, Value: row.Value, GroupID: row.GroupID}

	// Cache the result
	if data, err := json.Marshal(vehicle); err == nil {
		s.redis.Set(ctx, cacheKey, data, s.redis.TTL())
	}

	return vehicle, nil
}

// ListOpenQuotes loads every quote still in negotiation, resolved into
// calculation input for the requote worker.
func (s *PostgresStorage) ListOpenQuotes(ctx context.Context) ([]StoredQuote, error) {
	const query = `
        SELECT id, client_id, global_params
        FROM quotes
        WHERE status = 'open'
        ORDER BY id
    `

	var rows []quoteRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list open quotes: %w", err)
	}

	quotes := make([]StoredQuote, 0, len(rows))
	for _, row := range rows {
		quote := pricing.Quote{ClientID: row.ClientID}
		if len(row.GlobalParams) > 0 {
			if err := json.Unmarshal(row.GlobalParams, &quote.Global); err != nil {
				return nil, fmt.Errorf("quote %d: decode global params: %w", row.ID, err)
			}
		}

		vehicles, err := s.quoteVehicles(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		quote.Vehicles = vehicles

		quotes = append(quotes, StoredQuote{ID: row.ID, Quote: quote})
	}

	return quotes, nil
}

func (s *PostgresStorage) quoteVehicles(ctx context.Context, quoteID int64) ([]pricing.QuoteVehicle, error) {
	const query = `
        SELECT qv.vehicle_id, v.value, v.group_id, qv.params
        FROM quote_vehicles qv
        JOIN vehicles v ON v.id = qv.vehicle_id
        WHERE qv.quote_id = $1
        ORDER BY qv.vehicle_id
    `

	var rows []quoteVehicleRow
	if err := s.db.SelectContext(ctx, &rows, query, quoteID); err != nil {
		return nil, fmt.Errorf("quote %d: failed to load vehicles: %w", quoteID, err)
	}

	vehicles := make([]pricing.QuoteVehicle, 0, len(rows))
	for _, row := range rows {
		qv := pricing.QuoteVehicle{
			Vehicle: pricing.Vehicle{ID: row.VehicleID, Value: row.Value, GroupID: row.GroupID},
		}
		if len(row.Params) > 0 {
			var params pricing.QuoteParams
			if err := json.Unmarshal(row.Params, &params); err != nil {
				return nil, fmt.Errorf("quote %d vehicle %d: decode params: %w", quoteID, row.VehicleID, err)
			}
			qv.Params = &params
		}
		vehicles = append(vehicles, qv)
	}

	return vehicles, nil
}

// SaveQuoteResult persists a final calculation and its accepted ROIC
// adjustment. Provisional results and pending adjustments are rejected at
// this boundary too.
func (s *PostgresStorage) SaveQuoteResult(ctx context.Context, quoteID int64, result pricing.Result, adj pricing.Adjustment) (int64, error) {
	if result.Provisional || !adj.Final() {
		return 0, ErrNotFinal
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	const insertResult = `
        INSERT INTO quote_results (
            quote_id, total, roic, suggested_roic, adjusted_total,
            roic_state, justification_reason, justification_authorized_by,
            protection_lookup_failed, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `

	var reason, authorizedBy sql.NullString
	if adj.Justification != nil {
		reason = sql.NullString{String: adj.Justification.Reason, Valid: true}
		authorizedBy = sql.NullString{String: adj.Justification.AuthorizedBy, Valid: true}
	}

	var resultID int64
	err = tx.QueryRowContext(ctx, insertResult,
		quoteID,
		result.Total,
		adj.Roic,
		adj.Suggested,
		adj.AdjustedTotal,
		string(adj.State),
		reason,
		authorizedBy,
		result.ProtectionLookupFailed,
		time.Now().UTC(),
	).Scan(&resultID)
	if err != nil {
		return 0, fmt.Errorf("failed to save quote result: %w", err)
	}

	const insertVehicle = `
        INSERT INTO vehicle_results (
            result_id, vehicle_id, depreciation, maintenance, tracking,
            protection, ipva, licensing, tax, total, cost_per_km, extra_km_rate
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `

	for _, b := range result.Vehicles {
		if _, err := tx.ExecContext(ctx, insertVehicle,
			resultID,
			b.VehicleID,
			b.Depreciation,
			b.Maintenance,
			b.Tracking,
			b.Protection,
			b.Ipva,
			b.Licensing,
			b.Tax,
			b.Total,
			b.CostPerKm,
			b.ExtraKmRate,
		); err != nil {
			return 0, fmt.Errorf("failed to save vehicle result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	// Invalidate quote statistics cache
	s.redis.Del(ctx, fmt.Sprintf("quote_result:%d", quoteID))

	return resultID, nil
}
