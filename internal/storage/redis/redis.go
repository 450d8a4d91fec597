package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 24 * time.Hour

type Storage struct {
	client *redis.Client
}

// New creates a new Redis client
func New(addr, password string, db int) *Storage {
	return &Storage{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			PoolSize:     100, // Increase connection pool size
			MinIdleConns: 10,  // Keep minimum connections ready
		}),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}

func (s *Storage) SetQuoteSession(ctx context.Context, sessionID string, session *QuoteSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.client.Set(ctx, buildSessionKey(sessionID), data, sessionTTL).Err()
}

func (s *Storage) GetQuoteSession(ctx context.Context, sessionID string) (*QuoteSession, error) {
	data, err := s.client.Get(ctx, buildSessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &QuoteSession{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session QuoteSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal failure: %w", err)
	}
	return &session, nil
}

func (s *Storage) DropQuoteSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, buildSessionKey(sessionID)).Err()
}

func buildSessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}
