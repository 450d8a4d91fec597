package session

import (
	"context"

	"fleetquote/internal/storage/redis"
)

type SessionStore interface {
	GetQuoteSession(ctx context.Context, sessionID string) (*redis.QuoteSession, error)
	SetQuoteSession(ctx context.Context, sessionID string, session *redis.QuoteSession) error
	DropQuoteSession(ctx context.Context, sessionID string) error
}

var _ SessionStore = (*redis.Storage)(nil)
