// Package idempotency deduplicates heartbeat event IDs consumed off the
// message bus, so a redelivered heartbeat is applied at most once.
//
// Primary backend: Redis SETNX with TTL. Fallback: Postgres
// INSERT ... ON CONFLICT. With neither available an in-memory store is
// used, which only makes sense for a single-instance dev run.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Store checks whether an event has already been processed and marks it.
type Store interface {
	// Check returns true if eventID was already processed.
	// If not seen, it atomically marks it as processed.
	Check(ctx context.Context, eventID string) (duplicate bool, err error)

	// Forget releases a mark taken by Check, so a consumer whose apply
	// failed after Check can let the redelivery through.
	Forget(ctx context.Context, eventID string) error
}

// NewStore creates the best available idempotency store:
// Redis > Postgres > in-memory (dev fallback).
// When isProd is true the in-memory fallback is not allowed and the
// function returns nil with an error.
func NewStore(rdb *redis.Client, pool *pgxpool.Pool, ttl time.Duration, isProd bool) (Store, error) {
	if rdb != nil {
		return &redisStore{client: rdb, ttl: ttl}, nil
	}
	if pool != nil {
		return &postgresStore{pool: pool}, nil
	}
	if isProd {
		return nil, errors.New("production requires Redis or Postgres for idempotency; in-memory store is not allowed")
	}
	return newMemoryStore(), nil
}
