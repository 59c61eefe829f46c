package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *redisStore) Check(ctx context.Context, eventID string) (bool, error) {
	key := "learning:event:" + eventID
	set, err := s.client.SetNX(ctx, key, 1, s.ttl).Result()
	if err != nil {
		return false, err
	}
	// SetNX returns true if the key was SET (i.e. NOT a duplicate).
	return !set, nil
}

func (s *redisStore) Forget(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, "learning:event:"+eventID).Err()
}
