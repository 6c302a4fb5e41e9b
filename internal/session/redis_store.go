package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionTTL = 24 * time.Hour

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by Redis. Sessions expire after a
// day; a finished exam clears its entry explicitly well before that.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func redisSessionKey(testID uint) string {
	return fmt.Sprintf("exam:session:%d", testID)
}

func (r *redisStore) Load(ctx context.Context, testID uint) (*PersistedSession, error) {
	raw, err := r.client.Get(ctx, redisSessionKey(testID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session from redis: %w", err)
	}
	var s PersistedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode persisted session: %w", err)
	}
	return &s, nil
}

func (r *redisStore) Save(ctx context.Context, s *PersistedSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, redisSessionKey(s.TestID), raw, redisSessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to persist session to redis: %w", err)
	}
	return nil
}

func (r *redisStore) Clear(ctx context.Context, testID uint) error {
	if err := r.client.Del(ctx, redisSessionKey(testID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session from redis: %w", err)
	}
	return nil
}
