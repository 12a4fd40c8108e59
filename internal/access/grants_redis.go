package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"liveclass/pkg/types"
)

const grantKeyPrefix = "liveclass:grant"

// RedisGrantStore keeps grants in Redis with the key TTL set to the grant expiry
type RedisGrantStore struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisGrantStore wraps an existing client; an empty prefix uses the default
func NewRedisGrantStore(client *redis.Client, prefix string) *RedisGrantStore {
	if prefix == "" {
		prefix = grantKeyPrefix
	}
	return &RedisGrantStore{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisGrantStore) key(userID, sessionID string) string {
	return s.prefix + ":" + userID + ":" + sessionID
}

// Put stores the grant; grants already expired are not written
func (s *RedisGrantStore) Put(ctx context.Context, grant *types.AccessGrant) error {
	if grant == nil || grant.UserID == "" || grant.SessionID == "" {
		return ErrInvalidGrant
	}

	ttl := grant.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	encoded, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to encode grant: %w", err)
	}

	// TECHNICAL DISCOVERY: SET with EX makes Redis the expiry authority
	if err := s.redis.Set(ctx, s.key(grant.UserID, grant.SessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrGrantStoreUnavailable, err)
	}
	return nil
}

// Get returns the grant, or nil when the key is missing or the grant expired
func (s *RedisGrantStore) Get(ctx context.Context, userID, sessionID string) (*types.AccessGrant, error) {
	data, err := s.redis.Get(ctx, s.key(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrGrantStoreUnavailable, err)
	}

	var grant types.AccessGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("failed to decode grant: %w", err)
	}
	if !grant.Valid(s.now()) {
		return nil, nil
	}
	return &grant, nil
}

// Ping checks connectivity to Redis
func (s *RedisGrantStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrGrantStoreUnavailable, err)
	}
	return nil
}
