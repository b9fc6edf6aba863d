package captcha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "captcha:"

// consumeScript deletes the key only when the stored code matches ARGV[1].
// Returns -1 for a missing key, 0 for a mismatch and 1 when consumed.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return -1
end
if string.upper(v) ~= string.upper(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisStore keeps captcha codes in Redis so every replica can verify them.
// Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a RedisStore on an existing client
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *RedisStore) Set(ctx context.Context, id, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), code, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store captcha: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (string, error) {
	code, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load captcha: %w", err)
	}
	return code, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete captcha: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, id, code string) (bool, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{s.key(id)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume captcha: %w", err)
	}
	switch res {
	case -1:
		return false, ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}
