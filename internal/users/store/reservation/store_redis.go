// Package reservation claims registration identifiers (email, phone, username)
// in Redis so two instances cannot register the same details at once.
package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "usermgmt:reserve:"
	defaultTTL = 30 * time.Second
)

// releaseScript deletes the key only while it still holds this owner's token,
// so an expired-and-reclaimed reservation is never released by the old owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Redis-backed Reserver. Reservations expire after the TTL so
// a crashed instance cannot block an identifier forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
}

type Option func(*RedisStore)

func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewRedis(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{client: client, ttl: defaultTTL, owner: uuid.NewString()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve reports whether the key was free and is now held by this store.
func (s *RedisStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, s.owner, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{keyPrefix + key}, s.owner).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
