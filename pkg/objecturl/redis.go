package objecturl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/receiptify/pkg/observability"
)

// DefaultRedisPrefix namespaces object keys in a shared Redis.
const DefaultRedisPrefix = "receiptify:objecturl:"

// RedisStore keeps objects in Redis so any instance behind a load balancer
// can serve an object URL minted by another. Expiry is delegated to Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server at addr and verifies the
// connection with a PING.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("objecturl: connect redis %s: %w", addr, err)
	}
	return NewRedisStoreFromClient(client, DefaultRedisPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes
// ownership of client and closes it on Close.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, obj Object, ttl time.Duration) (string, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	id := NewID()
	if err := s.client.Set(ctx, s.key(id), data, ttlOrDefault(ttl)).Err(); err != nil {
		return "", fmt.Errorf("objecturl: store %s: %w", id, err)
	}
	observability.ObjectURL().OnCreate(ctx, "redis", len(obj.Data))
	return id, nil
}

// Resolve implements Store.
func (s *RedisStore) Resolve(ctx context.Context, id string) (*Object, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObjectURL().OnResolve(ctx, "redis", false)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("objecturl: resolve %s: %w", id, err)
	}

	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		// Corrupt entry - drop it and treat as missing
		_ = s.client.Del(ctx, s.key(id)).Err()
		observability.ObjectURL().OnResolve(ctx, "redis", false)
		return nil, ErrNotFound
	}
	observability.ObjectURL().OnResolve(ctx, "redis", true)
	return &obj, nil
}

// Revoke implements Store.
func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("objecturl: revoke %s: %w", id, err)
	}
	observability.ObjectURL().OnRevoke(ctx, "redis")
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
