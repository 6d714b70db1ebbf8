package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces gateway entries inside a shared Redis.
const keyPrefix = "mgw:"

// Redis is a Cache backed by a Redis server, for deployments where several
// gateway instances share one cache.
type Redis struct {
	client *redis.Client
}

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &BackendError{Op: "connect", Err: err}
	}
	return &Redis{client: client}, nil
}

// Get returns the entry for key. Backend failures are reported so the caller
// can log them, but always alongside a miss.
func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &BackendError{Op: "get", Err: err}
	}
	entry, ok := decode(raw)
	if !ok {
		// Legacy or corrupt value: a miss, and the next Set overwrites it.
		return nil, false, nil
	}
	return entry, true, nil
}

// Set stores the entry under key with a server-side TTL.
func (r *Redis) Set(ctx context.Context, key string, e *Entry, ttl time.Duration) error {
	raw, err := encode(e)
	if err != nil {
		return &BackendError{Op: "set", Err: err}
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return &BackendError{Op: "set", Err: err}
	}
	return nil
}

// Invalidate deletes every key matching the glob pattern using incremental
// SCAN so a large keyspace never blocks the server.
func (r *Redis) Invalidate(ctx context.Context, pattern string) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, keyPrefix+pattern, 200).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, &BackendError{Op: "invalidate", Err: err}
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, &BackendError{Op: "invalidate", Err: err}
	}
	return removed, nil
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ensure Redis implements Cache
var _ Cache = (*Redis)(nil)
