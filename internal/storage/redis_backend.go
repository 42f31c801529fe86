package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores persistent values as Redis strings under <origin>:<key>.
type RedisBackend struct {
	client *redis.Client
	origin string
}

func NewRedisBackend(client *redis.Client, origin string) *RedisBackend {
	return &RedisBackend{client: client, origin: origin}
}

func (r *RedisBackend) key(k string) string {
	return fmt.Sprintf("%s:%s", r.origin, k)
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
