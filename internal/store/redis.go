// redis.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping redis: %v", ErrUnavailable, err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromURL accepts redis:// and rediss:// URLs, which is how
// hosted providers usually hand out credentials.
func NewRedisStoreFromURL(rawURL string) (*RedisStore, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(options)
}

func (r *RedisStore) Put(ctx context.Context, id, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %s", ttl)
	}

	ok, err := r.client.SetNX(ctx, secretKey(id), value, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: set: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

// Take relies on GETDEL, so two readers can never both see the value.
func (r *RedisStore) Take(ctx context.Context, id string) (string, error) {
	value, err := r.client.GetDel(ctx, secretKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: getdel: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
