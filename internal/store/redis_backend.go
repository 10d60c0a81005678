package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps values as plain Redis strings without expiry and
// announces every write on a pub/sub channel so that other processes
// sharing the server can resynchronise.
type RedisBackend struct {
	client *redis.Client
	origin string
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{
		client: client,
		origin: uuid.NewString(),
	}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	if err := r.client.Publish(ctx, changeChannel(key), r.origin).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Watch(ctx context.Context, key string, onChange func()) error {
	sub := r.client.Subscribe(ctx, changeChannel(key))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe failed: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload == r.origin {
				continue
			}
			onChange()
		}
	}
}

func changeChannel(key string) string {
	return fmt.Sprintf("%s:changed", key)
}
