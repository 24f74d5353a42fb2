package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreRedisJSON stores obj as JSON under key. A zero ttl keeps the key forever.
func StoreRedisJSON[T any](ctx context.Context, client redis.UniversalClient, key string, obj T, ttl time.Duration) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, ttl).Err()
}

// LoadRedisJSON decodes the JSON stored under key into out and reports whether the key existed.
func LoadRedisJSON[T any](ctx context.Context, client redis.UniversalClient, key string, out *T) (bool, error) {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func RemoveRedisKey(ctx context.Context, client redis.UniversalClient, key string) error {
	return client.Del(ctx, key).Err()
}
