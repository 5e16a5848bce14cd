package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-sqldao/cache"
)

var _ cache.Handler = (*RedisHandler)(nil)

// Payload tags so the absent-row marker survives the serialization round trip.
const (
	payloadNull  = 0x00
	payloadValue = 0x01
)

// RedisHandler stores cache entries in Redis, encoding values with msgpack.
type RedisHandler struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHandler validates the configuration and connects a Redis client.
// The connection itself is lazy; use Ping to verify reachability up front.
func NewRedisHandler(cfg cache.RedisConfig) (*RedisHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return &RedisHandler{client: client, ttl: cfg.TTL}, nil
}

// Ping verifies the Redis connection.
func (h *RedisHandler) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (h *RedisHandler) Close() error {
	return h.client.Close()
}

// Get returns the value stored under key.
func (h *RedisHandler) Get(ctx context.Context, key string) (any, bool, error) {
	data, err := h.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	v, err := decodePayload(data)
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// GetBulk fetches all keys in one MGET and returns the present subset.
func (h *RedisHandler) GetBulk(ctx context.Context, keys []string) (map[string]any, error) {
	if len(keys) == 0 {
		return map[string]any{}, nil
	}
	values, err := h.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	out := make(map[string]any, len(keys))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		v, err := decodePayload([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("redis mget %s: %w", keys[i], err)
		}
		out[keys[i]] = v
	}
	return out, nil
}

// Set stores value under key. A zero ttl uses the configured default.
func (h *RedisHandler) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := encodePayload(value)
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = h.ttl
	}
	if err := h.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys.
func (h *RedisHandler) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := h.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func encodePayload(value any) ([]byte, error) {
	if cache.IsNull(value) {
		return []byte{payloadNull}, nil
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return nil, err
	}
	return append([]byte{payloadValue}, data...), nil
}

func decodePayload(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	switch data[0] {
	case payloadNull:
		return cache.Null, nil
	case payloadValue:
		var v any
		if err := msgpack.Unmarshal(data[1:], &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown payload tag %#x", data[0])
	}
}
