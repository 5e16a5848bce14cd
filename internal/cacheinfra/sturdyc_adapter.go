// Package cacheinfra provides the built-in cache.Handler implementations:
// an in-process store backed by sturdyc and an out-of-process store backed
// by Redis.
package cacheinfra

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-sqldao/cache"
)

// Interface assertion to ensure the adapter satisfies the handler contract.
var _ cache.Handler = (*SturdycHandler)(nil)

// SturdycHandler adapts a sturdyc client to the cache.Handler contract.
//
// sturdyc applies one TTL per client, so the per-call ttl argument is ignored;
// configure the TTL through cache.Config instead.
//
// Version compatibility note: this implementation assumes sturdyc v1.x API.
type SturdycHandler struct {
	client *sturdyc.Client[any]
}

// NewSturdycHandler validates the configuration and initializes a sturdyc
// client with the provided settings.
func NewSturdycHandler(cfg cache.Config) (*SturdycHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		opts...,
	)
	return &SturdycHandler{client: client}, nil
}

// Get returns the value stored under key.
func (h *SturdycHandler) Get(ctx context.Context, key string) (any, bool, error) {
	v, ok := h.client.Get(key)
	return v, ok, nil
}

// GetBulk returns the present subset of keys.
func (h *SturdycHandler) GetBulk(ctx context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := h.client.Get(key); ok {
			out[key] = v
		}
	}
	return out, nil
}

// Set stores value under key. The ttl argument is ignored, see the type docs.
func (h *SturdycHandler) Set(ctx context.Context, key string, value any, _ time.Duration) error {
	h.client.Set(key, value)
	return nil
}

// Delete removes the given keys.
func (h *SturdycHandler) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		h.client.Delete(key)
	}
	return nil
}

// Size returns the number of live entries, for diagnostics.
func (h *SturdycHandler) Size() int {
	return h.client.Size()
}
