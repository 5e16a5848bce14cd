package cache

import (
	"context"
	"time"
)

// Handler is the storage contract cached operators speak to. Implementations
// decide the medium (in-process, Redis, layered); the operator core only ever
// issues key-based get/put/remove calls.
type Handler interface {
	// Get returns the value stored under key and whether it was present.
	Get(ctx context.Context, key string) (any, bool, error)

	// GetBulk returns the present subset of keys. Missing keys are simply
	// absent from the returned map, not an error.
	GetBulk(ctx context.Context, keys []string) (map[string]any, error)

	// Set stores value under key. A zero ttl means the handler's default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes the given keys. Deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
}

// nullObject is the sentinel stored for rows that do not exist, so repeated
// lookups for absent records stop hitting the database.
type nullObject struct{}

// Null is the absent-row marker value. Handlers store and return it like any
// other value; IsNull recognizes it on the way out.
var Null any = nullObject{}

// IsNull reports whether a cached value is the absent-row marker.
func IsNull(v any) bool {
	_, ok := v.(nullObject)
	return ok
}
