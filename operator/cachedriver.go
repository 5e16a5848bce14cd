package operator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-sqldao/cache"
	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/template"
)

// CachePolicy is the compiled caching decision for one method: the key
// namespace, which parameter's value forms the key suffix, and the multi-key
// and null-object flags. Absence of a policy means the plain operator
// variant runs.
type CachePolicy struct {
	Prefix          string
	Expire          time.Duration
	CacheNullObject bool

	// MultipleKeys is set when the key parameter is iterable: the method
	// caches one physical entry per element.
	MultipleKeys bool

	// KeyColumn maps fetched rows back to their key for multi-key methods.
	KeyColumn string

	keyPos  int
	keyPath []string
}

// resolveCachePolicy inspects the method- and contract-level cache directives
// and decides whether a cached operator variant is required.
//
// Precedence: a cache-ignore directive on the method wins over everything.
// Otherwise the method's own directive applies, falling back to the
// contract-level one. A directive without a configured handler is a
// compile-time configuration error, surfaced before first execution.
func resolveCachePolicy(key descriptor.MethodKey, m *descriptor.Method, contract *descriptor.Contract,
	handler cache.Handler, params []descriptor.ParameterDescriptor) (*CachePolicy, error) {

	if m.CacheIgnored {
		return nil, nil
	}
	spec := m.Cache
	if spec == nil {
		spec = contract.Cache
	}
	if spec == nil {
		return nil, nil
	}
	if handler == nil {
		return nil, &ConfigurationError{
			Method:  key,
			Message: "cache directive present but no cache handler configured",
		}
	}

	keyParam := spec.KeyParam
	if keyParam == "" {
		if len(params) != 1 {
			return nil, &ConfigurationError{
				Method:  key,
				Message: "cache directive must name its key parameter when the method takes more than one",
			}
		}
		keyParam = params[0].Name
	}

	parts := strings.Split(keyParam, ".")
	policy := &CachePolicy{
		Prefix:          spec.Prefix,
		Expire:          spec.Expire,
		CacheNullObject: spec.CacheNullObject,
		KeyColumn:       spec.KeyColumn,
		keyPos:          -1,
		keyPath:         parts[1:],
	}
	for _, p := range params {
		if p.Name == parts[0] {
			policy.keyPos = p.Position
			policy.MultipleKeys = p.Iterable() && len(parts) == 1
			break
		}
	}
	if policy.keyPos < 0 {
		return nil, &ConfigurationError{
			Method:  key,
			Message: fmt.Sprintf("cache key parameter %q does not match any declared parameter", keyParam),
		}
	}
	if policy.MultipleKeys && policy.KeyColumn == "" {
		return nil, &ConfigurationError{
			Method:  key,
			Message: "multi-key caching requires KeyColumn to map rows back to their keys",
		}
	}
	if policy.Prefix == "" {
		policy.Prefix = cache.DefaultPrefix(key.Contract, key.Method)
	}
	return policy, nil
}

// cacheDriver performs the key arithmetic and storage calls for the cached
// operator variants.
type cacheDriver struct {
	policy  *CachePolicy
	handler cache.Handler
	codec   cache.KeyCodec
}

// singleKey builds the one physical key for a single-key method call.
func (d *cacheDriver) singleKey(args []any) (string, error) {
	if d.policy.keyPos >= len(args) {
		return "", fmt.Errorf("cache key parameter %d out of range for %d arguments", d.policy.keyPos, len(args))
	}
	v, err := template.ResolveValue(args[d.policy.keyPos], d.policy.keyPath)
	if err != nil {
		return "", fmt.Errorf("resolve cache key value: %w", err)
	}
	return cache.BuildKey(d.policy.Prefix, d.codec.EncodeKeyValue(v)), nil
}

// multiKeys builds one physical key per element of the iterable key
// parameter, returning the keys and the raw suffix values in call order.
func (d *cacheDriver) multiKeys(args []any) ([]string, []any, error) {
	if d.policy.keyPos >= len(args) {
		return nil, nil, fmt.Errorf("cache key parameter %d out of range for %d arguments", d.policy.keyPos, len(args))
	}
	suffixes, err := template.Elements(args[d.policy.keyPos])
	if err != nil {
		return nil, nil, fmt.Errorf("cache key parameter: %w", err)
	}
	keys := make([]string, len(suffixes))
	for i, s := range suffixes {
		keys[i] = cache.BuildKey(d.policy.Prefix, d.codec.EncodeKeyValue(s))
	}
	return keys, suffixes, nil
}

func (d *cacheDriver) get(ctx context.Context, key string) (any, bool, error) {
	return d.handler.Get(ctx, key)
}

func (d *cacheDriver) getBulk(ctx context.Context, keys []string) (map[string]any, error) {
	return d.handler.GetBulk(ctx, keys)
}

func (d *cacheDriver) set(ctx context.Context, key string, value any) error {
	return d.handler.Set(ctx, key, value, d.policy.Expire)
}

func (d *cacheDriver) setAbsent(ctx context.Context, key string) error {
	return d.handler.Set(ctx, key, cache.Null, d.policy.Expire)
}

func (d *cacheDriver) delete(ctx context.Context, keys ...string) error {
	return d.handler.Delete(ctx, keys...)
}
