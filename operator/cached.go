package operator

import (
	"context"
	"fmt"

	"github.com/goliatone/go-sqldao/cache"
)

// cachedQueryOperator wraps the plain query path with cache consultation.
//
// Single-key methods cache the whole result set under one key. Multi-key
// methods (iterable key parameter) apply per-key independent hit/miss
// accounting: hits come from the cache, misses are fetched in one database
// call restricted to the missing key values, fetched rows are mapped back to
// their keys via the policy's KeyColumn and stored individually, and the
// merged result follows the requested key order. With null-object caching
// on, keys that fetched no rows store an absent marker so they stop hitting
// the database.
type cachedQueryOperator struct {
	queryOperator
	driver *cacheDriver
}

func (o *cachedQueryOperator) Cacheable() bool { return true }

func (o *cachedQueryOperator) Execute(ctx context.Context, args []any) (any, error) {
	if err := o.checkArity(args); err != nil {
		return nil, err
	}
	if o.driver.policy.MultipleKeys {
		return o.executeMulti(ctx, args)
	}
	return o.executeSingle(ctx, args)
}

func (o *cachedQueryOperator) executeSingle(ctx context.Context, args []any) (any, error) {
	key, err := o.driver.singleKey(args)
	if err != nil {
		return nil, err
	}

	v, ok, err := o.driver.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		if cache.IsNull(v) {
			o.stats.RecordHits(1)
			return []map[string]any{}, nil
		}
		if rows, ok := rowsFromCache(v); ok {
			o.stats.RecordHits(1)
			return rows, nil
		}
		// Unrecognizable cached shape, treat as a miss and overwrite below.
	}
	o.stats.RecordMisses(1)

	rows, err := o.fetch(ctx, args)
	if err != nil {
		return nil, err
	}
	// Without null-object caching an empty result is not stored, so the next
	// call retries the database.
	switch {
	case len(rows) > 0:
		err = o.driver.set(ctx, key, rows)
	case o.driver.policy.CacheNullObject:
		err = o.driver.setAbsent(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (o *cachedQueryOperator) executeMulti(ctx context.Context, args []any) (any, error) {
	keys, suffixes, err := o.driver.multiKeys(args)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		if o.compatibleWithEmptyList {
			return []map[string]any{}, nil
		}
		return nil, fmt.Errorf("%s: empty cache key collection", o.key)
	}

	cached, err := o.driver.getBulk(ctx, keys)
	if err != nil {
		return nil, err
	}

	rowsByKey := make(map[string][]map[string]any, len(keys))
	var missing []any
	var missingKeys []string
	for i, key := range keys {
		v, ok := cached[key]
		if !ok {
			missing = append(missing, suffixes[i])
			missingKeys = append(missingKeys, key)
			continue
		}
		if cache.IsNull(v) {
			rowsByKey[key] = nil
			continue
		}
		if rows, ok := rowsFromCache(v); ok {
			rowsByKey[key] = rows
			continue
		}
		missing = append(missing, suffixes[i])
		missingKeys = append(missingKeys, key)
	}
	o.stats.RecordHits(len(keys) - len(missingKeys))
	o.stats.RecordMisses(len(missingKeys))

	if len(missing) > 0 {
		// Re-run the query against only the missing key values.
		subset := make([]any, len(args))
		copy(subset, args)
		subset[o.driver.policy.keyPos] = missing

		fetched, err := o.fetch(ctx, subset)
		if err != nil {
			return nil, err
		}

		grouped := make(map[string][]map[string]any, len(missing))
		for _, row := range fetched {
			cv, ok := row[o.driver.policy.KeyColumn]
			if !ok {
				return nil, fmt.Errorf("%s: result rows have no column %q to map cache keys",
					o.key, o.driver.policy.KeyColumn)
			}
			enc := o.driver.codec.EncodeKeyValue(cv)
			grouped[enc] = append(grouped[enc], row)
		}

		for i, suffix := range missing {
			key := missingKeys[i]
			rows := grouped[o.driver.codec.EncodeKeyValue(suffix)]
			rowsByKey[key] = rows
			if len(rows) == 0 {
				if o.driver.policy.CacheNullObject {
					if err := o.driver.setAbsent(ctx, key); err != nil {
						return nil, err
					}
				}
				continue
			}
			if err := o.driver.set(ctx, key, rows); err != nil {
				return nil, err
			}
		}
	}

	out := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, rowsByKey[key]...)
	}
	return out, nil
}

// cachedUpdateOperator runs the plain update and invalidates the affected
// key(s) after a successful write.
type cachedUpdateOperator struct {
	updateOperator
	driver *cacheDriver
}

func (o *cachedUpdateOperator) Cacheable() bool { return true }

func (o *cachedUpdateOperator) Execute(ctx context.Context, args []any) (any, error) {
	n, err := o.update(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := invalidate(ctx, o.driver, args); err != nil {
		return nil, err
	}
	return n, nil
}

// cachedBatchUpdateOperator runs the plain batch update and invalidates one
// key per element after a successful write.
type cachedBatchUpdateOperator struct {
	batchUpdateOperator
	driver *cacheDriver
}

func (o *cachedBatchUpdateOperator) Cacheable() bool { return true }

func (o *cachedBatchUpdateOperator) Execute(ctx context.Context, args []any) (any, error) {
	counts, err := o.batchUpdate(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := invalidate(ctx, o.driver, args); err != nil {
		return nil, err
	}
	return counts, nil
}

func invalidate(ctx context.Context, d *cacheDriver, args []any) error {
	if d.policy.MultipleKeys {
		keys, _, err := d.multiKeys(args)
		if err != nil {
			return err
		}
		return d.delete(ctx, keys...)
	}
	key, err := d.singleKey(args)
	if err != nil {
		return err
	}
	return d.delete(ctx, key)
}

// rowsFromCache coerces a cached value back into row maps. In-process
// handlers return the original []map[string]any; serializing handlers may
// return []any with map elements after the decode round trip.
func rowsFromCache(v any) ([]map[string]any, bool) {
	switch rows := v.(type) {
	case []map[string]any:
		return rows, true
	case []any:
		out := make([]map[string]any, 0, len(rows))
		for _, r := range rows {
			m, ok := r.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}
