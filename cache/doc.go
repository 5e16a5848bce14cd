// Package cache defines the cache-handler contract cached operators depend on,
// together with key building and configuration types.
//
// # Overview
//
// The package exports:
//
//   - Handler: key-based get/put/remove storage, single and bulk
//   - KeyCodec: deterministic encoding of runtime values into key suffixes
//   - BuildKey / DefaultPrefix: key assembly with length-safe digesting
//   - Null / IsNull: the absent-row marker used for null-object caching
//   - Config / RedisConfig: settings for the built-in handler implementations
//
// The built-in handlers (an in-process sturdyc-backed store and a Redis-backed
// store) are constructed through the factory in pkg/di; this package carries
// only the contracts so custom backends can be plugged in without pulling in
// either implementation.
//
// # Keys
//
// A physical cache key is prefix + ":" + encoded suffix. The prefix comes from
// the method's cache directive, or DefaultPrefix (snake_cased contract and
// method names) when the directive does not set one. Suffixes are encoded by a
// KeyCodec; the default codec prints scalars directly and falls back to JSON
// for structured values. Keys longer than the backend-safe limit are digested
// with xxhash, keeping the readable prefix.
//
// # Null-object caching
//
// When a cache directive enables null-object caching, operators store Null
// under keys whose rows do not exist. Handlers treat the marker as an opaque
// value; IsNull recognizes it when read back. The Redis handler encodes the
// marker explicitly so it survives the serialization round trip.
package cache
