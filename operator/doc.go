// Package operator compiles declared data-access methods into executable,
// optionally cached operators and dispatches calls to them.
//
// # Overview
//
// A declared method is a SQL template plus a parameter shape and optional
// cache directives (see the descriptor package). On first use the factory
// compiles the method:
//
//  1. the template is parsed and its placeholders bound against the shape
//  2. the operation kind is classified: read statements are queries; a write
//     statement with exactly one iterable parameter and no IN-list
//     placeholder is a batch update; every other write is an update
//  3. batch updates re-bind against a synthesized single-element shape
//  4. table and data-source generators are resolved (static names or
//     functions of a parameter's runtime value)
//  5. the cache policy decides whether the plain or the cached operator
//     variant is assembled
//
// The six variants ({query, update, batch update} x {plain, cached}) share
// the Operator contract: Execute(ctx, args) returning []map[string]any,
// int64 or []int64.
//
// # Resolution cache
//
// Compilation happens at most once per method. ResolutionCache provides
// single-flight initialization per method key: concurrent first callers
// share one compilation, published operators are read without locking, and
// failed attempts are never memoized, so a misconfiguration fixed between
// calls heals without restart. Eager initialization (Handle.Warm) compiles
// every method up front and fails fast.
//
// # Errors
//
// Compile-time failures are DescriptionError (missing or malformed
// template), BindingError (placeholder does not resolve against the shape)
// and ConfigurationError (cache directive without a handler, unresolvable
// table or shard, unknown batch element type). Execution-time errors from
// the database and cache collaborators pass through unchanged.
package operator
