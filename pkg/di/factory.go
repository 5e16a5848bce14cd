// Package di wires the operator core together: data sources, cache handlers,
// interceptors, executor and statistics, exposed through a single Factory
// that creates per-contract handles.
package di

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/goliatone/go-sqldao/cache"
	"github.com/goliatone/go-sqldao/dbexec"
	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/internal/cacheinfra"
	"github.com/goliatone/go-sqldao/operator"
	"github.com/goliatone/go-sqldao/stat"
)

// Factory creates contract handles sharing one set of collaborators. Stats
// counters live in a factory-wide registry, so every handle created for the
// same declared method reports into the same counter.
type Factory struct {
	sources operator.DataSourceFactory
	handler cache.Handler
	chain   *operator.InterceptorChain
	exec    dbexec.Executor
	codec   cache.KeyCodec
	config  operator.Config
	lazy    bool
	logger  *slog.Logger
	stats   *stat.Registry
}

// Option configures a Factory.
type Option func(*Factory) error

// WithDefaultCacheHandler sets the handler methods with cache directives use
// unless Create overrides it.
func WithDefaultCacheHandler(h cache.Handler) Option {
	return func(f *Factory) error {
		if h == nil {
			return fmt.Errorf("cache handler can't be nil")
		}
		f.handler = h
		return nil
	}
}

// WithInProcessCache builds the sturdyc-backed in-process handler and sets it
// as the default cache handler.
func WithInProcessCache(cfg cache.Config) Option {
	return func(f *Factory) error {
		h, err := cacheinfra.NewSturdycHandler(cfg)
		if err != nil {
			return err
		}
		f.handler = h
		return nil
	}
}

// WithRedisCache builds the Redis-backed handler and sets it as the default
// cache handler.
func WithRedisCache(cfg cache.RedisConfig) Option {
	return func(f *Factory) error {
		h, err := cacheinfra.NewRedisHandler(cfg)
		if err != nil {
			return err
		}
		f.handler = h
		return nil
	}
}

// WithInterceptor appends interceptors to the chain shared by all operators.
func WithInterceptor(interceptors ...operator.Interceptor) Option {
	return func(f *Factory) error {
		for _, i := range interceptors {
			if i == nil {
				return fmt.Errorf("interceptor can't be nil")
			}
			f.chain.Add(i)
		}
		return nil
	}
}

// WithExecutor replaces the default database executor.
func WithExecutor(e dbexec.Executor) Option {
	return func(f *Factory) error {
		if e == nil {
			return fmt.Errorf("executor can't be nil")
		}
		f.exec = e
		return nil
	}
}

// WithKeyCodec replaces the default cache key codec.
func WithKeyCodec(c cache.KeyCodec) Option {
	return func(f *Factory) error {
		if c == nil {
			return fmt.Errorf("key codec can't be nil")
		}
		f.codec = c
		return nil
	}
}

// WithConfig replaces the operator configuration.
func WithConfig(cfg operator.Config) Option {
	return func(f *Factory) error {
		f.config = cfg
		return nil
	}
}

// WithLazyInit sets the default initialization mode for Create. Lazy handles
// compile methods on first call; eager handles compile everything up front
// and fail fast.
func WithLazyInit(lazy bool) Option {
	return func(f *Factory) error {
		f.lazy = lazy
		return nil
	}
}

// WithLogger sets the logger used for compile and lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) error {
		if l == nil {
			return fmt.Errorf("logger can't be nil")
		}
		f.logger = l
		return nil
	}
}

// New creates a Factory around a data source factory.
func New(sources operator.DataSourceFactory, opts ...Option) (*Factory, error) {
	if sources == nil {
		return nil, fmt.Errorf("data source factory can't be nil")
	}
	f := &Factory{
		sources: sources,
		chain:   operator.NewInterceptorChain(),
		exec:    dbexec.New(),
		codec:   cache.NewDefaultKeyCodec(),
		config:  operator.DefaultConfig(),
		logger:  slog.Default(),
		stats:   stat.NewRegistry(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// CreateOption adjusts one Create call.
type CreateOption func(*createOptions)

type createOptions struct {
	handler    cache.Handler
	hasHandler bool
	lazy       *bool
}

// WithCacheHandler overrides the factory's default cache handler for this
// contract only.
func WithCacheHandler(h cache.Handler) CreateOption {
	return func(o *createOptions) {
		o.handler = h
		o.hasHandler = true
	}
}

// Lazy overrides the factory's initialization mode for this contract only.
func Lazy(lazy bool) CreateOption {
	return func(o *createOptions) {
		o.lazy = &lazy
	}
}

// Create builds the invocation handle for a contract. With eager
// initialization (the default) every declared method compiles here and any
// failure aborts creation; lazy handles defer compilation to first use.
func (f *Factory) Create(contract *descriptor.Contract, opts ...CreateOption) (*operator.Handle, error) {
	if contract == nil {
		return nil, fmt.Errorf("contract can't be nil")
	}

	var co createOptions
	for _, opt := range opts {
		opt(&co)
	}

	handler := f.handler
	if co.hasHandler {
		handler = co.handler
	}
	if contract.Cache != nil && handler == nil {
		return nil, fmt.Errorf("contract %s declares a cache directive but no cache handler is configured", contract.Name)
	}

	opFactory := operator.NewFactory(f.sources, handler, f.chain, f.exec, f.codec, f.config)
	handle, err := operator.NewHandle(contract, opFactory, f.stats, f.logger)
	if err != nil {
		return nil, err
	}

	lazy := f.lazy
	if co.lazy != nil {
		lazy = *co.lazy
	}
	if !lazy {
		if err := handle.Warm(); err != nil {
			return nil, err
		}
	}
	return handle, nil
}

// CacheHandler returns the default cache handler, if any.
func (f *Factory) CacheHandler() cache.Handler { return f.handler }

// DataSources returns the data source factory.
func (f *Factory) DataSources() operator.DataSourceFactory { return f.sources }

// AllStats returns counter snapshots for every method any handle has seen.
func (f *Factory) AllStats() []stat.Stats { return f.stats.All() }

// ResetAllStats zeroes every counter.
func (f *Factory) ResetAllStats() { f.stats.ResetAll() }

// instances tracks factories the host application chose to register, purely
// for multi-instance diagnostics.
var instances struct {
	mu   sync.Mutex
	list []*Factory
}

// RegisterInstance records a factory for diagnostics. Most applications want
// exactly one factory; registering a second logs a warning.
func RegisterInstance(f *Factory) {
	instances.mu.Lock()
	defer instances.mu.Unlock()
	instances.list = append(instances.list, f)
	if len(instances.list) > 1 {
		f.logger.Warn("multiple factory instances registered, one is recommended",
			"count", len(instances.list))
	}
}

// Instances returns the registered factories.
func Instances() []*Factory {
	instances.mu.Lock()
	defer instances.mu.Unlock()
	out := make([]*Factory, len(instances.list))
	copy(out, instances.list)
	return out
}
