package operator

import (
	"errors"

	"github.com/goliatone/go-sqldao/cache"
	"github.com/goliatone/go-sqldao/dbexec"
	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/stat"
	"github.com/goliatone/go-sqldao/template"
)

// Config carries cross-cutting execution behavior shared by all operators a
// factory assembles.
type Config struct {
	// CompatibleWithEmptyList makes empty IN-list collections produce empty
	// results instead of errors.
	CompatibleWithEmptyList bool
}

// DefaultConfig returns the default factory configuration.
func DefaultConfig() Config {
	return Config{CompatibleWithEmptyList: true}
}

// Factory assembles executable operators for declared methods. One factory
// serves every contract created from the same top-level configuration; it
// holds only immutable collaborators and is safe for concurrent use.
type Factory struct {
	sources DataSourceFactory
	handler cache.Handler
	chain   *InterceptorChain
	exec    dbexec.Executor
	codec   cache.KeyCodec
	config  Config
}

// NewFactory wires an operator factory. handler may be nil when no caching is
// configured; chain may be nil for no interceptors.
func NewFactory(sources DataSourceFactory, handler cache.Handler, chain *InterceptorChain,
	exec dbexec.Executor, codec cache.KeyCodec, cfg Config) *Factory {
	if exec == nil {
		exec = dbexec.New()
	}
	if codec == nil {
		codec = cache.NewDefaultKeyCodec()
	}
	return &Factory{
		sources: sources,
		handler: handler,
		chain:   chain,
		exec:    exec,
		codec:   codec,
		config:  cfg,
	}
}

// Assemble compiles one declared method into its operator:
//
//  1. parse the SQL template and bind its placeholders against the declared
//     parameter shape
//  2. classify the operation kind; batch updates re-bind against the
//     normalized single-element shape
//  3. resolve the table and data-source generators
//  4. resolve the cache policy and pick the plain or cached variant
//  5. wire interceptors, executor and the shared stats counter
//
// All compile-time failures are DescriptionError, BindingError or
// ConfigurationError; nothing touches the database here.
func (f *Factory) Assemble(contract *descriptor.Contract, m *descriptor.Method, counter *stat.Counter) (Operator, error) {
	key := contract.Key(m.Name)

	if m.SQL == "" {
		return nil, &DescriptionError{Method: key, Message: "method declares no SQL template"}
	}
	tmpl, err := template.Parse(m.SQL)
	if err != nil {
		return nil, &DescriptionError{Method: key, Message: "malformed SQL template", Cause: err}
	}

	declared, err := descriptor.NormalizeNames(m.Parameters)
	if err != nil {
		return nil, &DescriptionError{Method: key, Message: "invalid parameter declaration", Cause: err}
	}

	bound, err := bind(key, tmpl, declared)
	if err != nil {
		return nil, err
	}

	kind := classifyOperation(bound, declared)
	counter.SetOperationKind(kind.String())

	// The shape operators render with; batch updates render one element at a
	// time, so their binding collapses to the element descriptor.
	shape := declared
	if kind == OperationBatchUpdate {
		shape, err = normalizeForBatch(key, declared)
		if err != nil {
			return nil, err
		}
		bound, err = bind(key, tmpl, shape)
		if err != nil {
			return nil, err
		}
	}

	tableGen, err := newTableGenerator(key, m, contract, tmpl, shape)
	if err != nil {
		return nil, err
	}

	sourceGen := &dataSourceGenerator{
		factory:  f.sources,
		database: contract.Database,
		write:    kind != OperationQuery,
	}

	// Cache keys derive from the caller-facing shape, not the normalized one.
	policy, err := resolveCachePolicy(key, m, contract, f.handler, declared)
	if err != nil {
		return nil, err
	}

	base := operatorBase{
		key:                     key,
		bound:                   bound,
		paramCount:              len(declared),
		table:                   tableGen,
		source:                  sourceGen,
		chain:                   invocationChain{chain: f.chain, method: key, kind: tmpl.Kind()},
		exec:                    f.exec,
		stats:                   counter,
		compatibleWithEmptyList: f.config.CompatibleWithEmptyList,
	}

	if policy == nil {
		switch kind {
		case OperationQuery:
			return &queryOperator{operatorBase: base}, nil
		case OperationUpdate:
			return &updateOperator{operatorBase: base}, nil
		default:
			return &batchUpdateOperator{operatorBase: base}, nil
		}
	}

	counter.SetCacheable(true)
	counter.SetUseMultipleKeys(policy.MultipleKeys)
	counter.SetCacheNullObject(policy.CacheNullObject)

	driver := &cacheDriver{policy: policy, handler: f.handler, codec: f.codec}
	switch kind {
	case OperationQuery:
		return &cachedQueryOperator{queryOperator: queryOperator{operatorBase: base}, driver: driver}, nil
	case OperationUpdate:
		return &cachedUpdateOperator{updateOperator: updateOperator{operatorBase: base}, driver: driver}, nil
	default:
		return &cachedBatchUpdateOperator{batchUpdateOperator: batchUpdateOperator{operatorBase: base}, driver: driver}, nil
	}
}

func bind(key descriptor.MethodKey, tmpl *template.Template, params []descriptor.ParameterDescriptor) (*template.Bound, error) {
	tp := make([]template.Parameter, len(params))
	for i, p := range params {
		tp[i] = template.Parameter{Position: p.Position, Name: p.Name, Iterable: p.Iterable()}
	}
	bound, err := tmpl.Bind(tp)
	if err != nil {
		var be *template.BindError
		if errors.As(err, &be) {
			return nil, &BindingError{Method: key, Message: "unresolved placeholder", Cause: err}
		}
		return nil, &BindingError{Method: key, Message: "template binding failed", Cause: err}
	}
	return bound, nil
}
