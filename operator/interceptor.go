package operator

import (
	"context"

	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/template"
)

// Statement is the rendered SQL handed to interceptors immediately before
// execution. Interceptors may inspect it (auditing, slow-query logging) or
// veto the call by returning an error; they must not retain Args after
// returning.
type Statement struct {
	Method descriptor.MethodKey
	Kind   template.StatementKind
	SQL    string
	Args   []any
}

// Interceptor observes or vetoes statements about to execute.
type Interceptor interface {
	Intercept(ctx context.Context, stmt *Statement) error
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc func(ctx context.Context, stmt *Statement) error

func (f InterceptorFunc) Intercept(ctx context.Context, stmt *Statement) error {
	return f(ctx, stmt)
}

// InterceptorChain holds interceptors in registration order. The chain is
// configured before any operator compiles and must not change afterwards.
type InterceptorChain struct {
	interceptors []Interceptor
}

// NewInterceptorChain creates a chain with the given interceptors.
func NewInterceptorChain(interceptors ...Interceptor) *InterceptorChain {
	return &InterceptorChain{interceptors: interceptors}
}

// Add appends an interceptor.
func (c *InterceptorChain) Add(i Interceptor) *InterceptorChain {
	c.interceptors = append(c.interceptors, i)
	return c
}

func (c *InterceptorChain) run(ctx context.Context, stmt *Statement) error {
	for _, i := range c.interceptors {
		if err := i.Intercept(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// invocationChain is an interceptor chain scoped to one compiled method:
// it stamps the method identity and statement kind on every statement.
type invocationChain struct {
	chain  *InterceptorChain
	method descriptor.MethodKey
	kind   template.StatementKind
}

func (c invocationChain) intercept(ctx context.Context, sql string, args []any) error {
	if c.chain == nil || len(c.chain.interceptors) == 0 {
		return nil
	}
	return c.chain.run(ctx, &Statement{
		Method: c.method,
		Kind:   c.kind,
		SQL:    sql,
		Args:   args,
	})
}
