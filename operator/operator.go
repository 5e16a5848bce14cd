package operator

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-sqldao/dbexec"
	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/stat"
	"github.com/goliatone/go-sqldao/template"
)

// Operator is the compiled, immutable execution unit for one declared method.
// Query operators return []map[string]any, update operators int64, batch
// update operators []int64. Collaborators wired into an operator may carry
// internal mutable state (stats counters); the operator itself never changes
// after assembly.
type Operator interface {
	Execute(ctx context.Context, args []any) (any, error)
	Kind() OperationKind
	Cacheable() bool
}

// operatorBase carries the wiring shared by all six operator variants.
type operatorBase struct {
	key        descriptor.MethodKey
	bound      *template.Bound
	paramCount int
	table      *tableGenerator
	source     *dataSourceGenerator
	chain      invocationChain
	exec       dbexec.Executor
	stats      *stat.Counter

	// compatibleWithEmptyList turns an empty IN-list into an empty result
	// instead of an error.
	compatibleWithEmptyList bool
}

func (o *operatorBase) checkArity(args []any) error {
	if len(args) != o.paramCount {
		return fmt.Errorf("%s expects %d arguments, got %d", o.key, o.paramCount, len(args))
	}
	return nil
}

// render resolves the table, renders the template and runs the interceptor
// chain for one set of arguments.
func (o *operatorBase) render(ctx context.Context, args []any) (string, []any, error) {
	table, err := o.table.resolve(args)
	if err != nil {
		return "", nil, err
	}
	sql, vals, err := o.bound.Render(table, args)
	if err != nil {
		return "", nil, err
	}
	if err := o.chain.intercept(ctx, sql, vals); err != nil {
		return "", nil, err
	}
	return sql, vals, nil
}

func (o *operatorBase) db() (bun.IDB, error) {
	return o.source.resolve()
}

// queryOperator executes a read statement and returns the fetched rows.
type queryOperator struct {
	operatorBase
}

func (o *queryOperator) Kind() OperationKind { return OperationQuery }
func (o *queryOperator) Cacheable() bool     { return false }

func (o *queryOperator) Execute(ctx context.Context, args []any) (any, error) {
	rows, err := o.fetch(ctx, args)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (o *queryOperator) fetch(ctx context.Context, args []any) ([]map[string]any, error) {
	if err := o.checkArity(args); err != nil {
		return nil, err
	}
	sql, vals, err := o.render(ctx, args)
	if err != nil {
		if errors.Is(err, template.ErrEmptyIterable) && o.compatibleWithEmptyList {
			return []map[string]any{}, nil
		}
		return nil, err
	}
	db, err := o.db()
	if err != nil {
		return nil, err
	}
	return o.exec.Query(ctx, db, sql, vals)
}

// updateOperator executes a write statement and returns the affected count.
type updateOperator struct {
	operatorBase
}

func (o *updateOperator) Kind() OperationKind { return OperationUpdate }
func (o *updateOperator) Cacheable() bool     { return false }

func (o *updateOperator) Execute(ctx context.Context, args []any) (any, error) {
	return o.update(ctx, args)
}

func (o *updateOperator) update(ctx context.Context, args []any) (int64, error) {
	if err := o.checkArity(args); err != nil {
		return 0, err
	}
	sql, vals, err := o.render(ctx, args)
	if err != nil {
		if errors.Is(err, template.ErrEmptyIterable) && o.compatibleWithEmptyList {
			return 0, nil
		}
		return 0, err
	}
	db, err := o.db()
	if err != nil {
		return 0, err
	}
	return o.exec.Exec(ctx, db, sql, vals)
}

// batchUpdateOperator executes a write statement once per element of the
// method's single iterable parameter.
type batchUpdateOperator struct {
	operatorBase
}

func (o *batchUpdateOperator) Kind() OperationKind { return OperationBatchUpdate }
func (o *batchUpdateOperator) Cacheable() bool     { return false }

func (o *batchUpdateOperator) Execute(ctx context.Context, args []any) (any, error) {
	return o.batchUpdate(ctx, args)
}

func (o *batchUpdateOperator) batchUpdate(ctx context.Context, args []any) ([]int64, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s expects 1 collection argument, got %d", o.key, len(args))
	}
	elems, err := template.Elements(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.key, err)
	}
	if len(elems) == 0 {
		if o.compatibleWithEmptyList {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("%s: %w", o.key, template.ErrEmptyIterable)
	}

	// Shard-aware rendering: the SQL may differ per element, so render each
	// one and only use the batched execution path when they all agree.
	sqls := make([]string, len(elems))
	argSets := make([][]any, len(elems))
	uniform := true
	for i, elem := range elems {
		sql, vals, err := o.render(ctx, []any{elem})
		if err != nil {
			return nil, err
		}
		sqls[i] = sql
		argSets[i] = vals
		if sql != sqls[0] {
			uniform = false
		}
	}

	db, err := o.db()
	if err != nil {
		return nil, err
	}
	if uniform {
		return o.exec.ExecBatch(ctx, db, sqls[0], argSets)
	}
	out := make([]int64, len(elems))
	for i := range elems {
		n, err := o.exec.Exec(ctx, db, sqls[i], argSets[i])
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}
