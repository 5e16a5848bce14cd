// Package dbexec executes rendered SQL against a bun database handle.
//
// The operator core renders templates into plain SQL with '?' markers and a
// positional argument list; this package is the only place that touches the
// database driver. Queries return generic row maps so results can be cached
// and serialized without model types.
package dbexec

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Executor runs rendered statements. Implementations may block; cancellation
// is carried by the context.
type Executor interface {
	// Query runs a read statement and returns one map per row.
	Query(ctx context.Context, db bun.IDB, query string, args []any) ([]map[string]any, error)

	// Exec runs a write statement and returns the affected row count.
	Exec(ctx context.Context, db bun.IDB, query string, args []any) (int64, error)

	// ExecBatch runs the same write statement once per argument set and
	// returns the affected row count per set.
	ExecBatch(ctx context.Context, db bun.IDB, query string, argSets [][]any) ([]int64, error)
}

// Interface assertion for the default implementation.
var _ Executor = (*BunExecutor)(nil)

// BunExecutor is the stock Executor on top of bun.IDB. It works with both a
// root *bun.DB and a transaction, since both satisfy bun.IDB.
type BunExecutor struct{}

// New returns the default executor.
func New() *BunExecutor {
	return &BunExecutor{}
}

// Query implements Executor.
func (e *BunExecutor) Query(ctx context.Context, db bun.IDB, query string, args []any) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	var out []map[string]any
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	return out, nil
}

// Exec implements Executor.
func (e *BunExecutor) Exec(ctx context.Context, db bun.IDB, query string, args []any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report affected rows; the statement still ran.
		return 0, nil
	}
	return affected, nil
}

// ExecBatch implements Executor. Sets run sequentially; the first failure
// aborts the batch and reports which set failed.
func (e *BunExecutor) ExecBatch(ctx context.Context, db bun.IDB, query string, argSets [][]any) ([]int64, error) {
	out := make([]int64, 0, len(argSets))
	for i, args := range argSets {
		n, err := e.Exec(ctx, db, query, args)
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// normalize converts driver byte slices to strings so row maps survive
// serialization round trips unchanged.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
