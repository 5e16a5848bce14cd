// Package testsupport provides in-memory fakes and descriptor builders shared
// by tests across packages.
package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-sqldao/cache"
	"github.com/goliatone/go-sqldao/descriptor"
)

// MemoryHandler is a cache.Handler over a locked map, for tests.
type MemoryHandler struct {
	mu      sync.Mutex
	entries map[string]any

	// Counters for asserting handler traffic.
	Gets    int
	Sets    int
	Deletes int
}

var _ cache.Handler = (*MemoryHandler)(nil)

// NewMemoryHandler creates an empty handler.
func NewMemoryHandler() *MemoryHandler {
	return &MemoryHandler{entries: make(map[string]any)}
}

func (h *MemoryHandler) Get(_ context.Context, key string) (any, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Gets++
	v, ok := h.entries[key]
	return v, ok, nil
}

func (h *MemoryHandler) GetBulk(_ context.Context, keys []string) (map[string]any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Gets++
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := h.entries[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (h *MemoryHandler) Set(_ context.Context, key string, value any, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Sets++
	h.entries[key] = value
	return nil
}

func (h *MemoryHandler) Delete(_ context.Context, keys ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Deletes++
	for _, k := range keys {
		delete(h.entries, k)
	}
	return nil
}

// Len returns the number of stored entries.
func (h *MemoryHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Keys returns the stored keys in arbitrary order.
func (h *MemoryHandler) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.entries))
	for k := range h.entries {
		out = append(out, k)
	}
	return out
}

// ExecCall records one executor invocation.
type ExecCall struct {
	Kind  string // "query", "exec"
	Query string
	Args  []any
}

// RecordingExecutor is a dbexec.Executor fake: scripted results plus a call
// log. The bun handle is ignored, so tests can wire a nil database.
type RecordingExecutor struct {
	mu    sync.Mutex
	calls []ExecCall

	QueryFn func(query string, args []any) ([]map[string]any, error)
	ExecFn  func(query string, args []any) (int64, error)
}

func (e *RecordingExecutor) record(kind, query string, args []any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, ExecCall{Kind: kind, Query: query, Args: append([]any(nil), args...)})
}

// Calls returns a copy of the call log.
func (e *RecordingExecutor) Calls() []ExecCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExecCall(nil), e.calls...)
}

func (e *RecordingExecutor) Query(_ context.Context, _ bun.IDB, query string, args []any) ([]map[string]any, error) {
	e.record("query", query, args)
	if e.QueryFn == nil {
		return []map[string]any{}, nil
	}
	return e.QueryFn(query, args)
}

func (e *RecordingExecutor) Exec(_ context.Context, _ bun.IDB, query string, args []any) (int64, error) {
	e.record("exec", query, args)
	if e.ExecFn == nil {
		return 1, nil
	}
	return e.ExecFn(query, args)
}

func (e *RecordingExecutor) ExecBatch(ctx context.Context, db bun.IDB, query string, argSets [][]any) ([]int64, error) {
	out := make([]int64, 0, len(argSets))
	for _, args := range argSets {
		n, err := e.Exec(ctx, db, query, args)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Param declares a parameter descriptor with an explicit name.
func Param[T any](name string) descriptor.ParameterDescriptor {
	return descriptor.ParameterDescriptor{Name: name, Type: descriptor.TypeOf[T]()}
}

// Method declares a method descriptor from a template and parameters.
func Method(name, sql string, params ...descriptor.ParameterDescriptor) *descriptor.Method {
	return &descriptor.Method{Name: name, SQL: sql, Parameters: params}
}

// Contract declares a contract over the given methods, bound to a fixed
// database and table.
func Contract(name string, methods ...*descriptor.Method) *descriptor.Contract {
	return &descriptor.Contract{
		Name:     name,
		Database: "testdb",
		Table:    "records",
		Methods:  methods,
	}
}
