package operator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/stat"
)

// Handle is the per-contract invocation dispatcher: the caller-facing proxy
// over one contract's compiled operators. It resolves the operator for a
// method through the resolution cache, executes it with the call's arguments
// and records timing. Handles are cheap; creating several for the same
// contract shares compiled state only through the stats registry.
type Handle struct {
	contract   *descriptor.Contract
	methods    map[string]*descriptor.Method
	resolution *ResolutionCache
	stats      *stat.Registry
	logger     *slog.Logger
}

// NewHandle builds a dispatcher for contract, compiling methods lazily
// through factory. stats must be the registry shared by every handle of the
// surrounding application so counters stay per declared method.
func NewHandle(contract *descriptor.Contract, factory *Factory, stats *stat.Registry, logger *slog.Logger) (*Handle, error) {
	if contract == nil {
		return nil, fmt.Errorf("contract is required")
	}
	if err := contract.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	methods := make(map[string]*descriptor.Method, len(contract.Methods))
	for _, m := range contract.Methods {
		methods[m.Name] = m
	}

	h := &Handle{
		contract: contract,
		methods:  methods,
		stats:    stats,
		logger:   logger,
	}
	h.resolution = NewResolutionCache(func(key descriptor.MethodKey) (Operator, error) {
		m := methods[key.Method]
		counter := stats.Counter(key)
		logger.Debug("compiling operator", "method", key.String())
		start := time.Now()
		op, err := factory.Assemble(contract, m, counter)
		if err != nil {
			return nil, err
		}
		counter.RecordInit(time.Since(start))
		return op, nil
	})
	return h, nil
}

// Contract returns the declaration this handle dispatches for.
func (h *Handle) Contract() *descriptor.Contract { return h.contract }

// Invoke executes a declared method with the call's arguments. The result is
// []map[string]any for queries, int64 for updates and []int64 for batch
// updates. Errors from the database and cache collaborators pass through
// unchanged.
func (h *Handle) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	key := h.contract.Key(method)
	if _, ok := h.methods[method]; !ok {
		return nil, &DescriptionError{Method: key, Message: "contract declares no such method"}
	}

	op, err := h.resolution.Get(key)
	if err != nil {
		return nil, err
	}

	counter := h.stats.Counter(key)
	start := time.Now()
	result, err := op.Execute(ctx, args)
	if err != nil {
		counter.RecordExecuteException(time.Since(start))
		return nil, err
	}
	counter.RecordExecuteSuccess(time.Since(start))
	return result, nil
}

// Operator resolves (compiling if needed) the operator for one method,
// for pre-warming or inspection.
func (h *Handle) Operator(method string) (Operator, error) {
	key := h.contract.Key(method)
	if _, ok := h.methods[method]; !ok {
		return nil, &DescriptionError{Method: key, Message: "contract declares no such method"}
	}
	return h.resolution.Get(key)
}

// Warm eagerly compiles every declared method. The first failure aborts and
// is returned; eager initialization treats any compile error as fatal for
// the contract.
func (h *Handle) Warm() error {
	for _, m := range h.contract.Methods {
		if _, err := h.resolution.Get(h.contract.Key(m.Name)); err != nil {
			return fmt.Errorf("initialize %s: %w", h.contract.Key(m.Name), err)
		}
	}
	return nil
}

// Stats returns a counters snapshot for one method.
func (h *Handle) Stats(method string) (stat.Stats, bool) {
	counter, ok := h.stats.Lookup(h.contract.Key(method))
	if !ok {
		return stat.Stats{}, false
	}
	s := counter.Snapshot()
	s.Method = h.contract.Key(method)
	return s, true
}

// ResetStats zeroes the counters for one method.
func (h *Handle) ResetStats(method string) {
	if counter, ok := h.stats.Lookup(h.contract.Key(method)); ok {
		counter.Reset()
	}
}
