package operator

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-sqldao/pkg/testsupport"
	"github.com/goliatone/go-sqldao/stat"
)

func newTestHandle(t *testing.T, exec *testsupport.RecordingExecutor, stats *stat.Registry) *Handle {
	t.Helper()
	contract := testsupport.Contract("UserDao",
		testsupport.Method("getUser", "select * from #table where id = :id", testsupport.Param[int64]("id")),
		testsupport.Method("deleteUser", "delete from #table where id = :id", testsupport.Param[int64]("id")),
		testsupport.Method("deleteUsers", "delete from #table where id = :ids", testsupport.Param[[]int64]("ids")),
	)
	h, err := NewHandle(contract, newTestFactory(exec, nil), stats, nil)
	if err != nil {
		t.Fatalf("NewHandle() error = %v", err)
	}
	return h
}

func TestHandleInvoke(t *testing.T) {
	rows := []map[string]any{{"id": int64(7), "name": "ann"}}
	exec := &testsupport.RecordingExecutor{
		QueryFn: func(string, []any) ([]map[string]any, error) { return rows, nil },
	}
	h := newTestHandle(t, exec, stat.NewRegistry())

	t.Run("query returns rows", func(t *testing.T) {
		got, err := h.Invoke(context.Background(), "getUser", int64(7))
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if !reflect.DeepEqual(got, rows) {
			t.Errorf("Invoke() = %v", got)
		}
		calls := exec.Calls()
		if len(calls) != 1 || calls[0].Kind != "query" {
			t.Fatalf("calls = %+v", calls)
		}
		if calls[0].Query != "select * from records where id = ?" {
			t.Errorf("rendered SQL = %q", calls[0].Query)
		}
		if !reflect.DeepEqual(calls[0].Args, []any{int64(7)}) {
			t.Errorf("args = %v", calls[0].Args)
		}
	})

	t.Run("update returns affected count", func(t *testing.T) {
		got, err := h.Invoke(context.Background(), "deleteUser", int64(7))
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if got.(int64) != 1 {
			t.Errorf("Invoke() = %v, want 1", got)
		}
	})

	t.Run("batch update returns per-element counts", func(t *testing.T) {
		got, err := h.Invoke(context.Background(), "deleteUsers", []int64{1, 2, 3})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if counts := got.([]int64); !reflect.DeepEqual(counts, []int64{1, 1, 1}) {
			t.Errorf("Invoke() = %v", counts)
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := h.Invoke(context.Background(), "noSuchMethod")
		var de *DescriptionError
		if !asErr(err, &de) {
			t.Fatalf("expected DescriptionError, got %v", err)
		}
	})

	t.Run("arity mismatch", func(t *testing.T) {
		if _, err := h.Invoke(context.Background(), "getUser"); err == nil {
			t.Fatal("Invoke() with missing argument succeeded")
		}
	})
}

func TestHandleCompilesOnce(t *testing.T) {
	exec := &testsupport.RecordingExecutor{}
	stats := stat.NewRegistry()
	h := newTestHandle(t, exec, stats)

	for i := 0; i < 3; i++ {
		if _, err := h.Invoke(context.Background(), "getUser", int64(1)); err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
	}
	s, ok := h.Stats("getUser")
	if !ok {
		t.Fatal("Stats() miss")
	}
	if s.InitCount != 1 {
		t.Errorf("InitCount = %d, want 1", s.InitCount)
	}
	if s.ExecuteSuccessCount != 3 {
		t.Errorf("ExecuteSuccessCount = %d, want 3", s.ExecuteSuccessCount)
	}
}

func TestHandleRecordsExecutionOutcome(t *testing.T) {
	boom := errors.New("connection reset")
	exec := &testsupport.RecordingExecutor{
		QueryFn: func(string, []any) ([]map[string]any, error) { return nil, boom },
	}
	h := newTestHandle(t, exec, stat.NewRegistry())

	if _, err := h.Invoke(context.Background(), "getUser", int64(1)); !errors.Is(err, boom) {
		t.Fatalf("Invoke() error = %v, want executor failure", err)
	}
	s, _ := h.Stats("getUser")
	if s.ExecuteExceptionCount != 1 || s.ExecuteSuccessCount != 0 {
		t.Errorf("success/exception = %d/%d, want 0/1", s.ExecuteSuccessCount, s.ExecuteExceptionCount)
	}
}

func TestHandleStatsSharedAcrossHandles(t *testing.T) {
	exec := &testsupport.RecordingExecutor{}
	stats := stat.NewRegistry()
	h1 := newTestHandle(t, exec, stats)
	h2 := newTestHandle(t, exec, stats)

	if _, err := h1.Invoke(context.Background(), "getUser", int64(1)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	s, ok := h2.Stats("getUser")
	if !ok {
		t.Fatal("second handle cannot see shared counters")
	}
	if s.ExecuteSuccessCount != 1 {
		t.Errorf("ExecuteSuccessCount via second handle = %d, want 1", s.ExecuteSuccessCount)
	}
	// Each handle still compiles its own operator.
	if s.InitCount != 1 {
		t.Errorf("InitCount = %d, want 1 (second handle has not compiled yet)", s.InitCount)
	}
	if _, err := h2.Invoke(context.Background(), "getUser", int64(1)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	s, _ = h1.Stats("getUser")
	if s.InitCount != 2 || s.ExecuteSuccessCount != 2 {
		t.Errorf("after both handles ran: init=%d execs=%d, want 2/2", s.InitCount, s.ExecuteSuccessCount)
	}
}

func TestHandleWarm(t *testing.T) {
	t.Run("compiles every method up front", func(t *testing.T) {
		h := newTestHandle(t, &testsupport.RecordingExecutor{}, stat.NewRegistry())
		if err := h.Warm(); err != nil {
			t.Fatalf("Warm() error = %v", err)
		}
		if h.resolution.Size() != 3 {
			t.Errorf("compiled methods = %d, want 3", h.resolution.Size())
		}
	})

	t.Run("fails fast on a broken method", func(t *testing.T) {
		contract := testsupport.Contract("UserDao",
			testsupport.Method("ok", "select * from #table where id = :id", testsupport.Param[int64]("id")),
			testsupport.Method("broken", "select * from #table where id = :nope", testsupport.Param[int64]("id")),
		)
		h, err := NewHandle(contract, newTestFactory(&testsupport.RecordingExecutor{}, nil), stat.NewRegistry(), nil)
		if err != nil {
			t.Fatalf("NewHandle() error = %v", err)
		}
		err = h.Warm()
		var be *BindingError
		if !asErr(err, &be) {
			t.Fatalf("Warm() error = %v, want BindingError", err)
		}
	})
}

func TestHandleResetStats(t *testing.T) {
	h := newTestHandle(t, &testsupport.RecordingExecutor{}, stat.NewRegistry())
	if _, err := h.Invoke(context.Background(), "getUser", int64(1)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	h.ResetStats("getUser")
	s, _ := h.Stats("getUser")
	if s.ExecuteSuccessCount != 0 || s.InitCount != 0 {
		t.Errorf("counters after reset = %+v", s)
	}
	// Descriptive fields survive a reset.
	if s.OperationKind != OperationQuery.String() {
		t.Errorf("OperationKind after reset = %q", s.OperationKind)
	}
}

func TestNewHandleValidatesContract(t *testing.T) {
	contract := testsupport.Contract("",
		testsupport.Method("getUser", "select 1"))
	if _, err := NewHandle(contract, newTestFactory(&testsupport.RecordingExecutor{}, nil), stat.NewRegistry(), nil); err == nil {
		t.Fatal("NewHandle() accepted a contract without a name")
	}
	if _, err := NewHandle(nil, newTestFactory(&testsupport.RecordingExecutor{}, nil), stat.NewRegistry(), nil); err == nil {
		t.Fatal("NewHandle() accepted a nil contract")
	}
}
