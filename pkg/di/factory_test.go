package di

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-sqldao/cache"
	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/operator"
	"github.com/goliatone/go-sqldao/pkg/testsupport"
)

func newFactory(t *testing.T, opts ...Option) *Factory {
	t.Helper()
	base := []Option{WithExecutor(&testsupport.RecordingExecutor{})}
	f, err := New(operator.NewSimpleDataSourceFactory(nil), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestNewRequiresDataSources(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) succeeded")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	sources := operator.NewSimpleDataSourceFactory(nil)
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil handler", WithDefaultCacheHandler(nil)},
		{"nil executor", WithExecutor(nil)},
		{"nil codec", WithKeyCodec(nil)},
		{"nil logger", WithLogger(nil)},
		{"nil interceptor", WithInterceptor(nil)},
		{"invalid in-process config", WithInProcessCache(cache.Config{})},
		{"invalid redis config", WithRedisCache(cache.RedisConfig{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(sources, tt.opt); err == nil {
				t.Error("New() accepted an invalid option")
			}
		})
	}
}

func TestCreateEagerFailsFast(t *testing.T) {
	f := newFactory(t)
	contract := testsupport.Contract("UserDao",
		testsupport.Method("broken", "select * from #table where id = :nope", testsupport.Param[int64]("id")))

	if _, err := f.Create(contract); err == nil {
		t.Fatal("eager Create() accepted a contract with a broken method")
	}

	// The same contract passes when compilation is deferred, and the error
	// surfaces on first invocation instead.
	h, err := f.Create(contract, Lazy(true))
	if err != nil {
		t.Fatalf("lazy Create() error = %v", err)
	}
	if _, err := h.Invoke(context.Background(), "broken", int64(1)); err == nil {
		t.Fatal("lazy handle compiled a broken method")
	}
}

func TestCreateRequiresHandlerForCachedContract(t *testing.T) {
	f := newFactory(t)
	contract := testsupport.Contract("UserDao",
		testsupport.Method("getUser", "select * from #table where id = :id", testsupport.Param[int64]("id")))
	contract.Cache = &descriptor.CacheSpec{KeyParam: "id"}

	if _, err := f.Create(contract); err == nil {
		t.Fatal("Create() accepted a cached contract without a handler")
	}

	h, err := f.Create(contract, WithCacheHandler(testsupport.NewMemoryHandler()))
	if err != nil {
		t.Fatalf("Create() with per-call handler error = %v", err)
	}
	op, err := h.Operator("getUser")
	if err != nil {
		t.Fatalf("Operator() error = %v", err)
	}
	if !op.Cacheable() {
		t.Error("cached contract compiled to the plain variant")
	}
}

func TestCreateUsesDefaultHandler(t *testing.T) {
	handler := testsupport.NewMemoryHandler()
	f := newFactory(t, WithDefaultCacheHandler(handler))

	contract := testsupport.Contract("UserDao",
		testsupport.Method("getUser", "select * from #table where id = :id", testsupport.Param[int64]("id")))
	contract.Cache = &descriptor.CacheSpec{KeyParam: "id"}

	h, err := f.Create(contract)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := h.Invoke(context.Background(), "getUser", int64(1)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if handler.Gets == 0 {
		t.Error("default handler never consulted")
	}
}

func TestFactoryStatsAggregation(t *testing.T) {
	f := newFactory(t)
	contract := testsupport.Contract("UserDao",
		testsupport.Method("getUser", "select * from #table where id = :id", testsupport.Param[int64]("id")))

	h, err := f.Create(contract)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := h.Invoke(context.Background(), "getUser", int64(1)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	all := f.AllStats()
	if len(all) != 1 {
		t.Fatalf("AllStats() = %d entries, want 1", len(all))
	}
	s := all[0]
	if s.Method != contract.Key("getUser") {
		t.Errorf("stats method = %v", s.Method)
	}
	if s.ExecuteSuccessCount != 1 || s.InitCount != 1 {
		t.Errorf("stats = %+v", s)
	}

	f.ResetAllStats()
	if s := f.AllStats()[0]; s.ExecuteSuccessCount != 0 {
		t.Errorf("ResetAllStats() left execs at %d", s.ExecuteSuccessCount)
	}
}

func TestInterceptorRuns(t *testing.T) {
	var seen []operator.Statement
	f := newFactory(t, WithInterceptor(operator.InterceptorFunc(
		func(_ context.Context, stmt *operator.Statement) error {
			seen = append(seen, *stmt)
			return nil
		})))

	contract := testsupport.Contract("UserDao",
		testsupport.Method("getUser", "select * from #table where id = :id", testsupport.Param[int64]("id")))
	h, err := f.Create(contract)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := h.Invoke(context.Background(), "getUser", int64(9)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("interceptor ran %d times, want 1", len(seen))
	}
	if seen[0].Method != contract.Key("getUser") || seen[0].SQL == "" {
		t.Errorf("statement = %+v", seen[0])
	}
}

func TestInterceptorVeto(t *testing.T) {
	vetoed := errors.New("statement rejected")
	f := newFactory(t, WithInterceptor(operator.InterceptorFunc(
		func(context.Context, *operator.Statement) error { return vetoed })))

	contract := testsupport.Contract("UserDao",
		testsupport.Method("deleteUser", "delete from #table where id = :id", testsupport.Param[int64]("id")))
	h, err := f.Create(contract)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := h.Invoke(context.Background(), "deleteUser", int64(1)); !errors.Is(err, vetoed) {
		t.Fatalf("Invoke() error = %v, want veto", err)
	}
}
