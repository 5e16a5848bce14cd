package operator

import (
	"errors"
	"testing"

	"github.com/goliatone/go-sqldao/cache"
	"github.com/goliatone/go-sqldao/dbexec"
	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/stat"
)

func asErr[T error](err error, target *T) bool {
	return errors.As(err, target)
}

// newTestFactory builds a factory over the recording executor; the database
// handle is never touched.
func newTestFactory(exec dbexec.Executor, handler cache.Handler) *Factory {
	return NewFactory(NewSimpleDataSourceFactory(nil), handler, nil, exec, nil, DefaultConfig())
}

func assemble(t *testing.T, f *Factory, contract *descriptor.Contract, method string) Operator {
	t.Helper()
	m, ok := contract.Method(method)
	if !ok {
		t.Fatalf("contract has no method %s", method)
	}
	op, err := f.Assemble(contract, m, &stat.Counter{})
	if err != nil {
		t.Fatalf("Assemble(%s) error = %v", method, err)
	}
	return op
}
