package operator

import (
	"fmt"

	"github.com/goliatone/go-sqldao/descriptor"
)

// DescriptionError reports a method declaration that cannot be compiled: a
// missing, empty or unparseable SQL template, or a reference to a method the
// contract never declared. Fatal for that method; raised at compile time.
type DescriptionError struct {
	Method  descriptor.MethodKey
	Message string
	Cause   error
}

func (e *DescriptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("description error for %s: %s: %v", e.Method, e.Message, e.Cause)
	}
	return fmt.Sprintf("description error for %s: %s", e.Method, e.Message)
}

func (e *DescriptionError) Unwrap() error { return e.Cause }

// BindingError reports a template placeholder that does not resolve against
// the method's parameter shape. Fatal for that method; raised at compile time.
type BindingError struct {
	Method  descriptor.MethodKey
	Message string
	Cause   error
}

func (e *BindingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("binding error for %s: %s: %v", e.Method, e.Message, e.Cause)
	}
	return fmt.Sprintf("binding error for %s: %s", e.Method, e.Message)
}

func (e *BindingError) Unwrap() error { return e.Cause }

// ConfigurationError reports collaborator wiring that cannot be derived at
// compile time: a cache directive without a handler, an unresolvable table or
// shard declaration, or a batch parameter whose element type is unknown.
type ConfigurationError struct {
	Method  descriptor.MethodKey
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Method, e.Message)
}
