package descriptor

import (
	"fmt"
	"reflect"
	"time"
)

// MethodKey identifies one declared method of a contract. It is used as a map
// key by the resolution cache and the stats registry and never changes after
// the contract is declared.
type MethodKey struct {
	Contract string
	Method   string
}

func (k MethodKey) String() string {
	return k.Contract + "." + k.Method
}

// ParameterDescriptor describes one declared parameter of a method.
// Name is explicit when provided; NormalizeNames synthesizes positional names
// for the rest so templates can always address parameters by name.
type ParameterDescriptor struct {
	Position int
	Type     reflect.Type
	Name     string
}

// Iterable reports whether the parameter is collection shaped. Byte slices are
// treated as scalar blobs, not element collections.
func (p ParameterDescriptor) Iterable() bool {
	if p.Type == nil {
		return false
	}
	switch p.Type.Kind() {
	case reflect.Slice, reflect.Array:
		return p.Type.Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// ElementType returns the element type of an iterable parameter.
func (p ParameterDescriptor) ElementType() (reflect.Type, bool) {
	if !p.Iterable() {
		return nil, false
	}
	return p.Type.Elem(), true
}

// CacheSpec is the cache directive attached to a method. KeyParam names the
// parameter (optionally a dotted path into it) whose runtime value becomes the
// cache key suffix. When that parameter is iterable the method caches one
// physical entry per element, and KeyColumn must name the result column that
// maps fetched rows back to their keys.
type CacheSpec struct {
	Prefix          string
	KeyParam        string
	KeyColumn       string
	Expire          time.Duration
	CacheNullObject bool
}

// TableShard maps a parameter's runtime value to a concrete table name.
type TableShard struct {
	Param string
	Fn    func(value any) (string, error)
}

// Method is the configuration descriptor for one declared data-access method:
// the SQL template plus cache directives and parameter shapes. How it gets
// populated (by hand, from struct tags, from code generation) is up to the
// host application; everything downstream operates on this struct alone.
type Method struct {
	Name         string
	SQL          string
	Cache        *CacheSpec
	CacheIgnored bool
	Shard        *TableShard
	Parameters   []ParameterDescriptor
}

// Contract groups the declared methods of one data-access interface together
// with its database, default table and contract-level cache directive.
type Contract struct {
	Name     string
	Database string
	Table    string
	Cache    *CacheSpec
	Methods  []*Method
}

// Method returns the declared method with the given name.
func (c *Contract) Method(name string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Key returns the MethodKey for a declared method of this contract.
func (c *Contract) Key(method string) MethodKey {
	return MethodKey{Contract: c.Name, Method: method}
}

// Validate checks the structural requirements of a contract declaration.
func (c *Contract) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("contract name is required")
	}
	if c.Database == "" {
		return fmt.Errorf("contract %s: database is required", c.Name)
	}
	seen := make(map[string]struct{}, len(c.Methods))
	for _, m := range c.Methods {
		if m.Name == "" {
			return fmt.Errorf("contract %s: method name is required", c.Name)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("contract %s: duplicate method %s", c.Name, m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	return nil
}

// NormalizeNames fills in positional names (p0, p1, ...) for parameters that
// were declared without one and checks for duplicates.
func NormalizeNames(params []ParameterDescriptor) ([]ParameterDescriptor, error) {
	out := make([]ParameterDescriptor, len(params))
	seen := make(map[string]struct{}, len(params))
	for i, p := range params {
		p.Position = i
		if p.Name == "" {
			p.Name = fmt.Sprintf("p%d", i)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		out[i] = p
	}
	return out, nil
}

// TypeOf is a convenience helper for declaring parameter types.
// Usage: descriptor.TypeOf[[]int64]().
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
