package operator

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/template"
)

// tableGenerator resolves the #table token per call. The table is either the
// contract's static table name or the output of the method's shard function
// applied to one parameter's runtime value.
type tableGenerator struct {
	table     string
	needed    bool
	shardPos  int
	shardPath []string
	shardFn   func(any) (string, error)
}

// newTableGenerator validates the table declaration against the bound shape.
// params is the shape the operator renders with (post-normalization for batch
// updates), so shard-by-element works for batches.
func newTableGenerator(key descriptor.MethodKey, m *descriptor.Method, contract *descriptor.Contract,
	tmpl *template.Template, params []descriptor.ParameterDescriptor) (*tableGenerator, error) {

	g := &tableGenerator{table: contract.Table, needed: tmpl.HasTableToken(), shardPos: -1}

	if m.Shard != nil {
		if !g.needed {
			return nil, &ConfigurationError{
				Method:  key,
				Message: "shard declared but template has no #table token",
			}
		}
		if m.Shard.Fn == nil {
			return nil, &ConfigurationError{Method: key, Message: "shard function is nil"}
		}
		parts := strings.Split(m.Shard.Param, ".")
		for _, p := range params {
			if p.Name == parts[0] {
				g.shardPos = p.Position
				break
			}
		}
		if g.shardPos < 0 {
			return nil, &ConfigurationError{
				Method:  key,
				Message: fmt.Sprintf("shard parameter %q does not match any declared parameter", m.Shard.Param),
			}
		}
		g.shardPath = parts[1:]
		g.shardFn = m.Shard.Fn
		return g, nil
	}

	if g.needed && g.table == "" {
		return nil, &ConfigurationError{
			Method:  key,
			Message: "template uses #table but the contract declares no table",
		}
	}
	return g, nil
}

// resolve returns the table name for one call's arguments.
func (g *tableGenerator) resolve(args []any) (string, error) {
	if !g.needed {
		return "", nil
	}
	if g.shardFn == nil {
		return g.table, nil
	}
	if g.shardPos >= len(args) {
		return "", fmt.Errorf("shard parameter %d out of range for %d arguments", g.shardPos, len(args))
	}
	v, err := template.ResolveValue(args[g.shardPos], g.shardPath)
	if err != nil {
		return "", fmt.Errorf("resolve shard value: %w", err)
	}
	table, err := g.shardFn(v)
	if err != nil {
		return "", fmt.Errorf("shard function: %w", err)
	}
	if table == "" {
		return "", fmt.Errorf("shard function returned an empty table name")
	}
	return table, nil
}
