package operator

import (
	"github.com/goliatone/go-sqldao/descriptor"
	"github.com/goliatone/go-sqldao/template"
)

// OperationKind is the resolved execution shape of a declared method.
type OperationKind int

const (
	OperationQuery OperationKind = iota
	OperationUpdate
	OperationBatchUpdate
)

func (k OperationKind) String() string {
	switch k {
	case OperationQuery:
		return "query"
	case OperationUpdate:
		return "update"
	case OperationBatchUpdate:
		return "batch_update"
	default:
		return "unknown"
	}
}

// classifyOperation decides the operation kind for a bound template and
// parameter shape. Read statements are always queries. A write statement
// becomes a batch update only when the method takes exactly one parameter,
// that parameter is iterable, and no placeholder already consumes it as an
// IN-list; an IN-list means the collection is spent inside a single statement
// and cannot drive per-element batching.
func classifyOperation(bound *template.Bound, params []descriptor.ParameterDescriptor) OperationKind {
	if bound.Template().Kind() == template.StatementSelect {
		return OperationQuery
	}
	if len(params) == 1 && params[0].Iterable() && len(bound.InListPlaceholders()) == 0 {
		return OperationBatchUpdate
	}
	return OperationUpdate
}

// normalizeForBatch collapses the single iterable parameter of a batch update
// into a descriptor for one element of it: the batch operator binds the
// template once per element, not once per call.
func normalizeForBatch(key descriptor.MethodKey, params []descriptor.ParameterDescriptor) ([]descriptor.ParameterDescriptor, error) {
	p := params[0]
	elem, ok := p.ElementType()
	if !ok {
		return nil, &ConfigurationError{
			Method:  key,
			Message: "batch update parameter must be a collection with a known element type",
		}
	}
	return []descriptor.ParameterDescriptor{{
		Position: 0,
		Type:     elem,
		Name:     p.Name,
	}}, nil
}
