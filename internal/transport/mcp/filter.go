package mcp

import (
	"fmt"

	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
)

// filterInput is the wire shape of a filter predicate tree: either a leaf
// {field, operator, value} or a combinator {operator: AND|OR|NOT,
// conditions: [...]}. It mirrors the grammar the tool surface advertises
// verbatim, so callers build filters the same way regardless of which
// tool accepts metadata_filters.
type filterInput struct {
	Field      string        `json:"field,omitempty" jsonschema:"indexed payload field name, e.g. category"`
	Operator   string        `json:"operator" jsonschema:"==, !=, >, <, >=, <=, in, not in, AND, OR, NOT"`
	Value      any           `json:"value,omitempty"`
	Values     []any         `json:"values,omitempty" jsonschema:"value set for in/not in"`
	Conditions []filterInput `json:"conditions,omitempty" jsonschema:"child predicates for AND/OR/NOT"`
}

var leafOps = map[string]filterexpr.Op{
	"==": filterexpr.OpEq, "!=": filterexpr.OpNe,
	">": filterexpr.OpGt, "<": filterexpr.OpLt,
	">=": filterexpr.OpGte, "<=": filterexpr.OpLte,
	"in": filterexpr.OpIn, "not in": filterexpr.OpNotIn,
}

// buildFilter translates a filterInput tree into a *filterexpr.Node, or
// returns nil for a zero-value input (no filter supplied).
func buildFilter(in *filterInput) (*filterexpr.Node, error) {
	if in == nil || (in.Operator == "" && in.Field == "" && len(in.Conditions) == 0) {
		return nil, nil
	}
	node, err := buildNode(*in)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func buildNode(in filterInput) (filterexpr.Node, error) {
	switch in.Operator {
	case "AND", "and":
		return combine(in.Conditions, filterexpr.And)
	case "OR", "or":
		return combine(in.Conditions, filterexpr.Or)
	case "NOT", "not":
		if len(in.Conditions) != 1 {
			return filterexpr.Node{}, fmt.Errorf("filter: NOT takes exactly one condition")
		}
		child, err := buildNode(in.Conditions[0])
		if err != nil {
			return filterexpr.Node{}, err
		}
		return filterexpr.Not(child)
	default:
		op, ok := leafOps[in.Operator]
		if !ok {
			return filterexpr.Node{}, fmt.Errorf("filter: unsupported operator %q", in.Operator)
		}
		if op.IsSet() {
			return filterexpr.NewLeaf(filterexpr.Leaf{Field: in.Field, Op: op, Set: in.Values})
		}
		return filterexpr.NewLeaf(filterexpr.Leaf{Field: in.Field, Op: op, Value: in.Value})
	}
}

func combine(conditions []filterInput, f func(...filterexpr.Node) (filterexpr.Node, error)) (filterexpr.Node, error) {
	nodes := make([]filterexpr.Node, len(conditions))
	for i, c := range conditions {
		n, err := buildNode(c)
		if err != nil {
			return filterexpr.Node{}, err
		}
		nodes[i] = n
	}
	return f(nodes...)
}
