// Package filterexpr implements the metadata filter predicate grammar used
// by search, bulk mutation, and backup export: a tree of leaf comparisons
// combined with AND/OR/NOT, over dotted metadata field paths.
package filterexpr

import (
	"errors"
	"fmt"
)

// MaxDepth bounds recursive tree depth against pathological/attacker-supplied trees.
const MaxDepth = 8

// MaxChildren bounds fan-out per AND/OR node.
const MaxChildren = 32

// Op is a leaf comparison operator.
type Op string

// Supported operators.
const (
	OpEq    Op = "=="
	OpNe    Op = "!="
	OpGt    Op = ">"
	OpLt    Op = "<"
	OpGte   Op = ">="
	OpLte   Op = "<="
	OpIn    Op = "in"
	OpNotIn Op = "not in"
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpLt, OpGte, OpLte, OpIn, OpNotIn:
		return true
	}
	return false
}

// IsRange reports whether the operator compares against a numeric bound.
func (o Op) IsRange() bool {
	switch o {
	case OpGt, OpLt, OpGte, OpLte:
		return true
	}
	return false
}

// IsSet reports whether the operator takes a value list.
func (o Op) IsSet() bool {
	return o == OpIn || o == OpNotIn
}

// kind discriminates a Node as a leaf comparison or a boolean combinator.
type kind string

const (
	kindLeaf kind = "leaf"
	kindAnd  kind = "and"
	kindOr   kind = "or"
	kindNot  kind = "not"
)

// ErrIndexRequired signals that a leaf references a field path the target
// collection has not indexed; the caller must add the field to the schema
// (or drop it from the filter) before the query can run.
var ErrIndexRequired = errors.New("filter field is not indexed")

// Node is a filter predicate: either a Leaf comparison or a boolean
// combination of child Nodes (AND/OR/NOT). The zero value is not valid;
// use the constructor functions below.
type Node struct {
	kind     kind
	leaf     Leaf
	children []Node
}

// Leaf is a single field comparison.
type Leaf struct {
	Field string
	Op    Op
	Value any   // string or float64, required unless Op is a set operator
	Set   []any // string or float64 values, required when Op.IsSet()
}

func (l Leaf) validate() error {
	if l.Field == "" {
		return fmt.Errorf("filter: field is required")
	}
	if !l.Op.valid() {
		return fmt.Errorf("filter: unsupported operator %q", l.Op)
	}
	if l.Op.IsSet() {
		if len(l.Set) == 0 {
			return fmt.Errorf("filter: %q requires a non-empty value set for field %q", l.Op, l.Field)
		}
		return nil
	}
	if l.Value == nil {
		return fmt.Errorf("filter: value is required for field %q", l.Field)
	}
	if l.Op.IsRange() {
		if _, ok := asFloat(l.Value); !ok {
			return fmt.Errorf("filter: operator %q on field %q requires a numeric value", l.Op, l.Field)
		}
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// NewLeaf validates and wraps a single comparison as a Node.
func NewLeaf(l Leaf) (Node, error) {
	if err := l.validate(); err != nil {
		return Node{}, err
	}
	return Node{kind: kindLeaf, leaf: l}, nil
}

// Eq builds an exact-match leaf node.
func Eq(field string, value any) (Node, error) { return NewLeaf(Leaf{Field: field, Op: OpEq, Value: value}) }

// Ne builds a not-equal leaf node.
func Ne(field string, value any) (Node, error) { return NewLeaf(Leaf{Field: field, Op: OpNe, Value: value}) }

// Gt builds a greater-than leaf node.
func Gt(field string, value float64) (Node, error) { return NewLeaf(Leaf{Field: field, Op: OpGt, Value: value}) }

// Lt builds a less-than leaf node.
func Lt(field string, value float64) (Node, error) { return NewLeaf(Leaf{Field: field, Op: OpLt, Value: value}) }

// Gte builds a greater-or-equal leaf node.
func Gte(field string, value float64) (Node, error) { return NewLeaf(Leaf{Field: field, Op: OpGte, Value: value}) }

// Lte builds a less-or-equal leaf node.
func Lte(field string, value float64) (Node, error) { return NewLeaf(Leaf{Field: field, Op: OpLte, Value: value}) }

// In builds a set-membership leaf node.
func In(field string, values []any) (Node, error) { return NewLeaf(Leaf{Field: field, Op: OpIn, Set: values}) }

// NotIn builds a set-exclusion leaf node.
func NotIn(field string, values []any) (Node, error) {
	return NewLeaf(Leaf{Field: field, Op: OpNotIn, Set: values})
}

func combine(k kind, nodes []Node) (Node, error) {
	if len(nodes) == 0 {
		return Node{}, fmt.Errorf("filter: %s requires at least one child", k)
	}
	if len(nodes) > MaxChildren {
		return Node{}, fmt.Errorf("filter: %s has too many children (max %d)", k, MaxChildren)
	}
	depth := 1
	for _, n := range nodes {
		if d := n.depth() + 1; d > depth {
			depth = d
		}
	}
	if depth > MaxDepth {
		return Node{}, fmt.Errorf("filter: tree exceeds max depth (%d)", MaxDepth)
	}
	return Node{kind: k, children: nodes}, nil
}

// And combines nodes with boolean AND.
func And(nodes ...Node) (Node, error) { return combine(kindAnd, nodes) }

// Or combines nodes with boolean OR.
func Or(nodes ...Node) (Node, error) { return combine(kindOr, nodes) }

// Not negates a single node.
func Not(n Node) (Node, error) { return combine(kindNot, []Node{n}) }

func (n Node) depth() int {
	if n.kind == kindLeaf {
		return 1
	}
	max := 0
	for _, c := range n.children {
		if d := c.depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// IsLeaf reports whether n is a leaf comparison.
func (n Node) IsLeaf() bool { return n.kind == kindLeaf }

// AsLeaf returns the leaf comparison; valid only when IsLeaf is true.
func (n Node) AsLeaf() Leaf { return n.leaf }

// IsAnd reports whether n is an AND combinator.
func (n Node) IsAnd() bool { return n.kind == kindAnd }

// IsOr reports whether n is an OR combinator.
func (n Node) IsOr() bool { return n.kind == kindOr }

// IsNot reports whether n is a NOT combinator.
func (n Node) IsNot() bool { return n.kind == kindNot }

// Children returns the child nodes of a combinator; empty for leaves.
func (n Node) Children() []Node { return n.children }

// Fields returns every distinct field path referenced anywhere in the tree,
// in first-seen order. Callers use this to verify indexed-field coverage
// before running a query (see ErrIndexRequired).
func (n Node) Fields() []string {
	seen := make(map[string]bool)
	var order []string
	var walk func(Node)
	walk = func(cur Node) {
		if cur.kind == kindLeaf {
			if !seen[cur.leaf.Field] {
				seen[cur.leaf.Field] = true
				order = append(order, cur.leaf.Field)
			}
			return
		}
		for _, c := range cur.children {
			walk(c)
		}
	}
	walk(n)
	return order
}

// IndexError is returned by RequireIndexed, naming the specific field the
// indexed set does not cover.
type IndexError struct {
	Field string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%v: %q", ErrIndexRequired, e.Field)
}

func (e *IndexError) Unwrap() error { return ErrIndexRequired }

// RequireIndexed validates that every field referenced in the tree is present
// in the indexed set (typically a collection schema's field names). Returns
// an *IndexError naming the first unindexed field found.
func (n Node) RequireIndexed(indexed map[string]bool) error {
	for _, f := range n.Fields() {
		if !indexed[f] {
			return &IndexError{Field: f}
		}
	}
	return nil
}
