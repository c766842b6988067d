package metadata

import (
	"fmt"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// Op is a leaf comparison operator.
type Op string

const (
	OpEq    Op = "eq"
	OpNe    Op = "ne"
	OpLt    Op = "lt"
	OpLe    Op = "le"
	OpGt    Op = "gt"
	OpGe    Op = "ge"
	OpIn    Op = "in"
	OpRange Op = "range"
)

// NodeKind discriminates leaf vs. internal (boolean-combinator) nodes.
type NodeKind int

const (
	NodeLeaf NodeKind = iota
	NodeAnd
	NodeOr
	NodeNot
)

// Node is one node of a filter expression tree. A leaf node compares
// FieldID against Operand using Operator; an internal node combines
// Children with AND/OR/NOT semantics.
type Node struct {
	Kind     NodeKind
	FieldID  int
	Operator Op
	Operand  Value
	RangeLo  Value
	RangeHi  Value
	InSet    []Value
	Children []*Node
}

// Leaf constructs a comparison leaf.
func Leaf(fieldID int, op Op, operand Value) *Node {
	return &Node{Kind: NodeLeaf, FieldID: fieldID, Operator: op, Operand: operand}
}

// LeafIn constructs an "in" leaf.
func LeafIn(fieldID int, set []Value) *Node {
	return &Node{Kind: NodeLeaf, FieldID: fieldID, Operator: OpIn, InSet: set}
}

// LeafRange constructs a "range" leaf: lo <= value <= hi.
func LeafRange(fieldID int, lo, hi Value) *Node {
	return &Node{Kind: NodeLeaf, FieldID: fieldID, Operator: OpRange, RangeLo: lo, RangeHi: hi}
}

// And combines children with AND.
func And(children ...*Node) *Node { return &Node{Kind: NodeAnd, Children: children} }

// Or combines children with OR.
func Or(children ...*Node) *Node { return &Node{Kind: NodeOr, Children: children} }

// Not negates a single child.
func Not(child *Node) *Node { return &Node{Kind: NodeNot, Children: []*Node{child}} }

// Validate enforces the maximum leaf count.
func (n *Node) Validate() error {
	count := n.countLeaves()
	if count > MaxFilterLeaves {
		return errTooManyLeaves
	}
	return nil
}

func (n *Node) countLeaves() int {
	if n == nil {
		return 0
	}
	if n.Kind == NodeLeaf {
		return 1
	}
	total := 0
	for _, c := range n.Children {
		total += c.countLeaves()
	}
	return total
}

// Evaluate applies the tree to a record, short-circuiting AND/OR.
func (n *Node) Evaluate(rec Record) bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case NodeAnd:
		for _, c := range n.Children {
			if !c.Evaluate(rec) {
				return false
			}
		}
		return true
	case NodeOr:
		for _, c := range n.Children {
			if c.Evaluate(rec) {
				return true
			}
		}
		return false
	case NodeNot:
		if len(n.Children) == 0 {
			return true
		}
		return !n.Children[0].Evaluate(rec)
	default:
		return n.evaluateLeaf(rec)
	}
}

func (n *Node) evaluateLeaf(rec Record) bool {
	val, ok := rec[n.FieldID]
	switch n.Operator {
	case OpEq:
		return ok && valuesEqual(val, n.Operand)
	case OpNe:
		return !ok || !valuesEqual(val, n.Operand)
	case OpLt:
		return ok && compareNumeric(val, n.Operand) < 0
	case OpLe:
		return ok && compareNumeric(val, n.Operand) <= 0
	case OpGt:
		return ok && compareNumeric(val, n.Operand) > 0
	case OpGe:
		return ok && compareNumeric(val, n.Operand) >= 0
	case OpIn:
		if !ok {
			return false
		}
		for _, candidate := range n.InSet {
			if valuesEqual(val, candidate) {
				return true
			}
		}
		return false
	case OpRange:
		return ok && compareNumeric(val, n.RangeLo) >= 0 && compareNumeric(val, n.RangeHi) <= 0
	default:
		return false
	}
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString:
		return a.StringVal == b.StringVal
	case KindNumber:
		return a.NumberVal == b.NumberVal
	case KindBool:
		return a.BoolVal == b.BoolVal
	case KindStringArray:
		if len(a.StringArray) != len(b.StringArray) {
			return false
		}
		for i := range a.StringArray {
			if a.StringArray[i] != b.StringArray[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// compareNumeric orders two values by their numeric (or string, for
// KindString) representation. Non-comparable kinds sort equal (0).
func compareNumeric(a, b Value) int {
	if a.Kind == KindNumber && b.Kind == KindNumber {
		switch {
		case a.NumberVal < b.NumberVal:
			return -1
		case a.NumberVal > b.NumberVal:
			return 1
		default:
			return 0
		}
	}
	if a.Kind == KindString && b.Kind == KindString {
		switch {
		case a.StringVal < b.StringVal:
			return -1
		case a.StringVal > b.StringVal:
			return 1
		default:
			return 0
		}
	}
	return 0
}

// BuildPredicate compiles a FilterPredicate DSL document into a Node tree.
// A plain scalar value under a field becomes an `eq` leaf; a map with a
// single "$op" key becomes the matching operator leaf. Top-level keys are
// ANDed together. Unknown operators are rejected.
func BuildPredicate(fields *FieldBuilder, predicate map[string]interface{}) (*Node, error) {
	var leaves []*Node
	for field, raw := range predicate {
		fieldID := fields.Intern(field)
		leaf, err := buildLeaf(fieldID, raw)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leaf)
	}

	var tree *Node
	if len(leaves) == 1 {
		tree = leaves[0]
	} else {
		tree = And(leaves...)
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

func buildLeaf(fieldID int, raw interface{}) (*Node, error) {
	opMap, ok := raw.(map[string]interface{})
	if !ok {
		return Leaf(fieldID, OpEq, toValue(raw)), nil
	}
	if len(opMap) != 1 {
		return nil, coreerrors.ValidationError("filter operator map must have exactly one key", nil)
	}
	for opName, operand := range opMap {
		if len(opName) < 2 || opName[0] != '$' {
			return nil, coreerrors.ValidationError(fmt.Sprintf("unknown filter operator %q", opName), nil)
		}
		op := Op(opName[1:])
		switch op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			return Leaf(fieldID, op, toValue(operand)), nil
		case OpIn:
			items, ok := operand.([]interface{})
			if !ok {
				return nil, coreerrors.ValidationError("$in operand must be an array", nil)
			}
			values := make([]Value, len(items))
			for i, it := range items {
				values[i] = toValue(it)
			}
			return LeafIn(fieldID, values), nil
		case OpRange:
			bounds, ok := operand.([]interface{})
			if !ok || len(bounds) != 2 {
				return nil, coreerrors.ValidationError("$range operand must be a two-element array", nil)
			}
			return LeafRange(fieldID, toValue(bounds[0]), toValue(bounds[1])), nil
		default:
			return nil, coreerrors.ValidationError(fmt.Sprintf("unknown filter operator %q", opName), nil)
		}
	}
	panic("unreachable")
}

func toValue(raw interface{}) Value {
	switch v := raw.(type) {
	case string:
		return String(v)
	case bool:
		return Bool(v)
	case float64:
		return Number(v)
	case int:
		return Number(float64(v))
	case []string:
		return StringArray(v)
	case []interface{}:
		arr := make([]string, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				arr[i] = s
			}
		}
		return StringArray(arr)
	default:
		return String(fmt.Sprintf("%v", v))
	}
}
