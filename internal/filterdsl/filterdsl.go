// Package filterdsl defines the pipeline's store-agnostic filter
// representation and translates it to a store's native filter AST:
// comparison leaves ({field, operator, value}) and logic nodes
// (AND/OR/NOT over child conditions), rendered into must/must_not/
// should condition slices a concrete adapter can map 1:1.
package filterdsl

import (
	"fmt"

	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

// Operator is a comparison or logic operator recognized by the DSL.
type Operator string

const (
	Eq       Operator = "=="
	Ne       Operator = "!="
	Gt       Operator = ">"
	Ge       Operator = ">="
	Lt       Operator = "<"
	Le       Operator = "<="
	In       Operator = "in"
	NotIn    Operator = "not in"
	LogicAnd Operator = "AND"
	LogicOr  Operator = "OR"
	LogicNot Operator = "NOT"
)

var comparisonOps = map[Operator]bool{
	Eq: true, Ne: true, Gt: true, Ge: true, Lt: true, Le: true, In: true, NotIn: true,
}

var logicOps = map[Operator]bool{
	LogicAnd: true, LogicOr: true, LogicNot: true,
}

// Node is a filter DSL node: either a comparison leaf ({field,
// operator, value}) or a logic node ({operator, conditions}). Field
// names use dotted paths, e.g. "meta.category".
type Node struct {
	// Comparison fields.
	Field    string
	Operator Operator
	Value    any

	// Logic fields.
	Conditions []Node
}

func (n Node) isLogic() bool { return logicOps[n.Operator] }

// Validate checks that every node in the tree uses a recognized
// operator and is well-formed, returning InvalidFilter otherwise.
func Validate(n Node) error {
	switch {
	case logicOps[n.Operator]:
		if n.Operator == LogicNot && len(n.Conditions) != 1 {
			return pipeline.New(pipeline.ErrInvalidFilter, "NOT requires exactly one condition")
		}
		if len(n.Conditions) == 0 {
			return pipeline.New(pipeline.ErrInvalidFilter, "logic node %q requires at least one condition", n.Operator)
		}
		for _, c := range n.Conditions {
			if err := Validate(c); err != nil {
				return err
			}
		}
		return nil
	case comparisonOps[n.Operator]:
		if n.Field == "" {
			return pipeline.New(pipeline.ErrInvalidFilter, "comparison node requires a field")
		}
		return nil
	default:
		return pipeline.New(pipeline.ErrInvalidFilter, "unknown filter operator %q", n.Operator)
	}
}

// EqNode builds a field == value comparison node. Helpers below exist so
// callers rarely need to build Node literals by hand.
func EqNode(field string, value any) Node  { return Node{Field: field, Operator: Eq, Value: value} }
func NeNode(field string, value any) Node  { return Node{Field: field, Operator: Ne, Value: value} }
func InNode(field string, values []any) Node {
	return Node{Field: field, Operator: In, Value: values}
}
func And(conditions ...Node) Node { return Node{Operator: LogicAnd, Conditions: conditions} }
func Or(conditions ...Node) Node  { return Node{Operator: LogicOr, Conditions: conditions} }
func Not(condition Node) Node     { return Node{Operator: LogicNot, Conditions: []Node{condition}} }

// Native is the store-agnostic translation target: three slices that
// mirror Qdrant's Filter{Must, MustNot, Should} shape closely enough
// that a concrete adapter can map it 1:1 (internal/vectorstore/qdrant).
type Native struct {
	Must    []Condition
	MustNot []Condition
	Should  []Condition
}

// Condition is one native-filter leaf: a field match, a range, or a
// membership ("match any") check.
type Condition struct {
	Field string
	Kind  ConditionKind
	Match any     // Kind == Match
	Any   []any   // Kind == MatchAny
	Range *Range  // Kind == Range
}

type ConditionKind string

const (
	KindMatch    ConditionKind = "match"
	KindMatchAny ConditionKind = "match_any"
	KindRange    ConditionKind = "range"
)

// Range expresses an inclusive/exclusive numeric bound; only the
// relevant pointer fields are set for a given comparison operator.
type Range struct {
	Gt, Ge, Lt, Le *float64
}

// Translate converts a DSL tree into the Must/MustNot/Should triple.
// AND merges children's must/must_not/should arrays; OR collects every
// child's positive conditions into Should and rejects a child that
// negates (NOT, !=, not-in), since this flat representation has no
// way to express "should match the negation of X"; NOT flips a
// comparison's Must into MustNot (and vice versa for already-negated
// children).
func Translate(n Node) (Native, error) {
	if err := Validate(n); err != nil {
		return Native{}, err
	}
	return translate(n)
}

func translate(n Node) (Native, error) {
	switch n.Operator {
	case LogicAnd:
		var out Native
		for _, c := range n.Conditions {
			child, err := translate(c)
			if err != nil {
				return Native{}, err
			}
			out.Must = append(out.Must, child.Must...)
			out.MustNot = append(out.MustNot, child.MustNot...)
			out.Should = append(out.Should, child.Should...)
		}
		return out, nil
	case LogicOr:
		var out Native
		for _, c := range n.Conditions {
			child, err := translate(c)
			if err != nil {
				return Native{}, err
			}
			if len(child.MustNot) > 0 {
				// A negated child (NOT, !=, not-in) translates to a
				// MustNot condition, which has no Should-compatible
				// positive form in this flat must/must_not/should
				// representation: lifting it into Should without
				// inverting it (as a prior version of this code did)
				// silently flips its meaning. Reject instead of
				// mistranslating. "A or not B" has no translation
				// here: NOT only swaps a child's Must and MustNot,
				// so NOT(NOT A AND B) becomes "A and not B".
				return Native{}, pipeline.New(pipeline.ErrInvalidFilter, "OR cannot contain a negated condition (NOT, !=, or not-in)")
			}
			out.Should = append(out.Should, child.Must...)
			out.Should = append(out.Should, child.Should...)
		}
		return out, nil
	case LogicNot:
		child, err := translate(n.Conditions[0])
		if err != nil {
			return Native{}, err
		}
		return Native{Must: child.MustNot, MustNot: child.Must, Should: nil}, nil
	default:
		cond, err := translateComparison(n)
		if err != nil {
			return Native{}, err
		}
		if n.Operator == Ne || n.Operator == NotIn {
			return Native{MustNot: []Condition{cond}}, nil
		}
		return Native{Must: []Condition{cond}}, nil
	}
}

func translateComparison(n Node) (Condition, error) {
	switch n.Operator {
	case Eq, Ne:
		return Condition{Field: n.Field, Kind: KindMatch, Match: n.Value}, nil
	case In, NotIn:
		values, ok := n.Value.([]any)
		if !ok {
			return Condition{}, pipeline.New(pipeline.ErrInvalidFilter, "field %q: %s requires a list value", n.Field, n.Operator)
		}
		return Condition{Field: n.Field, Kind: KindMatchAny, Any: values}, nil
	case Gt, Ge, Lt, Le:
		f, ok := asFloat(n.Value)
		if !ok {
			return Condition{}, pipeline.New(pipeline.ErrInvalidFilter, "field %q: %s requires a numeric value", n.Field, n.Operator)
		}
		r := &Range{}
		switch n.Operator {
		case Gt:
			r.Gt = &f
		case Ge:
			r.Ge = &f
		case Lt:
			r.Lt = &f
		case Le:
			r.Le = &f
		}
		return Condition{Field: n.Field, Kind: KindRange, Range: r}, nil
	}
	return Condition{}, pipeline.New(pipeline.ErrInvalidFilter, "unsupported operator %q", n.Operator)
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// String renders a node for diagnostics/logging.
func (n Node) String() string {
	if n.isLogic() {
		return fmt.Sprintf("%s(%v)", n.Operator, n.Conditions)
	}
	return fmt.Sprintf("%s %s %v", n.Field, n.Operator, n.Value)
}
