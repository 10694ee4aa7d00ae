package filterdsl

import (
	"testing"

	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

func TestTranslateEquality(t *testing.T) {
	n := EqNode("meta.category", "user_rule")
	native, err := Translate(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(native.Must) != 1 || native.Must[0].Kind != KindMatch {
		t.Fatalf("expected single match condition, got %+v", native)
	}
}

func TestTranslateNotEqualityGoesToMustNot(t *testing.T) {
	native, err := Translate(NeNode("meta.status", "deprecated"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(native.MustNot) != 1 {
		t.Fatalf("expected must_not condition, got %+v", native)
	}
}

func TestTranslateInProducesMatchAny(t *testing.T) {
	native, err := Translate(InNode("meta.category", []any{"user_rule", "project_context"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(native.Must) != 1 || native.Must[0].Kind != KindMatchAny || len(native.Must[0].Any) != 2 {
		t.Fatalf("expected match_any condition, got %+v", native)
	}
}

func TestTranslateRange(t *testing.T) {
	n := Node{Field: "score", Operator: Ge, Value: 0.85}
	native, err := Translate(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(native.Must) != 1 || native.Must[0].Kind != KindRange || native.Must[0].Range.Ge == nil {
		t.Fatalf("expected range condition, got %+v", native)
	}
}

func TestTranslateAndMergesArrays(t *testing.T) {
	n := And(EqNode("meta.category", "code"), NeNode("meta.status", "deprecated"))
	native, err := Translate(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(native.Must) != 1 || len(native.MustNot) != 1 {
		t.Fatalf("expected merged must/must_not, got %+v", native)
	}
}

func TestTranslateOrProducesShould(t *testing.T) {
	n := Or(EqNode("meta.category", "code"), EqNode("meta.category", "user_rule"))
	native, err := Translate(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(native.Should) != 2 {
		t.Fatalf("expected two should conditions, got %+v", native)
	}
}

func TestTranslateNotFlipsMustAndMustNot(t *testing.T) {
	n := Not(EqNode("meta.status", "active"))
	native, err := Translate(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(native.MustNot) != 1 || len(native.Must) != 0 {
		t.Fatalf("expected NOT to flip the equality into must_not, got %+v", native)
	}
}

func TestTranslateRejectsNegatedOrChild(t *testing.T) {
	n := Or(Not(EqNode("meta.status", "deprecated")), EqNode("meta.category", "code"))
	_, err := Translate(n)
	if err == nil {
		t.Fatalf("expected error for OR containing a negated child")
	}
	if kind, _ := pipeline.KindOf(err); kind != pipeline.ErrInvalidFilter {
		t.Fatalf("expected InvalidFilter, got %v", kind)
	}
}

func TestTranslateRejectsNotEqualAsOrChild(t *testing.T) {
	n := Or(NeNode("meta.status", "deprecated"), EqNode("meta.category", "code"))
	_, err := Translate(n)
	if err == nil {
		t.Fatalf("expected error for OR containing a != child")
	}
	if kind, _ := pipeline.KindOf(err); kind != pipeline.ErrInvalidFilter {
		t.Fatalf("expected InvalidFilter, got %v", kind)
	}
}

func TestValidateRejectsUnknownOperator(t *testing.T) {
	n := Node{Field: "meta.category", Operator: Operator("~="), Value: "x"}
	_, err := Translate(n)
	if err == nil {
		t.Fatalf("expected error for unknown operator")
	}
	if kind, _ := pipeline.KindOf(err); kind != pipeline.ErrInvalidFilter {
		t.Fatalf("expected InvalidFilter, got %v", kind)
	}
}

func TestValidateRejectsEmptyLogicConditions(t *testing.T) {
	n := Node{Operator: LogicAnd}
	if _, err := Translate(n); err == nil {
		t.Fatalf("expected error for AND with no conditions")
	}
}

func TestValidateRejectsMultiConditionNot(t *testing.T) {
	n := Node{Operator: LogicNot, Conditions: []Node{EqNode("a", 1), EqNode("b", 2)}}
	if _, err := Translate(n); err == nil {
		t.Fatalf("expected error for NOT with more than one condition")
	}
}
