package pipeline

import (
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func TestNewContextDefaults(t *testing.T) {
	c := NewContext()
	if c.Log == nil || c.Clock == nil {
		t.Fatalf("expected non-nil defaults, got %+v", c)
	}
}

func TestNewContextAppliesOptions(t *testing.T) {
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewContext(WithClock(fixedClock{t: want}))
	if c.Clock.Now() != want {
		t.Fatalf("expected overridden clock, got %v", c.Clock.Now())
	}
}
