package metadata

import (
	"testing"
	"time"

	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBuildDefaultsAndHash(t *testing.T) {
	b := Builder{Now: fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))}
	m, err := b.Build(Input{DocID: "d1", Category: CategoryUserRule, HashContent: "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Source != SourceManual || m.Status != StatusActive {
		t.Fatalf("expected defaults, got source=%s status=%s", m.Source, m.Status)
	}
	if m.Version != m.CreatedAt {
		t.Fatalf("expected version to default to creation timestamp")
	}
	if m.MetadataHash == "" {
		t.Fatalf("expected computed metadata hash")
	}
	if m.Path != m.FilePath || m.ContentHash != m.HashContent {
		t.Fatalf("aliases not populated: %+v", m)
	}
}

func TestBuildRequiresFields(t *testing.T) {
	b := Builder{}
	if _, err := b.Build(Input{Category: CategoryOther, HashContent: "x"}); err == nil {
		t.Fatalf("expected error for missing doc_id")
	} else if kind, _ := pipeline.KindOf(err); kind != pipeline.ErrInvalidMetadata {
		t.Fatalf("expected InvalidMetadata, got %v", kind)
	}
	if _, err := b.Build(Input{DocID: "d1"}); err == nil {
		t.Fatalf("expected error for missing hash_content")
	}
	if _, err := b.Build(Input{DocID: "d1", HashContent: "x"}); err == nil {
		t.Fatalf("expected error for empty category")
	}
}

func TestBuildRejectsUnknownEnums(t *testing.T) {
	b := Builder{}
	if _, err := b.Build(Input{DocID: "d1", HashContent: "x", Category: Category("bogus")}); err == nil {
		t.Fatalf("expected error for unknown category")
	}
	if _, err := b.Build(Input{DocID: "d1", HashContent: "x", Category: CategoryOther, Source: Source("bogus")}); err == nil {
		t.Fatalf("expected error for unknown source")
	}
	if _, err := b.Build(Input{DocID: "d1", HashContent: "x", Category: CategoryOther, Status: Status("bogus")}); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestBuildRequiresFilePathForCertainCategories(t *testing.T) {
	b := Builder{}
	if _, err := b.Build(Input{DocID: "d1", HashContent: "x", Category: CategoryUserRule}); err == nil {
		t.Fatalf("expected error for missing file_path on user_rule")
	}
	if _, err := b.Build(Input{DocID: "d1", HashContent: "x", Category: CategoryUserRule, FilePath: "a.md"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMetadataHashExcludesVolatileRegardlessOfVersion(t *testing.T) {
	b1 := Builder{Now: fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
	b2 := Builder{Now: fixedClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))}
	m1, _ := b1.Build(Input{DocID: "d1", Category: CategoryOther, HashContent: "x"})
	m2, _ := b2.Build(Input{DocID: "d1", Category: CategoryOther, HashContent: "x"})
	if m1.MetadataHash != m2.MetadataHash {
		t.Fatalf("metadata hash should not change across timestamps alone")
	}
}
