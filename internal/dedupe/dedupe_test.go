package dedupe

import (
	"context"
	"testing"
)

func TestClassifyExactSkip(t *testing.T) {
	cands := []Candidate{{ID: "p1", DocID: "d1", ContentHash: "h1", MetadataHash: "m1"}}
	d := Classify("d1", "h1", "m1", cands)
	if d.Level != LevelExact || d.Action != ActionSkip || d.ExistingID != "p1" {
		t.Fatalf("expected exact skip, got %+v", d)
	}
}

func TestClassifyUpdateBySameDocIDDifferentContent(t *testing.T) {
	cands := []Candidate{{ID: "p1", DocID: "d1", ContentHash: "old", MetadataHash: "m-old"}}
	d := Classify("d1", "new", "m-new", cands)
	if d.Level != LevelUpdate || d.Action != ActionUpdate || d.ExistingID != "p1" {
		t.Fatalf("expected update, got %+v", d)
	}
}

func TestClassifyUpdateBySameMetadataHashDifferentDocID(t *testing.T) {
	cands := []Candidate{{ID: "p1", DocID: "other-doc", ContentHash: "old", MetadataHash: "shared"}}
	d := Classify("d1", "new", "shared", cands)
	if d.Level != LevelUpdate {
		t.Fatalf("expected update via shared metadata hash, got %+v", d)
	}
}

func TestClassifyNewWhenNoCandidates(t *testing.T) {
	d := Classify("d1", "h1", "m1", nil)
	if d.Level != LevelNew || d.Action != ActionStore {
		t.Fatalf("expected new/store, got %+v", d)
	}
}

func TestClassifyPriorityExactBeatsUpdate(t *testing.T) {
	cands := []Candidate{
		{ID: "exact", DocID: "d1", ContentHash: "h1", MetadataHash: "m1"},
		{ID: "updateish", DocID: "d1", ContentHash: "other", MetadataHash: "m-other"},
	}
	d := Classify("d1", "h1", "m1", cands)
	if d.Level != LevelExact || d.ExistingID != "exact" {
		t.Fatalf("expected exact match to win over update candidate, got %+v", d)
	}
}

func TestClassifyChunkSameParentAndIndex(t *testing.T) {
	cands := []ChunkCandidate{{ID: "c1", ParentDocID: "doc", ChunkIndex: 2, ContentHash: "old", MetadataHash: "m-old"}}
	d := ClassifyChunk("doc_chunk_2", "doc", 2, "new", "m-new", cands)
	if d.Level != LevelUpdate || d.ExistingID != "c1" {
		t.Fatalf("expected chunk update, got %+v", d)
	}
}

func TestSemanticIndexFindsNearestAboveThreshold(t *testing.T) {
	idx := NewSemanticIndex(16)
	idx.Observe("existing", []float32{1, 0, 0})

	id, sim, ok := idx.Nearest([]float32{1, 0, 0})
	if !ok || id != "existing" {
		t.Fatalf("expected to find existing point, got id=%s ok=%v", id, ok)
	}
	if sim < 0.99 {
		t.Fatalf("expected near-identical similarity, got %f", sim)
	}
}

func TestClassifyWithSimilarityEmitsWarnAboveThreshold(t *testing.T) {
	idx := NewSemanticIndex(16)
	idx.Observe("existing", []float32{1, 0, 0})

	d := ClassifyWithSimilarity(context.Background(), "new-doc", "new-hash", "new-meta", nil, []float32{0.99, 0.01, 0}, idx)
	if d.Level != LevelSimilar || d.Action != ActionWarn {
		t.Fatalf("expected similar/warn, got %+v", d)
	}
}

func TestClassifyWithSimilarityFallsThroughToNewBelowThreshold(t *testing.T) {
	idx := NewSemanticIndex(16)
	idx.Observe("existing", []float32{1, 0, 0})

	d := ClassifyWithSimilarity(context.Background(), "new-doc", "new-hash", "new-meta", nil, []float32{0, 1, 0}, idx)
	if d.Level != LevelNew {
		t.Fatalf("expected new when below threshold, got %+v", d)
	}
}
