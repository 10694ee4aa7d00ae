package chunker

import "testing"

func TestSplitStableAcrossRuns(t *testing.T) {
	text := "Section one has some words.\n\nSection two has more words here and there.\n\nSection three wraps up."
	opt := Options{Size: 6, Overlap: 2}

	a, err := Split("doc1", text, opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Split("doc1", text, opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected stable chunk count, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ChunkID != b[i].ChunkID || a[i].ContentHash != b[i].ContentHash {
			t.Fatalf("chunk %d not stable across runs", i)
		}
	}
}

func TestSplitChunkIDsAndTotals(t *testing.T) {
	chunks, err := Split("parent", "one two three four five six seven eight nine ten", Options{Size: 3, Overlap: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Fatalf("expected contiguous 0-based index, got %d at position %d", c.ChunkIndex, i)
		}
		if c.ChunkID != ChunkID("parent", i) {
			t.Fatalf("unexpected chunk id %s", c.ChunkID)
		}
		if c.TotalChunks != len(chunks) {
			t.Fatalf("expected total_chunks=%d, got %d", len(chunks), c.TotalChunks)
		}
	}
}

func TestSplitEmptyContent(t *testing.T) {
	chunks, err := Split("parent", "", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Fatalf("expected no chunks for empty content")
	}
}

func TestDiffCompleteness(t *testing.T) {
	old := []Chunk{
		{ChunkIndex: 0, ContentHash: "h0"},
		{ChunkIndex: 1, ContentHash: "h1"},
		{ChunkIndex: 2, ContentHash: "h2"},
	}
	// index 0 unchanged, 1 changed, 2 deleted, 3 new
	newChunks := []Chunk{
		{ChunkIndex: 0, ContentHash: "h0"},
		{ChunkIndex: 1, ContentHash: "h1-new"},
		{ChunkIndex: 3, ContentHash: "h3"},
	}
	entries := Diff(old, newChunks)
	counts := CountDiff(entries)

	if counts.Unchanged+counts.Changed+counts.New != len(newChunks) {
		t.Fatalf("unchanged+changed+new must equal len(new): %+v", counts)
	}
	if counts.Unchanged+counts.Changed+counts.Deleted != len(old) {
		t.Fatalf("unchanged+changed+deleted must equal len(old): %+v", counts)
	}
	if counts.Unchanged != 1 || counts.Changed != 1 || counts.New != 1 || counts.Deleted != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestDiffPartialRevisionWithAddition(t *testing.T) {
	// Most chunks carry forward untouched, two are edited in place, and
	// one brand-new section is appended; nothing is removed.
	mk := func(idx int, hash string) Chunk { return Chunk{ChunkIndex: idx, ContentHash: hash} }
	old := []Chunk{mk(0, "a"), mk(1, "b"), mk(2, "c"), mk(3, "d"), mk(4, "e"), mk(5, "f")}
	newChunks := []Chunk{mk(0, "a"), mk(1, "b"), mk(2, "c-changed"), mk(3, "d-changed"), mk(4, "e"), mk(5, "f"), mk(6, "g")}
	counts := CountDiff(Diff(old, newChunks))
	if counts.Unchanged != 4 || counts.Changed != 2 || counts.New != 1 || counts.Deleted != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if counts.Unchanged+counts.Changed+counts.New != len(newChunks) {
		t.Fatalf("diff completeness violated on new side: %+v", counts)
	}
	if counts.Unchanged+counts.Changed+counts.Deleted != len(old) {
		t.Fatalf("diff completeness violated on old side: %+v", counts)
	}
}
