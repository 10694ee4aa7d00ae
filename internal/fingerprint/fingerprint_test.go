package fingerprint

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	cases := []string{
		"Hello World.  \r\n\r\nSecond line.\r",
		"[Full content from file...] some [TODO: finish] text [TBD: later]",
		"",
		"already lower\n",
	}
	for _, c := range cases {
		once := Normalize(c)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: once=%q twice=%q", c, once, twice)
		}
	}
}

func TestNormalizeRemovesPlaceholders(t *testing.T) {
	got := Normalize("keep this [TODO: fix later] and this [...] done")
	if got != "keep this  and this  done" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestContentHashStableAcrossLineEndings(t *testing.T) {
	a := ContentHash("line one\r\nline two\r\n")
	b := ContentHash("line one\nline two\n")
	if a != b {
		t.Fatalf("expected equal hashes, got %s vs %s", a, b)
	}
}

func TestContentHashEmpty(t *testing.T) {
	// SHA-256 of the empty string.
	const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := ContentHash(""); got != emptySHA256 {
		t.Fatalf("expected well-known empty hash, got %s", got)
	}
}

func TestMetadataHashOrderIndependent(t *testing.T) {
	m1 := map[string]any{"doc_id": "d1", "category": "user_rule", "tags": []string{"a", "b"}}
	m2 := map[string]any{"tags": []string{"a", "b"}, "category": "user_rule", "doc_id": "d1"}
	if MetadataHash(m1) != MetadataHash(m2) {
		t.Fatalf("metadata hash should be independent of map iteration/insertion order")
	}
}

func TestMetadataHashExcludesVolatileFields(t *testing.T) {
	base := map[string]any{"doc_id": "d1", "category": "user_rule"}
	withVolatile := map[string]any{
		"doc_id": "d1", "category": "user_rule",
		"created_at": "2026-01-01T00:00:00Z",
		"updated_at": "2026-02-02T00:00:00Z",
		"status":     "active",
		"version":    "2026-01-01T00:00:00Z",
	}
	if MetadataHash(base) != MetadataHash(withVolatile) {
		t.Fatalf("volatile fields must not affect metadata hash")
	}
}

func TestFingerprintCompositeKey(t *testing.T) {
	fp := Of("hello", map[string]any{"doc_id": "d1"})
	if fp.CompositeKey != fp.ContentHash+":"+fp.MetadataHash {
		t.Fatalf("composite key mismatch: %+v", fp)
	}
}

func TestFingerprintReproducible(t *testing.T) {
	a := Of("Same content.", map[string]any{"doc_id": "d1", "category": "user_rule"})
	b := Of("Same content.", map[string]any{"category": "user_rule", "doc_id": "d1"})
	if a != b {
		t.Fatalf("expected identical fingerprints, got %+v vs %+v", a, b)
	}
}
