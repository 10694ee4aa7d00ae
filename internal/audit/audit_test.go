package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/fingerprint"
	"github.com/haystack-mcp/ragpipe/internal/query"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

func TestVerifyDocumentPassesCleanDocument(t *testing.T) {
	content := "This is a perfectly ordinary document with more than one hundred characters of real substantive content in it."
	meta := map[string]any{
		"doc_id": "d1", "category": "other", "status": "active",
		"content_hash": fingerprint.ContentHash(content),
	}
	r := VerifyDocument(content, meta)
	if r.Status != "pass" {
		t.Fatalf("expected pass, got %+v", r)
	}
}

func TestVerifyDocumentFlagsHashMismatch(t *testing.T) {
	content := "This is a perfectly ordinary document with more than one hundred characters of real substantive content in it."
	meta := map[string]any{
		"doc_id": "d1", "category": "other", "status": "active",
		"content_hash": "not-the-real-hash",
	}
	r := VerifyDocument(content, meta)
	if r.Status != "fail" {
		t.Fatalf("expected fail due to hash mismatch, got %+v", r)
	}
	found := false
	for _, i := range r.Issues {
		if i == IssueHashMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected hash_mismatch issue, got %+v", r.Issues)
	}
}

func TestVerifyDocumentRequiresFilePathForUserRule(t *testing.T) {
	content := "This is a perfectly ordinary document with more than one hundred characters of real substantive content in it."
	meta := map[string]any{
		"doc_id": "d1", "category": "user_rule", "status": "active",
		"content_hash": fingerprint.ContentHash(content),
	}
	r := VerifyDocument(content, meta)
	if r.Status != "fail" {
		t.Fatalf("expected fail due to missing file_path, got %+v", r)
	}
}

func TestAuditDirectoryClassifiesFiles(t *testing.T) {
	dir := t.TempDir()
	matchedContent := "hello from the matched file"
	mismatchedContent := "hello from the mismatched file, current version"
	if err := os.WriteFile(filepath.Join(dir, "matched.md"), []byte(matchedContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mismatched.md"), []byte(mismatchedContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "untracked.md"), []byte("never ingested"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := vectorstore.NewMemory()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", []vectorstore.Point{
		{ID: "p1", Vector: []float32{1, 0, 0}, Payload: map[string]any{"meta": map[string]any{
			"file_path": "matched.md", "content_hash": fingerprint.ContentHash(matchedContent), "category": "other",
		}}},
		{ID: "p2", Vector: []float32{0, 1, 0}, Payload: map[string]any{"meta": map[string]any{
			"file_path": "mismatched.md", "content_hash": fingerprint.ContentHash("stale old content"), "category": "other",
		}}},
	})

	q := query.New(store, "docs", embedder.NewDeterministic(4, true), nil)
	svc := New(q)

	report, err := svc.AuditDirectory(ctx, dir, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalFiles != 3 {
		t.Fatalf("expected 3 files scanned, got %d", report.TotalFiles)
	}
	if report.Missing != 1 {
		t.Fatalf("expected 1 missing-from-store file, got %d", report.Missing)
	}
	if report.Mismatched != 1 {
		t.Fatalf("expected 1 mismatched file, got %d", report.Mismatched)
	}
}
