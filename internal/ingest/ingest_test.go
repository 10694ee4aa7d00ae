package ingest

import (
	"context"
	"testing"

	"github.com/haystack-mcp/ragpipe/internal/dedupe"
	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/metadata"
	"github.com/haystack-mcp/ragpipe/internal/update"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

func newEngine() *Engine {
	store := vectorstore.NewMemory()
	doc := embedder.NewDeterministic(8, true)
	code := embedder.NewDeterministic(8, true)
	return New(store, "docs", "code", doc, code, nil)
}

func TestStoreNewDocument(t *testing.T) {
	e := newEngine()
	res, err := e.Store(context.Background(), Input{DocID: "d1", Content: "hello world", Category: metadata.CategoryOther})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != dedupe.ActionStore || res.Level != dedupe.LevelNew {
		t.Fatalf("expected store/new, got %+v", res)
	}
	if res.PointID != "d1" {
		t.Fatalf("expected point id d1, got %q", res.PointID)
	}

	points, _ := e.VectorStore.Retrieve(context.Background(), "docs", []string{"d1"}, true)
	if len(points) != 1 || len(points[0].Vector) != 8 {
		t.Fatalf("expected stored point with vector, got %+v", points)
	}
}

func TestStoreExactDuplicateSkips(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	in := Input{DocID: "d1", Content: "same content", Category: metadata.CategoryOther}
	first, err := e.Store(ctx, in)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	second, err := e.Store(ctx, in)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if second.Action != dedupe.ActionSkip || second.Level != dedupe.LevelExact {
		t.Fatalf("expected skip/exact on identical re-ingest, got %+v", second)
	}
	if second.PointID != first.PointID {
		t.Fatalf("expected same point id, got %q vs %q", second.PointID, first.PointID)
	}
}

func TestStoreSameDocIDChangedContentUpdates(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	if _, err := e.Store(ctx, Input{DocID: "d1", Content: "version one", Category: metadata.CategoryOther}); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	res, err := e.Store(ctx, Input{DocID: "d1", Content: "version two, quite different", Category: metadata.CategoryOther})
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if res.Action != dedupe.ActionUpdate || res.Level != dedupe.LevelUpdate {
		t.Fatalf("expected update, got %+v", res)
	}
}

// Ingesting "v1" then "v2" under the same doc_id/category must leave
// two points in version history, the first deprecated and the second
// active, with different content hashes.
func TestContentUpdateDeprecatesPriorVersion(t *testing.T) {
	store := vectorstore.NewMemory()
	doc := embedder.NewDeterministic(8, true)
	e := New(store, "docs", "code", doc, doc, nil)
	upd := update.New(store, "docs", nil)
	e.Updater = upd

	ctx := context.Background()
	in := Input{DocID: "d1", Content: "v1", Category: metadata.CategoryUserRule, FilePath: "rules/d1.md"}
	if _, err := e.Store(ctx, in); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	in.Content = "v2"
	second, err := e.Store(ctx, in)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if second.Action != dedupe.ActionUpdate {
		t.Fatalf("expected action=update, got %+v", second)
	}

	hist, err := upd.GetVersionHistory(ctx, "d1", "", true)
	if err != nil {
		t.Fatalf("GetVersionHistory failed: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 points in version history, got %d: %+v", len(hist), hist)
	}
	statuses := map[string]bool{}
	hashes := map[string]bool{}
	for _, p := range hist {
		s, _ := p.Value("meta.status")
		status, _ := s.(string)
		statuses[status] = true
		h, _ := p.Value("meta.content_hash")
		hash, _ := h.(string)
		hashes[hash] = true
	}
	if !statuses["deprecated"] || !statuses["active"] {
		t.Fatalf("expected one deprecated and one active point, got statuses %+v", statuses)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected distinct content hashes across versions, got %+v", hashes)
	}
}

func TestStoreDeprecatesPriorOnUpdateWhenUpdaterSet(t *testing.T) {
	store := vectorstore.NewMemory()
	doc := embedder.NewDeterministic(8, true)
	e := New(store, "docs", "code", doc, doc, nil)
	e.Updater = update.New(store, "docs", nil)

	ctx := context.Background()
	if _, err := e.Store(ctx, Input{DocID: "d1", Version: "v1", Content: "first body"}); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	// Reusing the DocID with different content makes Classify return an
	// update against point "d1"; Store writes the new version under
	// "d1@v2" and deprecates "d1" through the Updater.
	if _, err := e.Store(ctx, Input{DocID: "d1", Version: "v2", Content: "second, very different body text"}); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	points, err := store.Retrieve(ctx, "docs", []string{"d1"}, false)
	if err != nil || len(points) != 1 {
		t.Fatalf("expected point d1 in docs collection, got %+v, err=%v", points, err)
	}
	status, _ := points[0].Value("meta.status")
	if status != "deprecated" {
		t.Fatalf("expected the prior point to be deprecated via the updater, got status=%v", status)
	}
}

func TestStoreDeprecatesPriorInCodeCollectionViaCodeUpdater(t *testing.T) {
	store := vectorstore.NewMemory()
	doc := embedder.NewDeterministic(8, true)
	code := embedder.NewDeterministic(8, true)
	e := New(store, "docs", "code", doc, code, nil)
	e.Updater = update.New(store, "docs", nil)
	e.CodeUpdater = update.New(store, "code", nil)

	ctx := context.Background()
	in := Input{DocID: "c1", Version: "v1", Content: "func Foo() {}", ContentType: ContentCode}
	if _, err := e.Store(ctx, in); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	in.Version = "v2"
	in.Content = "func Foo() { return }"
	if _, err := e.Store(ctx, in); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	points, err := store.Retrieve(ctx, "code", []string{"c1"}, false)
	if err != nil || len(points) != 1 {
		t.Fatalf("expected point c1 in code collection, got %+v, err=%v", points, err)
	}
	status, _ := points[0].Value("meta.status")
	if status != "deprecated" {
		t.Fatalf("expected the prior point to be deprecated via the code-collection updater, got status=%v", status)
	}
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	e := newEngine()
	_, err := e.Store(context.Background(), Input{DocID: "d1", Content: "   "})
	if err == nil {
		t.Fatal("expected an error for empty content")
	}
}
