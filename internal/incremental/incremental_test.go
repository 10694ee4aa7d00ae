package incremental

import (
	"context"
	"strings"
	"testing"

	"github.com/haystack-mcp/ragpipe/internal/chunker"
	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/fingerprint"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

type countingEmbedder struct {
	embedder.Embedder
	calls int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls += len(texts)
	return c.Embedder.EmbedBatch(ctx, texts)
}

func seedChunks(t *testing.T, store *vectorstore.Memory, collection, docID string, texts []string) {
	t.Helper()
	ctx := context.Background()
	var points []vectorstore.Point
	for i, text := range texts {
		cid := chunker.ChunkID(docID, i)
		points = append(points, vectorstore.Point{
			ID:     cid,
			Vector: []float32{1, 0, 0},
			Payload: map[string]any{"meta": map[string]any{
				"doc_id": cid, "parent_doc_id": docID, "chunk_index": i,
				"content_hash": fingerprint.ContentHash(text), "status": "active", "is_chunk": true,
			}},
		})
	}
	if err := store.Upsert(ctx, collection, points); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestUpdateEmbedsOnlyChangedAndNewChunks(t *testing.T) {
	store := vectorstore.NewMemory()
	base := embedder.NewDeterministic(4, true)
	emb := &countingEmbedder{Embedder: base}

	oldTexts := []string{"alpha piece one.", "beta piece two.", "gamma piece three."}
	seedChunks(t, store, "docs", "doc1", oldTexts)

	u := New(store, "docs", emb, nil)

	newContent := strings.Join([]string{"alpha piece one.", "beta CHANGED piece two.", "gamma piece three.", "delta brand new piece."}, " ")
	report, err := u.Update(context.Background(), "doc1", newContent, Options{Chunk: chunker.Options{Size: 4, Overlap: 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.ChunkErrors) != 0 {
		t.Fatalf("unexpected chunk errors: %v", report.ChunkErrors)
	}
	wantCalls := report.Counts.Changed + report.Counts.New
	if emb.calls != wantCalls {
		t.Fatalf("expected exactly %d embed calls (changed+new), got %d", wantCalls, emb.calls)
	}
	if report.Counts.New == 0 {
		t.Fatalf("expected at least one brand new chunk, got %+v", report.Counts)
	}
}
