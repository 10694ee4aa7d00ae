package update

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func TestUpdateContentRewritesVectorAndHash(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", []vectorstore.Point{
		{ID: "p1", Vector: []float32{1, 0, 0}, Payload: map[string]any{"meta": map[string]any{
			"doc_id": "d1", "content_hash": "old", "status": "active",
		}}},
	})
	svc := New(store, "docs", pipeline.NewContext(pipeline.WithClock(fixedClock{})))
	emb := embedder.NewDeterministic(3, false)

	got, err := svc.UpdateContent(ctx, "p1", "brand new content", emb, map[string]any{"tags": []string{"x"}})
	require.NoError(t, err)
	h, _ := got.Value("meta.content_hash")
	assert.NotEqual(t, "old", h)
	u, _ := got.Value("meta.updated_at")
	assert.Equal(t, "2026-01-02T03:04:05.000000Z", u)
	assert.Len(t, got.Vector, 3)

	stored, _ := store.Retrieve(ctx, "docs", []string{"p1"}, true)
	require.Len(t, stored, 1)
	assert.Len(t, stored[0].Vector, 3)
}

func TestUpdateContentFailsWithoutExistingVector(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", []vectorstore.Point{
		{ID: "p1", Payload: map[string]any{"meta": map[string]any{"doc_id": "d1"}}},
	})
	svc := New(store, "docs", nil)
	emb := embedder.NewDeterministic(3, false)

	_, err := svc.UpdateContent(ctx, "p1", "x", emb, nil)
	require.Error(t, err, "expected an error when the existing point has no vector")
}

func TestUpdateMetadataPreservesVector(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", []vectorstore.Point{
		{ID: "p1", Vector: []float32{1, 2, 3}, Payload: map[string]any{"meta": map[string]any{"doc_id": "d1", "status": "active"}}},
	})
	svc := New(store, "docs", nil)

	_, err := svc.UpdateMetadata(ctx, "p1", map[string]any{"category": "design_doc"})
	require.NoError(t, err)

	stored, _ := store.Retrieve(ctx, "docs", []string{"p1"}, true)
	require.Len(t, stored, 1)
	assert.Len(t, stored[0].Vector, 3, "expected vector preserved")
	c, _ := stored[0].Value("meta.category")
	assert.Equal(t, "design_doc", c)
}

func TestDeprecateSetsStatus(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", []vectorstore.Point{
		{ID: "p1", Vector: []float32{1, 2, 3}, Payload: map[string]any{"meta": map[string]any{"doc_id": "d1", "status": "active"}}},
	})
	svc := New(store, "docs", nil)

	got, err := svc.Deprecate(ctx, "p1")
	require.NoError(t, err)
	s, _ := got.Value("meta.status")
	assert.Equal(t, "deprecated", s)
}

func TestGetVersionHistorySortsByVersionThenCreatedAt(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", []vectorstore.Point{
		{ID: "v2", Payload: map[string]any{"meta": map[string]any{"doc_id": "d1", "version": "2026-01-02T00:00:00.000000Z", "created_at": "2026-01-02T00:00:00.000000Z", "status": "active"}}},
		{ID: "v1", Payload: map[string]any{"meta": map[string]any{"doc_id": "d1", "version": "2026-01-01T00:00:00.000000Z", "created_at": "2026-01-01T00:00:00.000000Z", "status": "active"}}},
		{ID: "other", Payload: map[string]any{"meta": map[string]any{"doc_id": "d2", "version": "2026-01-01T00:00:00.000000Z", "status": "active"}}},
	})
	svc := New(store, "docs", nil)

	hist, err := svc.GetVersionHistory(ctx, "d1", "", true)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "v1", hist[0].ID)
	assert.Equal(t, "v2", hist[1].ID)
}
