package bulk

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

func seed(t *testing.T, store *vectorstore.Memory, collection string) {
	t.Helper()
	ctx := context.Background()
	points := []vectorstore.Point{
		{ID: "p1", Vector: []float32{1, 0, 0}, Payload: map[string]any{"meta": map[string]any{"status": "active", "category": "other"}}},
		{ID: "p2", Vector: []float32{0, 1, 0}, Payload: map[string]any{"meta": map[string]any{"status": "deprecated", "category": "other"}}},
		{ID: "p3", Vector: []float32{0, 0, 1}, Payload: map[string]any{"meta": map[string]any{"status": "active", "category": "code"}}},
	}
	require.NoError(t, store.Upsert(ctx, collection, points))
}

func TestDeleteByFilterRemovesMatches(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	seed(t, store, "docs")
	svc := New(store, "docs", nil, nil)

	n, err := svc.DeleteByFilter(context.Background(), filterdsl.EqNode("meta.status", "deprecated"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, _ := store.Retrieve(context.Background(), "docs", []string{"p1", "p2", "p3"}, false)
	assert.Len(t, remaining, 2)
}

// TestDeleteByFilterDrainsAcrossPagesDespiteMutation seeds 250 matching
// points (well past the scroll page size of 100) and asserts
// DeleteByFilter deletes all of them across three pages even though
// each deleted page shrinks the set the next Scroll call must still
// paginate correctly over.
func TestDeleteByFilterDrainsAcrossPagesDespiteMutation(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	ctx := context.Background()
	points := make([]vectorstore.Point, 250)
	for i := range points {
		points[i] = vectorstore.Point{
			ID:      fmt.Sprintf("doc_%03d", i),
			Vector:  []float32{1, 0, 0},
			Payload: map[string]any{"meta": map[string]any{"status": "active", "category": "other"}},
		}
	}
	require.NoError(t, store.Upsert(ctx, "docs", points))
	svc := New(store, "docs", nil, nil)

	n, err := svc.DeleteByFilter(ctx, filterdsl.EqNode("meta.status", "active"))
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	remaining, err := store.Retrieve(ctx, "docs", ids, false)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestUpdateMetadataByFilterPatchesMatches(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	seed(t, store, "docs")
	svc := New(store, "docs", nil, nil)

	n, errs, err := svc.UpdateMetadataByFilter(context.Background(), filterdsl.EqNode("meta.category", "other"), map[string]any{"tags": []string{"reviewed"}})
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 2, n)
}

func TestExportReturnsMatchingPointsWithVectors(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	seed(t, store, "docs")
	svc := New(store, "docs", nil, nil)

	filter := filterdsl.EqNode("meta.status", "active")
	points, err := svc.Export(context.Background(), &filter)
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.NotEmpty(t, p.Vector, "expected vectors in export for %q", p.ID)
	}
}

func TestImportEmbedsItemsMissingVectors(t *testing.T) {
	t.Parallel()
	store := vectorstore.NewMemory()
	svc := New(store, "docs", nil, nil)
	emb := embedder.NewDeterministic(4, true)

	items := []ImportItem{
		{Point: vectorstore.Point{ID: "new1"}, Text: "some imported text"},
		{Point: vectorstore.Point{ID: "new2", Vector: []float32{1, 2, 3, 4}}},
	}
	require.NoError(t, svc.Import(context.Background(), items, emb, 2))

	got, err := store.Retrieve(context.Background(), "docs", []string{"new1", "new2"}, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.NotEmpty(t, p.Vector, "expected every imported point to carry a vector")
	}
}
