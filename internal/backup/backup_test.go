package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haystack-mcp/ragpipe/internal/bulk"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

func fixedNow() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func seedStore(t *testing.T, store *vectorstore.Memory, collection string) {
	t.Helper()
	ctx := context.Background()
	points := []vectorstore.Point{
		{ID: "p1", Vector: []float32{1, 0, 0}, Payload: map[string]any{"meta": map[string]any{"doc_id": "d1", "status": "active"}}},
		{ID: "p2", Vector: []float32{0, 1, 0}, Payload: map[string]any{"meta": map[string]any{"doc_id": "d2", "status": "active"}}},
	}
	require.NoError(t, store.Upsert(ctx, collection, points))
}

func TestBackupWritesManifestAndEntries(t *testing.T) {
	Now = fixedNow
	defer func() { Now = time.Now }()

	store := vectorstore.NewMemory()
	seedStore(t, store, "docs")
	b := bulk.New(store, "docs", nil, nil)

	svc := New(t.TempDir())
	dir, err := svc.Backup(context.Background(), Request{DocCollection: "docs", DocBulk: b, IncludeEmbeddings: true})
	require.NoError(t, err)

	for _, f := range []string{"documents.json", "metadata.json", "manifest.json"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected %s to exist", f)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "documents.json"))
	require.NoError(t, err)
	var entries []DocumentEntry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEmpty(t, e.Meta["doc_id"], "meta must be the metadata record itself")
		assert.NotContains(t, e.Meta, "meta", "meta must not nest the raw payload")
		assert.NotContains(t, e.Meta, "content", "content belongs on the entry, not in meta")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	store := vectorstore.NewMemory()
	seedStore(t, store, "docs")
	b := bulk.New(store, "docs", nil, nil)

	svc := New(t.TempDir())
	dir, err := svc.Backup(context.Background(), Request{DocCollection: "docs", DocBulk: b, IncludeEmbeddings: true})
	require.NoError(t, err)

	target := vectorstore.NewMemory()
	targetBulk := bulk.New(target, "docs", nil, nil)
	require.NoError(t, svc.Restore(context.Background(), RestoreRequest{Dir: dir, DocBulk: targetBulk}))

	got, err := target.Retrieve(context.Background(), "docs", []string{"p1", "p2"}, true)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRestoreAbortsOnChecksumMismatch(t *testing.T) {
	store := vectorstore.NewMemory()
	seedStore(t, store, "docs")
	b := bulk.New(store, "docs", nil, nil)

	svc := New(t.TempDir())
	dir, err := svc.Backup(context.Background(), Request{DocCollection: "docs", DocBulk: b, IncludeEmbeddings: true})
	require.NoError(t, err)

	docsPath := filepath.Join(dir, "documents.json")
	raw, err := os.ReadFile(docsPath)
	require.NoError(t, err)
	raw = append(raw, ' ')
	require.NoError(t, os.WriteFile(docsPath, raw, 0o644))

	target := vectorstore.NewMemory()
	targetBulk := bulk.New(target, "docs", nil, nil)
	err = svc.Restore(context.Background(), RestoreRequest{Dir: dir, DocBulk: targetBulk})
	require.Error(t, err, "expected BackupCorrupted error on tampered documents.json")

	got, _ := target.Retrieve(context.Background(), "docs", []string{"p1", "p2"}, true)
	assert.Empty(t, got, "expected no writes to the target store")
}
