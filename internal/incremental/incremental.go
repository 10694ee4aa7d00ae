// Package incremental implements chunk-diff-driven re-indexing: given
// a new content revision for an existing document, only the chunks
// that actually changed are re-embedded. Unchanged entries route
// straight past the embedder, so a revision touching k of N chunks
// costs exactly |changed|+|new| embedding calls.
package incremental

import (
	"context"

	"github.com/haystack-mcp/ragpipe/internal/chunker"
	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/metadata"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/query"
	"github.com/haystack-mcp/ragpipe/internal/update"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

// Options configures one incremental update call.
type Options struct {
	Category metadata.Category
	Source   metadata.Source
	FilePath string
	Repo     string
	Tags     []string
	Chunk    chunker.Options
}

// Counts tallies chunk outcomes by category, mirroring chunker.Counts.
type Counts = chunker.Counts

// Report is the updater's return value: per-category counts and the
// chunk IDs touched (written or deprecated); unchanged chunks are not
// listed.
type Report struct {
	Counts      Counts
	TouchedIDs  []string
	ChunkErrors []error
}

// Updater runs incremental chunk updates against a single collection.
type Updater struct {
	store      vectorstore.Adapter
	collection string
	embed      embedder.Embedder
	query      *query.Service
	update     *update.Service
	pctx       *pipeline.Context
}

// New builds an Updater over collection.
func New(store vectorstore.Adapter, collection string, embed embedder.Embedder, pctx *pipeline.Context) *Updater {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	return &Updater{
		store: store, collection: collection, embed: embed,
		query: query.New(store, collection, embed, pctx), update: update.New(store, collection, pctx), pctx: pctx,
	}
}

// Update reconciles docID's stored chunk set against newContent:
// retrieve current chunks, re-chunk, diff, then write/deprecate per
// entry.
func (u *Updater) Update(ctx context.Context, docID, newContent string, opt Options) (Report, error) {
	// Step 1: retrieve all current active chunks of the parent.
	current, err := u.query.LookupByParentDocID(ctx, docID)
	if err != nil {
		return Report{}, err
	}
	old := make([]chunker.Chunk, 0, len(current))
	byIndex := make(map[int]vectorstore.Point, len(current))
	for _, p := range current {
		idx := chunkIndexOf(p)
		hash, _ := p.Value("meta.content_hash")
		h, _ := hash.(string)
		old = append(old, chunker.Chunk{ParentDocID: docID, ChunkIndex: idx, ContentHash: h})
		byIndex[idx] = p
	}

	// Step 2: chunk the new content.
	newChunks, err := chunker.Split(docID, newContent, opt.Chunk)
	if err != nil {
		return Report{}, err
	}

	// Step 3: diff.
	entries := chunker.Diff(old, newChunks)
	report := Report{Counts: chunker.CountDiff(entries)}

	newByIndex := make(map[int]chunker.Chunk, len(newChunks))
	for _, c := range newChunks {
		newByIndex[c.ChunkIndex] = c
	}

	for _, e := range entries {
		switch e.Status {
		case chunker.Unchanged:
			// Step 4: do nothing.
			continue

		case chunker.Changed:
			// Step 5: deprecate the old chunk record preserving its
			// content_hash, then build/embed/write the new one.
			if old, ok := byIndex[e.ChunkIndex]; ok {
				if _, derr := u.update.UpdateMetadata(ctx, old.ID, map[string]any{"status": "deprecated"}); derr != nil {
					report.ChunkErrors = append(report.ChunkErrors, derr)
					continue
				}
			}
			c := newByIndex[e.ChunkIndex]
			id, werr := u.writeChunk(ctx, c, opt)
			if werr != nil {
				report.ChunkErrors = append(report.ChunkErrors, werr)
				continue
			}
			report.TouchedIDs = append(report.TouchedIDs, id)

		case chunker.New:
			c := newByIndex[e.ChunkIndex]
			id, werr := u.writeChunk(ctx, c, opt)
			if werr != nil {
				report.ChunkErrors = append(report.ChunkErrors, werr)
				continue
			}
			report.TouchedIDs = append(report.TouchedIDs, id)

		case chunker.Deleted:
			// Step 7: deprecate.
			if old, ok := byIndex[e.ChunkIndex]; ok {
				if _, derr := u.update.Deprecate(ctx, old.ID); derr != nil {
					report.ChunkErrors = append(report.ChunkErrors, derr)
					continue
				}
				report.TouchedIDs = append(report.TouchedIDs, old.ID)
			}
		}
	}

	u.pctx.Log.Info("chunk update", map[string]any{
		"doc_id": docID, "collection": u.collection,
		"unchanged": report.Counts.Unchanged, "changed": report.Counts.Changed,
		"new": report.Counts.New, "deleted": report.Counts.Deleted,
		"errors": len(report.ChunkErrors),
	})
	return report, nil
}

func (u *Updater) writeChunk(ctx context.Context, c chunker.Chunk, opt Options) (string, error) {
	category := opt.Category
	if category == "" {
		category = metadata.CategoryOther
	}
	builder := metadata.Builder{}
	m, err := builder.Build(metadata.Input{
		DocID: c.ChunkID, Category: category, HashContent: c.ContentHash,
		Source: opt.Source, FilePath: opt.FilePath, Repo: opt.Repo, Tags: opt.Tags,
		IsChunk: true, ChunkID: c.ChunkID, ChunkIndex: c.ChunkIndex,
		ParentDocID: c.ParentDocID, TotalChunks: c.TotalChunks,
	})
	if err != nil {
		return "", err
	}

	vecs, err := u.embed.EmbedBatch(ctx, []string{c.Text})
	if err != nil {
		return "", pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
	}
	if len(vecs) == 0 {
		return "", pipeline.New(pipeline.ErrEmbedderFailed, "embedder returned no vector for chunk %q", c.ChunkID)
	}

	f := m.Fields()
	f["doc_id"] = m.DocID
	f["version"] = m.Version
	f["status"] = string(m.Status)
	f["metadata_hash"] = m.MetadataHash
	f["created_at"] = m.CreatedAt
	f["updated_at"] = m.UpdatedAt

	point := vectorstore.Point{ID: c.ChunkID, Vector: vecs[0], Payload: map[string]any{
		"content": c.Text,
		"meta":    f,
	}}
	if err := u.store.Upsert(ctx, u.collection, []vectorstore.Point{point}); err != nil {
		return "", err
	}
	return c.ChunkID, nil
}

func chunkIndexOf(p vectorstore.Point) int {
	v, ok := p.Value("meta.chunk_index")
	if !ok {
		return -1
	}
	switch x := v.(type) {
	case int:
		return x
	case float64:
		return int(x)
	}
	return -1
}
