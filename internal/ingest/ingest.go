// Package ingest implements the end-to-end single-document ingestion
// contract: default/extract metadata, classify against existing
// records, embed, and write.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/haystack-mcp/ragpipe/internal/dedupe"
	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/fingerprint"
	"github.com/haystack-mcp/ragpipe/internal/metadata"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/query"
	"github.com/haystack-mcp/ragpipe/internal/update"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

// ContentType selects which embedding model and collection a document
// is routed to.
type ContentType string

const (
	ContentDoc  ContentType = "doc"
	ContentCode ContentType = "code"
)

// Input carries everything the caller supplies for a single ingest call.
type Input struct {
	DocID       string
	Content     string
	ContentType ContentType // defaults to ContentDoc
	Category    metadata.Category
	Source      metadata.Source
	Status      metadata.Status
	FilePath    string
	HashFile    string
	Repo        string
	Tags        []string
	Version     string
}

// Result is the envelope the engine returns on every non-error path.
type Result struct {
	Status   string
	Action   dedupe.Action
	Level    dedupe.Level
	PointID  string
	DocID    string
	Category string
	Version  string
	Reason   string
}

// Engine ties fingerprinting, metadata building, candidate lookup,
// duplicate classification, and the embedder/store together for a
// single document.
type Engine struct {
	VectorStore    vectorstore.Adapter
	DocCollection  string
	CodeCollection string
	DocEmbedder    embedder.Embedder
	CodeEmbedder   embedder.Embedder
	pctx           *pipeline.Context

	// Updater/CodeUpdater, when set, are used to deprecate the prior
	// record on an `update` decision after the new record is written,
	// routed by content type the same way collectionFor routes the
	// store write. Left nil, the engine only marks the decision; actual
	// deprecation is then the caller's update-service call.
	Updater     *update.Service
	CodeUpdater *update.Service

	// SemanticIndex, when set, backs a near-duplicate probe in
	// addition to the exact/update levels.
	SemanticIndex *dedupe.SemanticIndex

	Now func() time.Time
}

// New builds an Engine wired against store, routing ContentDoc to
// docCollection/docEmbedder and ContentCode to codeCollection/codeEmbedder.
func New(store vectorstore.Adapter, docCollection, codeCollection string, docEmbed, codeEmbed embedder.Embedder, pctx *pipeline.Context) *Engine {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	return &Engine{
		VectorStore: store, DocCollection: docCollection, CodeCollection: codeCollection,
		DocEmbedder: docEmbed, CodeEmbedder: codeEmbed, pctx: pctx,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return e.pctx.Clock.Now()
}

func (e *Engine) collectionFor(ct ContentType) (string, embedder.Embedder) {
	if ct == ContentCode {
		return e.CodeCollection, e.CodeEmbedder
	}
	return e.DocCollection, e.DocEmbedder
}

func (e *Engine) updaterFor(ct ContentType) *update.Service {
	if ct == ContentCode {
		return e.CodeUpdater
	}
	return e.Updater
}

// Store runs the full seven-step ingestion contract for in.
func (e *Engine) Store(ctx context.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.Content) == "" {
		return Result{}, pipeline.New(pipeline.ErrInvalidInput, "content is required")
	}
	if in.ContentType == "" {
		in.ContentType = ContentDoc
	}
	collection, embed := e.collectionFor(in.ContentType)
	if embed == nil {
		return Result{}, pipeline.New(pipeline.ErrInvalidInput, "no embedder configured for content type %q", in.ContentType)
	}

	// Step 1: extract/default metadata fields.
	docID := in.DocID
	if docID == "" {
		docID = defaultDocID(in.FilePath, in.Content)
	}
	category := in.Category
	if category == "" {
		category = metadata.CategoryOther
	}
	version := in.Version

	// Step 2: build metadata using a provisional content hash.
	provisionalHash := fingerprint.ContentHash(in.Content)
	builder := metadata.Builder{Now: e.now}
	m, err := builder.Build(metadata.Input{
		DocID: docID, Category: category, HashContent: provisionalHash,
		Source: in.Source, Status: in.Status, FilePath: in.FilePath,
		HashFile: in.HashFile, Repo: in.Repo, Tags: in.Tags, Version: version,
	})
	if err != nil {
		return Result{}, err
	}

	// Step 3: metadata_hash is already derived from the finalized
	// record by Builder.Build (keeps fingerprint semantics stable with
	// one computation rather than two).

	// Step 4: duplicate lookup by doc_id, then by content hash; merge.
	q := query.New(e.VectorStore, collection, embed, e.pctx)
	candidates, err := e.gatherCandidates(ctx, q, m)
	if err != nil {
		return Result{}, err
	}

	// Step 5: decide the duplicate action.
	var vec []float32
	if e.SemanticIndex != nil {
		vecs, err := embed.EmbedBatch(ctx, []string{in.Content})
		if err != nil {
			return Result{}, pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
		}
		if len(vecs) > 0 {
			vec = vecs[0]
		}
	}
	var decision dedupe.Decision
	if e.SemanticIndex != nil && vec != nil {
		decision = dedupe.ClassifyWithSimilarity(ctx, m.DocID, m.ContentHash, m.MetadataHash, candidates, vec, e.SemanticIndex)
	} else {
		decision = dedupe.Classify(m.DocID, m.ContentHash, m.MetadataHash, candidates)
	}

	e.pctx.Log.Info("ingest decision", map[string]any{
		"doc_id": m.DocID, "collection": collection,
		"action": string(decision.Action), "reason": decision.Reason,
	})
	if decision.Action == dedupe.ActionSkip {
		return Result{
			Status: "success", Action: decision.Action, Level: decision.Level,
			PointID: decision.ExistingID, DocID: m.DocID, Category: string(m.Category),
			Version: m.Version, Reason: decision.Reason,
		}, nil
	}
	if decision.Action == dedupe.ActionWarn {
		m.Warning = decision.Reason
	}

	// Step 6: embed with the appropriate model (reuse the level-3 probe
	// vector when we already computed one, to honor the embedder's
	// single-flight contract by calling it at most once per document).
	if vec == nil {
		vecs, err := embed.EmbedBatch(ctx, []string{in.Content})
		if err != nil {
			return Result{}, pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
		}
		if len(vecs) == 0 {
			return Result{}, pipeline.New(pipeline.ErrEmbedderFailed, "embedder returned no vector")
		}
		vec = vecs[0]
	}

	// Step 7: write to the appropriate collection. Embedding above is a
	// local side effect only; nothing has touched the store yet, so a
	// failure here leaves no partial write.
	//
	// An update decision targets a point that already occupies the
	// doc_id-keyed slot the new active record would otherwise reuse;
	// give the new version a distinct point ID so the old one can
	// survive alongside it as a deprecated version-history entry rather
	// than being silently overwritten in place.
	pointID := m.DocID
	if decision.Action == dedupe.ActionUpdate && decision.ExistingID == pointID {
		pointID = pointID + "@" + m.Version
	}
	point := vectorstore.Point{ID: pointID, Vector: vec, Payload: map[string]any{
		"content": in.Content,
		"meta":    metaPayload(m),
	}}
	if err := e.VectorStore.Upsert(ctx, collection, []vectorstore.Point{point}); err != nil {
		return Result{}, err
	}
	if e.SemanticIndex != nil {
		e.SemanticIndex.Observe(point.ID, vec)
	}
	if updater := e.updaterFor(in.ContentType); decision.Action == dedupe.ActionUpdate && updater != nil && decision.ExistingID != "" && decision.ExistingID != point.ID {
		if _, derr := updater.Deprecate(ctx, decision.ExistingID); derr != nil {
			return Result{}, derr
		}
	}

	return Result{
		Status: "success", Action: decision.Action, Level: decision.Level,
		PointID: point.ID, DocID: m.DocID, Category: string(m.Category),
		Version: m.Version, Reason: decision.Reason,
	}, nil
}

func (e *Engine) gatherCandidates(ctx context.Context, q *query.Service, m metadata.Metadata) ([]dedupe.Candidate, error) {
	seen := map[string]bool{}
	var out []dedupe.Candidate

	add := func(points []vectorstore.Point) {
		for _, p := range points {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, toCandidate(p))
		}
	}

	byDoc, err := q.LookupByDocID(ctx, m.DocID, "", "")
	if err != nil {
		return nil, err
	}
	add(byDoc)

	byHash, err := q.LookupByContentHash(ctx, m.ContentHash, "")
	if err != nil {
		return nil, err
	}
	add(byHash)

	return out, nil
}

func toCandidate(p vectorstore.Point) dedupe.Candidate {
	c := dedupe.Candidate{ID: p.ID}
	if v, ok := p.Value("meta.doc_id"); ok {
		c.DocID, _ = v.(string)
	}
	if v, ok := p.Value("meta.content_hash"); ok {
		c.ContentHash, _ = v.(string)
	} else if v, ok := p.Value("meta.hash_content"); ok {
		c.ContentHash, _ = v.(string)
	}
	if v, ok := p.Value("meta.metadata_hash"); ok {
		c.MetadataHash, _ = v.(string)
	}
	return c
}

func metaPayload(m metadata.Metadata) map[string]any {
	f := m.Fields()
	f["doc_id"] = m.DocID
	f["version"] = m.Version
	f["status"] = string(m.Status)
	f["metadata_hash"] = m.MetadataHash
	f["created_at"] = m.CreatedAt
	f["updated_at"] = m.UpdatedAt
	if m.Warning != "" {
		f["warning"] = m.Warning
	}
	return f
}

func defaultDocID(filePath, content string) string {
	if filePath != "" {
		return filePath
	}
	sum := sha256.Sum256([]byte(content))
	return "doc_" + hex.EncodeToString(sum[:])[:16]
}
