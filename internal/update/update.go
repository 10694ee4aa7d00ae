// Package update implements the point-level update operations:
// update content, update metadata, deprecate, and version history.
//
// Stored points carry their metadata either nested under "meta" or
// flat at the payload's top level. PayloadShape is read once per point
// with DetectShape and the same value is used for every subsequent
// Get/Set on that point, instead of re-sniffing the shape (or
// normalizing it away) on every field access; writes preserve whatever
// shape the store returned.
package update

import (
	"context"
	"sort"

	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
	"github.com/haystack-mcp/ragpipe/internal/fingerprint"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

// PayloadShape distinguishes the two payload layouts found in stored
// points: metadata nested under a "meta" key, or flattened directly
// into the payload.
type PayloadShape int

const (
	ShapeFlat PayloadShape = iota
	ShapeNested
)

// DetectShape inspects payload once and reports which shape it uses.
func DetectShape(payload map[string]any) PayloadShape {
	if _, ok := payload["meta"].(map[string]any); ok {
		return ShapeNested
	}
	return ShapeFlat
}

// fields returns the mutable metadata map within payload, creating a
// nested "meta" map in payload if the shape is nested and absent.
func (s PayloadShape) fields(payload map[string]any) map[string]any {
	if s == ShapeFlat {
		return payload
	}
	meta, ok := payload["meta"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		payload["meta"] = meta
	}
	return meta
}

// Get reads key from payload according to shape.
func (s PayloadShape) Get(payload map[string]any, key string) (any, bool) {
	v, ok := s.fields(payload)[key]
	return v, ok
}

// Set writes key=value into payload according to shape, mutating
// payload in place.
func (s PayloadShape) Set(payload map[string]any, key string, value any) {
	s.fields(payload)[key] = value
}

// Metadata returns just the metadata record within payload: the nested
// "meta" map for a nested payload, or a copy of the payload minus the
// top-level content string for a flat one. Backup export uses this to
// serialize {id, content, meta} entries without dragging the whole raw
// payload along as "meta".
func (s PayloadShape) Metadata(payload map[string]any) map[string]any {
	if s == ShapeNested {
		m, _ := payload["meta"].(map[string]any)
		return m
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "content" {
			continue
		}
		out[k] = v
	}
	return out
}

// recomputeMetadataHash rebuilds metadata_hash from payload's current
// fields, first stripping any stale metadata_hash key already there.
// Without this, the hash is computed over a field set that includes
// its own prior value, so it can never match a hash freshly rebuilt
// from scratch (metadata.Metadata.Fields omits metadata_hash
// entirely) and re-fingerprinting a stored record would stop
// reproducing its stored metadata_hash.
func recomputeMetadataHash(shape PayloadShape, payload map[string]any) string {
	fields := shape.fields(payload)
	delete(fields, "metadata_hash")
	return fingerprint.MetadataHash(fields)
}

// Service runs point-level updates against a single collection.
type Service struct {
	store      vectorstore.Adapter
	collection string
	pctx       *pipeline.Context
}

func (s *Service) nowISO() string {
	return s.pctx.Clock.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
}

// New builds an update Service over collection.
func New(store vectorstore.Adapter, collection string, pctx *pipeline.Context) *Service {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	return &Service{store: store, collection: collection, pctx: pctx}
}

// UpdateContent retrieves the point at pointID (which must carry both
// a vector and a payload), recomputes its content hash, applies patch,
// rebuilds metadata_hash, re-embeds newContent, and upserts in place
// with the same point ID.
func (s *Service) UpdateContent(ctx context.Context, pointID, newContent string, embed embedder.Embedder, patch map[string]any) (vectorstore.Point, error) {
	points, err := s.store.Retrieve(ctx, s.collection, []string{pointID}, true)
	if err != nil {
		return vectorstore.Point{}, err
	}
	if len(points) == 0 {
		return vectorstore.Point{}, pipeline.New(pipeline.ErrNotFound, "no point with id %q", pointID)
	}
	p := points[0]
	if len(p.Vector) == 0 {
		return vectorstore.Point{}, pipeline.New(pipeline.ErrVectorMissing, "point %q has no vector to preserve", pointID)
	}

	shape := DetectShape(p.Payload)
	for k, v := range patch {
		shape.Set(p.Payload, k, v)
	}
	shape.Set(p.Payload, "content_hash", fingerprint.ContentHash(newContent))
	shape.Set(p.Payload, "hash_content", fingerprint.ContentHash(newContent))
	shape.Set(p.Payload, "updated_at", s.nowISO())
	shape.Set(p.Payload, "metadata_hash", recomputeMetadataHash(shape, p.Payload))
	// content lives at the top level of the payload regardless of
	// shape; only the metadata fields nest under "meta".
	p.Payload["content"] = newContent

	vecs, err := embed.EmbedBatch(ctx, []string{newContent})
	if err != nil {
		return vectorstore.Point{}, pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
	}
	if len(vecs) == 0 {
		return vectorstore.Point{}, pipeline.New(pipeline.ErrEmbedderFailed, "embedder returned no vector")
	}
	p.Vector = vecs[0]

	if err := s.store.Upsert(ctx, s.collection, []vectorstore.Point{p}); err != nil {
		return vectorstore.Point{}, err
	}
	s.pctx.Log.Debug("content updated", map[string]any{"collection": s.collection, "point_id": pointID})
	return p, nil
}

// UpdateMetadata retrieves the point at pointID, applies patch, and
// upserts preserving the existing vector. It fails with VectorMissing
// rather than silently writing a zero vector when the store returned
// no vector.
func (s *Service) UpdateMetadata(ctx context.Context, pointID string, patch map[string]any) (vectorstore.Point, error) {
	points, err := s.store.Retrieve(ctx, s.collection, []string{pointID}, true)
	if err != nil {
		return vectorstore.Point{}, err
	}
	if len(points) == 0 {
		return vectorstore.Point{}, pipeline.New(pipeline.ErrNotFound, "no point with id %q", pointID)
	}
	p := points[0]
	if len(p.Vector) == 0 {
		return vectorstore.Point{}, pipeline.New(pipeline.ErrVectorMissing, "point %q has no vector to preserve", pointID)
	}

	shape := DetectShape(p.Payload)
	for k, v := range patch {
		shape.Set(p.Payload, k, v)
	}
	shape.Set(p.Payload, "updated_at", s.nowISO())
	shape.Set(p.Payload, "metadata_hash", recomputeMetadataHash(shape, p.Payload))

	if err := s.store.SetPayload(ctx, s.collection, pointID, p.Payload); err != nil {
		return vectorstore.Point{}, err
	}
	return p, nil
}

// Deprecate marks a point's status as deprecated.
func (s *Service) Deprecate(ctx context.Context, pointID string) (vectorstore.Point, error) {
	return s.UpdateMetadata(ctx, pointID, map[string]any{"status": "deprecated"})
}

// GetVersionHistory returns every point matching doc_id (optionally
// filtered by category), sorted lexicographically by (version,
// created_at). includeDeprecated=false restricts to active status.
func (s *Service) GetVersionHistory(ctx context.Context, docID, category string, includeDeprecated bool) ([]vectorstore.Point, error) {
	conds := []filterdsl.Node{filterdsl.EqNode("meta.doc_id", docID)}
	if category != "" {
		conds = append(conds, filterdsl.EqNode("meta.category", category))
	}
	if !includeDeprecated {
		conds = append(conds, filterdsl.EqNode("meta.status", "active"))
	}
	native, err := filterdsl.Translate(filterdsl.And(conds...))
	if err != nil {
		return nil, err
	}
	nf := vectorstore.NativeFilter{Must: toConditions(native.Must), MustNot: toConditions(native.MustNot), Should: toConditions(native.Should)}

	var out []vectorstore.Point
	err = vectorstore.AllPages(ctx, s.store, vectorstore.ScrollRequest{
		Collection: s.collection, Filter: &nf, Limit: 100, WithPayload: true,
	}, func(page vectorstore.ScrollPage) error {
		out = append(out, page.Points...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		vi, _ := out[i].Value("meta.version")
		vj, _ := out[j].Value("meta.version")
		si, _ := vi.(string)
		sj, _ := vj.(string)
		if si != sj {
			return si < sj
		}
		ci, _ := out[i].Value("meta.created_at")
		cj, _ := out[j].Value("meta.created_at")
		sci, _ := ci.(string)
		scj, _ := cj.(string)
		return sci < scj
	})
	return out, nil
}

func toConditions(cs []filterdsl.Condition) []vectorstore.NativeCondition {
	out := make([]vectorstore.NativeCondition, len(cs))
	for i, c := range cs {
		nc := vectorstore.NativeCondition{Field: c.Field, Kind: string(c.Kind), Match: c.Match, Any: c.Any}
		if c.Range != nil {
			nc.Range = &vectorstore.NativeRange{Gt: c.Range.Gt, Ge: c.Range.Ge, Lt: c.Range.Lt, Le: c.Range.Le}
		}
		out[i] = nc
	}
	return out
}
