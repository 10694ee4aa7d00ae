// Package query implements the lookup and search operations that sit
// between the vector-store adapter and everything that needs to find
// existing records: the duplicate detector, the ingestion engine, the
// updater, and bulk operations.
package query

import (
	"context"
	"fmt"

	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

const defaultTopK = 10

// Service answers lookups and similarity searches against a single
// collection.
type Service struct {
	store      vectorstore.Adapter
	collection string
	embed      embedder.Embedder
	pctx       *pipeline.Context
}

// New builds a query Service over collection, using embed to vectorize
// query text for SearchWithFilters.
func New(store vectorstore.Adapter, collection string, embed embedder.Embedder, pctx *pipeline.Context) *Service {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	return &Service{store: store, collection: collection, embed: embed, pctx: pctx}
}

const statusActive = "active"

// LookupByDocID returns every point matching doc_id (and category,
// status if given); status defaults to "active".
func (s *Service) LookupByDocID(ctx context.Context, docID string, category, status string) ([]vectorstore.Point, error) {
	if status == "" {
		status = statusActive
	}
	conds := []filterdsl.Node{filterdsl.EqNode("meta.doc_id", docID), filterdsl.EqNode("meta.status", status)}
	if category != "" {
		conds = append(conds, filterdsl.EqNode("meta.category", category))
	}
	return s.scrollAll(ctx, filterdsl.And(conds...))
}

// LookupByContentHash tries hash_content first, falling back to the
// legacy content_hash field name.
func (s *Service) LookupByContentHash(ctx context.Context, hash string, status string) ([]vectorstore.Point, error) {
	if status == "" {
		status = statusActive
	}
	points, err := s.scrollAll(ctx, filterdsl.And(
		filterdsl.EqNode("meta.hash_content", hash),
		filterdsl.EqNode("meta.status", status),
	))
	if err != nil {
		return nil, err
	}
	if len(points) > 0 {
		return points, nil
	}
	return s.scrollAll(ctx, filterdsl.And(
		filterdsl.EqNode("meta.content_hash", hash),
		filterdsl.EqNode("meta.status", status),
	))
}

// LookupByFilePath returns every point matching file_path and status.
func (s *Service) LookupByFilePath(ctx context.Context, path string, status string) ([]vectorstore.Point, error) {
	if status == "" {
		status = statusActive
	}
	return s.scrollAll(ctx, filterdsl.And(
		filterdsl.EqNode("meta.file_path", path),
		filterdsl.EqNode("meta.status", status),
	))
}

// LookupByParentDocID returns every active chunk whose parent_doc_id
// matches docID, used by the incremental updater to retrieve a
// document's current chunk set.
func (s *Service) LookupByParentDocID(ctx context.Context, docID string) ([]vectorstore.Point, error) {
	return s.scrollAll(ctx, filterdsl.And(
		filterdsl.EqNode("meta.parent_doc_id", docID),
		filterdsl.EqNode("meta.status", statusActive),
	))
}

// All drains every point in the collection, unfiltered. Used by
// administrative sweeps (the auditor) that need to reconcile the
// whole collection rather than a targeted lookup.
func (s *Service) All(ctx context.Context) ([]vectorstore.Point, error) {
	var out []vectorstore.Point
	err := vectorstore.AllPages(ctx, s.store, vectorstore.ScrollRequest{
		Collection: s.collection, Limit: 100, WithPayload: true,
	}, func(page vectorstore.ScrollPage) error {
		out = append(out, page.Points...)
		return nil
	})
	return out, err
}

// Result pairs a point with its similarity score.
type Result struct {
	Point vectorstore.Point
	Score float64
}

// SearchWithFilters embeds queryText and asks the store for the top_k
// nearest points under filter (nil means no filter). Default top_k is
// 10.
func (s *Service) SearchWithFilters(ctx context.Context, queryText string, filter *filterdsl.Node, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	vecs, err := s.embed.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
	}
	if len(vecs) == 0 {
		return nil, pipeline.New(pipeline.ErrEmbedderFailed, "embedder returned no vectors for query")
	}

	var native *vectorstore.NativeFilter
	if filter != nil {
		n, err := filterdsl.Translate(*filter)
		if err != nil {
			return nil, err
		}
		nf := toNativeFilter(n)
		native = &nf
	}

	hits, err := s.store.Search(ctx, s.collection, vecs[0], topK, native)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{Point: h.Point, Score: h.Score}
	}
	s.pctx.Log.Debug("search", map[string]any{"collection": s.collection, "top_k": topK, "results": len(out)})
	return out, nil
}

// Aggregate scrolls matching points and counts occurrences of each
// value for each field in groupBy (defaults to category/status/
// source). O(N) by design; for administrative use only.
type Aggregation struct {
	Total       int
	Histograms  map[string]map[string]int
	UniqueCount map[string]int
}

func (s *Service) Aggregate(ctx context.Context, filter *filterdsl.Node, groupBy []string) (Aggregation, error) {
	if len(groupBy) == 0 {
		groupBy = []string{"category", "status", "source"}
	}

	var native *vectorstore.NativeFilter
	if filter != nil {
		n, err := filterdsl.Translate(*filter)
		if err != nil {
			return Aggregation{}, err
		}
		nf := toNativeFilter(n)
		native = &nf
	}

	agg := Aggregation{Histograms: make(map[string]map[string]int), UniqueCount: make(map[string]int)}
	for _, f := range groupBy {
		agg.Histograms[f] = make(map[string]int)
	}

	err := vectorstore.AllPages(ctx, s.store, vectorstore.ScrollRequest{
		Collection: s.collection, Filter: native, Limit: 100, WithPayload: true,
	}, func(page vectorstore.ScrollPage) error {
		for _, p := range page.Points {
			agg.Total++
			for _, f := range groupBy {
				v, ok := p.Value("meta." + f)
				if !ok {
					continue
				}
				key := toKey(v)
				agg.Histograms[f][key]++
			}
		}
		return nil
	})
	if err != nil {
		return Aggregation{}, err
	}
	for f, hist := range agg.Histograms {
		agg.UniqueCount[f] = len(hist)
	}
	return agg, nil
}

func (s *Service) scrollAll(ctx context.Context, filter filterdsl.Node) ([]vectorstore.Point, error) {
	native, err := filterdsl.Translate(filter)
	if err != nil {
		return nil, err
	}
	nf := toNativeFilter(native)

	var out []vectorstore.Point
	err = vectorstore.AllPages(ctx, s.store, vectorstore.ScrollRequest{
		Collection: s.collection, Filter: &nf, Limit: 100, WithPayload: true,
	}, func(page vectorstore.ScrollPage) error {
		out = append(out, page.Points...)
		return nil
	})
	return out, err
}

func toNativeFilter(n filterdsl.Native) vectorstore.NativeFilter {
	return vectorstore.NativeFilter{
		Must:    toConditions(n.Must),
		MustNot: toConditions(n.MustNot),
		Should:  toConditions(n.Should),
	}
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

func toKey(v any) string {
	switch x := v.(type) {
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
