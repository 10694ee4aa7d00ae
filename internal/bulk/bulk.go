// Package bulk implements the collection-wide maintenance operations:
// delete-by-filter, metadata patch-by-filter, export, and import, all
// built on vectorstore.Adapter.Scroll as the sole iteration primitive.
// No convenience delete-by-filter RPC is assumed to exist on the
// store.
package bulk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/query"
	"github.com/haystack-mcp/ragpipe/internal/update"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

const pageSize = 100

// Service runs bulk operations against a single collection.
type Service struct {
	store      vectorstore.Adapter
	collection string
	query      *query.Service
	updater    *update.Service
	pctx       *pipeline.Context
}

// New builds a bulk Service over collection. embed is used only to
// resolve query.Service lookups for ImportRecords (it is never used to
// vectorize record content for writing; Import's own embed argument
// does that).
func New(store vectorstore.Adapter, collection string, embed embedder.Embedder, pctx *pipeline.Context) *Service {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	return &Service{
		store: store, collection: collection,
		query: query.New(store, collection, embed, pctx), updater: update.New(store, collection, pctx), pctx: pctx,
	}
}

// DeleteByFilter deletes every point matching filter and returns the
// count deleted.
func (s *Service) DeleteByFilter(ctx context.Context, filter filterdsl.Node) (int, error) {
	native, err := toNativeFilter(filter)
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = vectorstore.AllPages(ctx, s.store, vectorstore.ScrollRequest{
		Collection: s.collection, Filter: &native, Limit: pageSize, WithPayload: false,
	}, func(page vectorstore.ScrollPage) error {
		if len(page.Points) == 0 {
			return nil
		}
		ids := make([]string, len(page.Points))
		for i, p := range page.Points {
			ids[i] = p.ID
		}
		if err := s.store.Delete(ctx, s.collection, ids); err != nil {
			return err
		}
		deleted += len(ids)
		return nil
	})
	if err == nil {
		s.pctx.Log.Info("delete by filter", map[string]any{"collection": s.collection, "deleted": deleted})
	}
	return deleted, err
}

// UpdateMetadataByFilter applies patch to the metadata of every point
// matching filter, via the update service's UpdateMetadata (so
// existing vectors are always preserved and VectorMissing is surfaced
// rather than papered over). Per-point errors are collected; the call
// only fails outright when the initial scroll itself fails.
func (s *Service) UpdateMetadataByFilter(ctx context.Context, filter filterdsl.Node, patch map[string]any) (updated int, errs []error, err error) {
	native, terr := toNativeFilter(filter)
	if terr != nil {
		return 0, nil, terr
	}

	err = vectorstore.AllPages(ctx, s.store, vectorstore.ScrollRequest{
		Collection: s.collection, Filter: &native, Limit: pageSize, WithPayload: true,
	}, func(page vectorstore.ScrollPage) error {
		for _, p := range page.Points {
			if _, uerr := s.updater.UpdateMetadata(ctx, p.ID, patch); uerr != nil {
				errs = append(errs, uerr)
				continue
			}
			updated++
		}
		return nil
	})
	if err == nil {
		s.pctx.Log.Info("metadata patch by filter", map[string]any{
			"collection": s.collection, "updated": updated, "errors": len(errs),
		})
	}
	return updated, errs, err
}

// Export drains every point matching filter into memory, with
// vectors, for serialization by the caller (the backup subsystem's
// document export).
func (s *Service) Export(ctx context.Context, filter *filterdsl.Node) ([]vectorstore.Point, error) {
	var native *vectorstore.NativeFilter
	if filter != nil {
		n, err := toNativeFilter(*filter)
		if err != nil {
			return nil, err
		}
		native = &n
	}

	var out []vectorstore.Point
	err := vectorstore.AllPages(ctx, s.store, vectorstore.ScrollRequest{
		Collection: s.collection, Filter: native, Limit: pageSize, WithPayload: true, WithVectors: true,
	}, func(page vectorstore.ScrollPage) error {
		out = append(out, page.Points...)
		return nil
	})
	return out, err
}

// Import upserts points into the collection, re-embedding any point
// whose Text is set and Vector is empty. Re-embedding runs through an
// errgroup bounded to concurrency (1 by default, since this pipeline
// treats an Embedder as non-reentrant unless the caller explicitly
// widens it).
type ImportItem struct {
	Point vectorstore.Point
	Text  string // non-empty triggers re-embedding when Point.Vector is empty
}

func (s *Service) Import(ctx context.Context, items []ImportItem, embed embedder.Embedder, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	points := make([]vectorstore.Point, len(items))
	for i := range items {
		i := i
		points[i] = items[i].Point
		if len(items[i].Point.Vector) > 0 || items[i].Text == "" || embed == nil {
			continue
		}
		g.Go(func() error {
			vecs, err := embed.EmbedBatch(gctx, []string{items[i].Text})
			if err != nil {
				return pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
			}
			if len(vecs) == 0 {
				return pipeline.New(pipeline.ErrEmbedderFailed, "embedder returned no vector for import item %d", i)
			}
			points[i].Vector = vecs[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return s.store.Upsert(ctx, s.collection, points)
}

// DuplicatePolicy controls how ImportRecords handles a record whose
// doc_id (+ category) already matches an active point.
type DuplicatePolicy string

const (
	PolicySkip   DuplicatePolicy = "skip"
	PolicyUpdate DuplicatePolicy = "update"
	PolicyError  DuplicatePolicy = "error"
)

// ImportRecord is one caller-supplied logical document for
// ImportRecords. Unlike ImportItem (a verbatim point, used by backup
// restore to reproduce exactly what a prior export captured), a record
// is looked up by doc_id first so the duplicate policy can apply.
type ImportRecord struct {
	DocID    string
	Category string
	Content  string
	Meta     map[string]any
	Vector   []float32 // set when the caller already has an embedding; embedded otherwise
}

// ImportReport tallies ImportRecords' per-record outcome:
// (imported, skipped, updated, errors).
type ImportReport struct {
	Imported int
	Skipped  int
	Updated  int
	Errors   []error
}

// ImportRecords applies policy to each record against this collection:
// a doc_id (+category) match already present is skipped, updated in
// place (via the update service's UpdateContent, re-embedding and
// rewriting the existing point), or rejected as InvalidInput,
// depending on policy.
// Records with no existing match are written as new points, batched in
// groups of pageSize; embedding (when embed is non-nil) happens before
// each record is added to a batch.
func (s *Service) ImportRecords(ctx context.Context, records []ImportRecord, policy DuplicatePolicy, embed embedder.Embedder) (ImportReport, error) {
	var report ImportReport
	if policy == "" {
		policy = PolicySkip
	}
	if policy != PolicySkip && policy != PolicyUpdate && policy != PolicyError {
		return report, pipeline.New(pipeline.ErrInvalidInput, "unknown duplicate policy %q", policy)
	}

	var batch []vectorstore.Point
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.store.Upsert(ctx, s.collection, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, r := range records {
		existing, err := s.query.LookupByDocID(ctx, r.DocID, r.Category, "")
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}

		if len(existing) > 0 {
			switch policy {
			case PolicySkip:
				report.Skipped++
				continue
			case PolicyError:
				report.Errors = append(report.Errors, pipeline.New(pipeline.ErrInvalidInput, "doc_id %q already exists", r.DocID))
				continue
			case PolicyUpdate:
				if embed == nil {
					report.Errors = append(report.Errors, pipeline.New(pipeline.ErrInvalidInput, "duplicate policy %q requires an embedder for doc_id %q", policy, r.DocID))
					continue
				}
				if _, uerr := s.updater.UpdateContent(ctx, existing[0].ID, r.Content, embed, r.Meta); uerr != nil {
					report.Errors = append(report.Errors, uerr)
					continue
				}
				report.Updated++
				continue
			}
		}

		vec := r.Vector
		if len(vec) == 0 {
			if embed == nil {
				report.Errors = append(report.Errors, pipeline.New(pipeline.ErrInvalidInput, "record for doc_id %q has no vector and no embedder was given", r.DocID))
				continue
			}
			vecs, eerr := embed.EmbedBatch(ctx, []string{r.Content})
			if eerr != nil {
				report.Errors = append(report.Errors, pipeline.Wrap(pipeline.ErrEmbedderFailed, eerr))
				continue
			}
			if len(vecs) == 0 {
				report.Errors = append(report.Errors, pipeline.New(pipeline.ErrEmbedderFailed, "embedder returned no vector for doc_id %q", r.DocID))
				continue
			}
			vec = vecs[0]
		}

		meta := r.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		meta["doc_id"] = r.DocID
		if r.Category != "" {
			meta["category"] = r.Category
		}
		batch = append(batch, vectorstore.Point{
			ID: r.DocID, Vector: vec,
			Payload: map[string]any{"content": r.Content, "meta": meta},
		})
		report.Imported++
		if len(batch) >= pageSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}
	if err := flush(); err != nil {
		return report, err
	}
	return report, nil
}

func toNativeFilter(n filterdsl.Node) (vectorstore.NativeFilter, error) {
	native, err := filterdsl.Translate(n)
	if err != nil {
		return vectorstore.NativeFilter{}, err
	}
	return vectorstore.NativeFilter{
		Must:    toConditions(native.Must),
		MustNot: toConditions(native.MustNot),
		Should:  toConditions(native.Should),
	}, nil
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
