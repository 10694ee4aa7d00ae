// Package vectorstore defines the adapter surface every pipeline
// service (query, dedupe, ingest, incremental, update, bulk, audit)
// is built against, and hides the wire protocol of whatever store
// backs it.
package vectorstore

import "context"

// Point is a single record as stored by the adapter: an opaque id, a
// payload (the pipeline's metadata, nested under "meta" or flat), and
// an optional vector.
type Point struct {
	ID      string
	Payload map[string]any
	Vector  []float32
}

// Value returns payload[key] if present, handling both the nested
// "meta.x" shape and a flat "x" shape by trying the dotted path first.
func (p Point) Value(key string) (any, bool) {
	if v, ok := lookupDotted(p.Payload, key); ok {
		return v, true
	}
	// Fall back to the flat-shape field name (strip a leading "meta.").
	flat := key
	if len(key) > 5 && key[:5] == "meta." {
		flat = key[5:]
	}
	v, ok := p.Payload[flat]
	return v, ok
}

func lookupDotted(payload map[string]any, key string) (any, bool) {
	if len(key) <= 5 || key[:5] != "meta." {
		v, ok := payload[key]
		return v, ok
	}
	meta, ok := payload["meta"].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := meta[key[5:]]
	return v, ok
}

// CollectionInfo reports a collection's schema as seen by the store.
type CollectionInfo struct {
	Name          string
	VectorSize    int
	PointCount    int
	PayloadSchema map[string]string // field -> index schema type, e.g. "keyword"
}

// ScrollPage is one page of a scroll session: at most Limit points,
// plus an opaque cursor to continue from, nil once exhausted.
type ScrollPage struct {
	Points     []Point
	NextOffset *string
}

// ScrollRequest parameterizes one scroll page fetch.
type ScrollRequest struct {
	Collection  string
	Filter      *NativeFilter
	Limit       int
	Offset      *string
	WithPayload bool
	WithVectors bool
}

// NativeFilter mirrors filterdsl.Native's Must/MustNot/Should shape; it
// is declared here so this package does not import filterdsl. The
// services convert a filterdsl.Native into it; see
// internal/vectorstore/qdrant for the Qdrant translation.
type NativeFilter = struct {
	Must    []NativeCondition
	MustNot []NativeCondition
	Should  []NativeCondition
}

// NativeCondition mirrors filterdsl.Condition; duplicated here (rather
// than imported) so this package has no dependency on the filter DSL
// layered above it.
type NativeCondition struct {
	Field string
	Kind  string
	Match any
	Any   []any
	Range *NativeRange
}

type NativeRange struct {
	Gt, Ge, Lt, Le *float64
}

// Adapter is the full vector-store surface the pipeline depends on.
type Adapter interface {
	// EnsureCollection asserts the named collection exists with the
	// given vector size, creating it if absent.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// EnsurePayloadIndexes asserts a keyword index exists for each
	// field; missing indexes are created, existing ones left alone.
	// Failure to create an index is logged by the adapter, not fatal.
	EnsurePayloadIndexes(ctx context.Context, collection string, fields []string) error

	GetCollection(ctx context.Context, collection string) (CollectionInfo, error)

	Upsert(ctx context.Context, collection string, points []Point) error
	Delete(ctx context.Context, collection string, ids []string) error
	Retrieve(ctx context.Context, collection string, ids []string, withVectors bool) ([]Point, error)

	// SetPayload replaces a point's payload in place. Adapters that
	// can't do this natively fall back to retrieve+upsert;
	// VectorMissing signals the retrieved point had no vector to
	// preserve across that fallback.
	SetPayload(ctx context.Context, collection string, id string, payload map[string]any) error

	Scroll(ctx context.Context, req ScrollRequest) (ScrollPage, error)

	// Search returns the topK nearest points to vector under filter.
	Search(ctx context.Context, collection string, vector []float32, topK int, filter *NativeFilter) ([]ScoredPoint, error)
}

// ScoredPoint pairs a Point with its similarity score from a Search
// call.
type ScoredPoint struct {
	Point
	Score float64
}

// AllPages drains a scroll session to completion, invoking visit for
// every page in turn. Every bulk operation and the audit sweep is
// built on this primitive; scroll+mutate is the foundation for all
// collection-wide work.
func AllPages(ctx context.Context, a Adapter, req ScrollRequest, visit func(ScrollPage) error) error {
	for {
		page, err := a.Scroll(ctx, req)
		if err != nil {
			return err
		}
		if err := visit(page); err != nil {
			return err
		}
		if page.NextOffset == nil {
			return nil
		}
		req.Offset = page.NextOffset
	}
}
