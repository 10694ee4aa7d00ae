package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

// Memory is an in-process Adapter backed by a map, used throughout the
// package tests in place of a live store.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memCollection
}

type memCollection struct {
	vectorSize int
	points     map[string]Point
	indexed    map[string]bool
}

// NewMemory returns an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) coll(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{points: make(map[string]Point), indexed: make(map[string]bool)}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) EnsureCollection(_ context.Context, collection string, vectorSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if c.vectorSize == 0 {
		c.vectorSize = vectorSize
	}
	return nil
}

func (m *Memory) EnsurePayloadIndexes(_ context.Context, collection string, fields []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	for _, f := range fields {
		c.indexed[f] = true
	}
	return nil
}

func (m *Memory) GetCollection(_ context.Context, collection string) (CollectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	schema := make(map[string]string, len(c.indexed))
	for f := range c.indexed {
		schema[f] = "keyword"
	}
	return CollectionInfo{Name: collection, VectorSize: c.vectorSize, PointCount: len(c.points), PayloadSchema: schema}, nil
}

func (m *Memory) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	for _, p := range points {
		cp := p
		cp.Payload = cloneMap(p.Payload)
		c.points[p.ID] = cp
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

func (m *Memory) Retrieve(_ context.Context, collection string, ids []string, withVectors bool) ([]Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	out := make([]Point, 0, len(ids))
	for _, id := range ids {
		p, ok := c.points[id]
		if !ok {
			continue
		}
		if !withVectors {
			p.Vector = nil
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) SetPayload(_ context.Context, collection string, id string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	p, ok := c.points[id]
	if !ok {
		return pipeline.New(pipeline.ErrNotFound, "point %q not found in %q", id, collection)
	}
	p.Payload = cloneMap(payload)
	c.points[id] = p
	return nil
}

func (m *Memory) Scroll(_ context.Context, req ScrollRequest) (ScrollPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(req.Collection)

	var ids []string
	for id := range c.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matched []string
	for _, id := range ids {
		if req.Offset != nil && id <= *req.Offset {
			continue
		}
		if matchesFilter(c.points[id], req.Filter) {
			matched = append(matched, id)
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	end := limit
	if end > len(matched) {
		end = len(matched)
	}

	var page []Point
	for _, id := range matched[:end] {
		p := c.points[id]
		if !req.WithVectors {
			p.Vector = nil
		}
		if !req.WithPayload {
			p.Payload = nil
		}
		page = append(page, p)
	}

	var next *string
	if end < len(matched) {
		next = &page[end-1].ID
	}
	return ScrollPage{Points: page, NextOffset: next}, nil
}

func (m *Memory) Search(_ context.Context, collection string, vector []float32, topK int, filter *NativeFilter) ([]ScoredPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if topK <= 0 {
		topK = 10
	}

	var scored []ScoredPoint
	for _, p := range c.points {
		if !matchesFilter(p, filter) {
			continue
		}
		scored = append(scored, ScoredPoint{Point: p, Score: embedder.CosineSimilarity(vector, p.Vector)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func matchesFilter(p Point, f *NativeFilter) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !matchesCondition(p, c) {
			return false
		}
	}
	for _, c := range f.MustNot {
		if matchesCondition(p, c) {
			return false
		}
	}
	if len(f.Should) > 0 {
		any := false
		for _, c := range f.Should {
			if matchesCondition(p, c) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func matchesCondition(p Point, c NativeCondition) bool {
	v, ok := p.Value(c.Field)
	if !ok {
		return false
	}
	switch c.Kind {
	case "match":
		return v == c.Match
	case "match_any":
		for _, want := range c.Any {
			if v == want {
				return true
			}
		}
		return false
	case "range":
		f, ok := toFloat(v)
		if !ok || c.Range == nil {
			return false
		}
		if c.Range.Gt != nil && !(f > *c.Range.Gt) {
			return false
		}
		if c.Range.Ge != nil && !(f >= *c.Range.Ge) {
			return false
		}
		if c.Range.Lt != nil && !(f < *c.Range.Lt) {
			return false
		}
		if c.Range.Le != nil && !(f <= *c.Range.Le) {
			return false
		}
		return true
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}
