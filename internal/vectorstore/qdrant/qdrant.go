// Package qdrant implements vectorstore.Adapter against a real Qdrant
// deployment over its gRPC API.
//
// Qdrant only accepts UUIDs or positive integers as point IDs, so a
// non-UUID doc/chunk ID is mapped through uuid.NewSHA1 and the
// original ID kept in the payload under PayloadIDField.
package qdrant

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

// PayloadIDField stores the caller-supplied ID when it had to be
// remapped to a deterministic UUID for Qdrant's point-ID requirement.
const PayloadIDField = "_original_id"

// RequiredIndexFields lists the payload fields every filtered lookup
// depends on; each needs a keyword index on the backing collection.
var RequiredIndexFields = []string{
	"meta.doc_id", "meta.category", "meta.status", "meta.repo",
	"meta.version", "meta.file_path", "meta.hash_content",
	"meta.content_hash", "meta.metadata_hash",
}

// Adapter wraps a *qdrant.Client as a vectorstore.Adapter.
type Adapter struct {
	client *qdrant.Client
}

// New parses dsn (e.g. "https://host:6334?api_key=...") and dials
// Qdrant's gRPC API.
func New(dsn, apiKey string) (*Adapter, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, pipeline.New(pipeline.ErrStoreUnavailable, "parse vector store DSN: %v", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, pipeline.New(pipeline.ErrStoreUnavailable, "invalid port in vector store DSN: %v", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	} else if k := parsed.Query().Get("api_key"); k != "" {
		cfg.APIKey = k
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, pipeline.New(pipeline.ErrStoreUnavailable, "create vector store client: %v", err)
	}
	return &Adapter{client: client}, nil
}

func (a *Adapter) Close() error { return a.client.Close() }

func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

func (a *Adapter) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	exists, err := a.client.CollectionExists(ctx, collection)
	if err != nil {
		return pipeline.Wrap(pipeline.ErrStoreUnavailable, err)
	}
	if exists {
		return nil
	}
	if vectorSize <= 0 {
		return pipeline.New(pipeline.ErrInvalidInput, "vector size must be > 0 to create collection %q", collection)
	}
	err = a.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return pipeline.New(pipeline.ErrStoreUnavailable, "create collection %q: %v", collection, err)
	}
	return nil
}

// EnsurePayloadIndexes creates a keyword index for each field not
// already indexed. A failed create is logged to stderr and not
// returned; operations that actually need the missing index surface
// IndexRequired from the store at call time.
func (a *Adapter) EnsurePayloadIndexes(ctx context.Context, collection string, fields []string) error {
	info, err := a.GetCollection(ctx, collection)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if info.PayloadSchema[f] != "" {
			continue
		}
		schemaType := qdrant.FieldType_FieldTypeKeyword
		if _, err := a.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      f,
			FieldType:      &schemaType,
		}); err != nil {
			log.Printf("warning: create payload index %q on collection %q: %v", f, collection, err)
		}
	}
	return nil
}

func (a *Adapter) GetCollection(ctx context.Context, collection string) (vectorstore.CollectionInfo, error) {
	info, err := a.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return vectorstore.CollectionInfo{}, pipeline.New(pipeline.ErrStoreUnavailable, "get collection %q: %v", collection, err)
	}
	schema := make(map[string]string)
	for field, fi := range info.GetPayloadSchema() {
		schema[field] = fi.GetDataType().String()
	}
	return vectorstore.CollectionInfo{
		Name:          collection,
		VectorSize:    int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()),
		PointCount:    int(info.GetPointsCount()),
		PayloadSchema: schema,
	}, nil
}

func (a *Adapter) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		id := pointID(p.ID)
		if id.GetUuid() != p.ID {
			payload[PayloadIDField] = p.ID
		}
		qpoints[i] = &qdrant.PointStruct{
			Id:      id,
			Vectors: qdrant.NewVectorsDense(p.Vector),
			Payload: qdrant.NewValueMap(payload),
		}
	}
	_, err := a.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: qpoints})
	if err != nil {
		return pipeline.New(pipeline.ErrStoreUnavailable, "upsert into %q: %v", collection, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, collection string, ids []string) error {
	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}
	_, err := a.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(pids...),
	})
	if err != nil {
		return pipeline.New(pipeline.ErrStoreUnavailable, "delete from %q: %v", collection, err)
	}
	return nil
}

func (a *Adapter) Retrieve(ctx context.Context, collection string, ids []string, withVectors bool) ([]vectorstore.Point, error) {
	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}
	resp, err := a.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pids,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVectors),
	})
	if err != nil {
		return nil, pipeline.New(pipeline.ErrStoreUnavailable, "retrieve from %q: %v", collection, err)
	}
	return toPoints(resp, withVectors), nil
}

// SetPayload replaces the point's payload in place. A store without a
// native set_payload RPC answers Unimplemented; the payload is then
// replayed as retrieve+upsert, failing with VectorMissing when the
// store declines to return the vector that upsert would have to carry.
func (a *Adapter) SetPayload(ctx context.Context, collection string, id string, payload map[string]any) error {
	_, err := a.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Payload:        qdrant.NewValueMap(payload),
		PointsSelector: qdrant.NewPointsSelector(pointID(id)),
	})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.Unimplemented {
		return pipeline.New(pipeline.ErrStoreUnavailable, "set_payload on %q: %v", collection, err)
	}

	points, rerr := a.Retrieve(ctx, collection, []string{id}, true)
	if rerr != nil {
		return rerr
	}
	if len(points) == 0 {
		return pipeline.New(pipeline.ErrNotFound, "point %q not found in %q", id, collection)
	}
	p := points[0]
	if len(p.Vector) == 0 {
		return pipeline.New(pipeline.ErrVectorMissing, "point %q has no vector to preserve across the set_payload fallback", id)
	}
	p.Payload = payload
	return a.Upsert(ctx, collection, []vectorstore.Point{p})
}

func (a *Adapter) Scroll(ctx context.Context, req vectorstore.ScrollRequest) (vectorstore.ScrollPage, error) {
	limit := uint32(req.Limit)
	if limit == 0 {
		limit = 100
	}
	sreq := &qdrant.ScrollPoints{
		CollectionName: req.Collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(req.WithPayload),
		WithVectors:    qdrant.NewWithVectors(req.WithVectors),
		Filter:         toQdrantFilter(req.Filter),
	}
	if req.Offset != nil {
		sreq.Offset = pointID(*req.Offset)
	}
	resp, err := a.client.Scroll(ctx, sreq)
	if err != nil {
		return vectorstore.ScrollPage{}, pipeline.New(pipeline.ErrStoreUnavailable, "scroll %q: %v", req.Collection, err)
	}
	points := make([]vectorstore.Point, len(resp))
	for i, r := range resp {
		points[i] = retrievedToPoint(r, req.WithVectors)
	}
	var next *string
	if len(points) == int(limit) && len(points) > 0 {
		id := points[len(points)-1].ID
		next = &id
	}
	return vectorstore.ScrollPage{Points: points, NextOffset: next}, nil
}

func (a *Adapter) Search(ctx context.Context, collection string, vector []float32, topK int, filter *vectorstore.NativeFilter) ([]vectorstore.ScoredPoint, error) {
	if topK <= 0 {
		topK = 10
	}
	limit := uint64(topK)
	resp, err := a.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          &limit,
		Filter:         toQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, pipeline.New(pipeline.ErrStoreUnavailable, "search %q: %v", collection, err)
	}
	out := make([]vectorstore.ScoredPoint, len(resp))
	for i, hit := range resp {
		out[i] = vectorstore.ScoredPoint{
			Point: vectorstore.Point{ID: originalID(hit.Id, hit.Payload), Payload: valueMapToAny(hit.Payload)},
			Score: float64(hit.Score),
		}
	}
	return out, nil
}

func toQdrantFilter(f *vectorstore.NativeFilter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	qf := &qdrant.Filter{}
	for _, c := range f.Must {
		qf.Must = append(qf.Must, toQdrantCondition(c))
	}
	for _, c := range f.MustNot {
		qf.MustNot = append(qf.MustNot, toQdrantCondition(c))
	}
	for _, c := range f.Should {
		qf.Should = append(qf.Should, toQdrantCondition(c))
	}
	return qf
}

func toQdrantCondition(c vectorstore.NativeCondition) *qdrant.Condition {
	switch c.Kind {
	case "match_any":
		strs := make([]string, 0, len(c.Any))
		for _, v := range c.Any {
			strs = append(strs, fmt.Sprintf("%v", v))
		}
		return qdrant.NewMatchKeywords(c.Field, strs...)
	case "range":
		r := &qdrant.Range{}
		if c.Range != nil {
			r.Gt = c.Range.Gt
			r.Gte = c.Range.Ge
			r.Lt = c.Range.Lt
			r.Lte = c.Range.Le
		}
		return qdrant.NewRange(c.Field, r)
	default:
		return qdrant.NewMatch(c.Field, fmt.Sprintf("%v", c.Match))
	}
}

func toPoints(resp []*qdrant.RetrievedPoint, withVectors bool) []vectorstore.Point {
	out := make([]vectorstore.Point, len(resp))
	for i, r := range resp {
		out[i] = vectorstore.Point{
			ID:      originalID(r.Id, r.Payload),
			Payload: valueMapToAny(r.Payload),
		}
		if withVectors {
			out[i].Vector = r.GetVectors().GetVector().GetData()
		}
	}
	return out
}

func retrievedToPoint(r *qdrant.RetrievedPoint, withVectors bool) vectorstore.Point {
	p := vectorstore.Point{ID: originalID(r.Id, r.Payload), Payload: valueMapToAny(r.Payload)}
	if withVectors {
		p.Vector = r.GetVectors().GetVector().GetData()
	}
	return p
}

func originalID(id *qdrant.PointId, payload map[string]*qdrant.Value) string {
	if payload != nil {
		if v, ok := payload[PayloadIDField]; ok {
			return v.GetStringValue()
		}
	}
	if id == nil {
		return ""
	}
	if s := id.GetUuid(); s != "" {
		return s
	}
	return strings.TrimSpace(id.String())
}

func valueMapToAny(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch {
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetStructValue() != nil:
		m := make(map[string]any, len(v.GetStructValue().GetFields()))
		for k, fv := range v.GetStructValue().GetFields() {
			m[k] = valueToAny(fv)
		}
		return m
	case v.GetListValue() != nil:
		list := v.GetListValue().GetValues()
		out := make([]any, len(list))
		for i, lv := range list {
			out[i] = valueToAny(lv)
		}
		return out
	case v.GetBoolValue():
		return true
	default:
		return v.GetDoubleValue()
	}
}
