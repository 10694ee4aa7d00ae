// Package dedupe implements the four-level duplicate detector:
// classifying a prospective write against existing candidates, in
// priority order EXACT > UPDATE > SIMILAR > NEW.
//
// The SIMILAR level probes an hnsw graph over a bounded, LRU-evicted
// window of recently seen embeddings, not the whole collection; an
// exact scan of every stored vector would make each ingest O(N) in
// collection size.
package dedupe

import (
	"context"
	"sync"

	"github.com/coder/hnsw"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Level is the matched duplicate-detection tier.
type Level int

const (
	LevelNone Level = iota
	LevelExact
	LevelUpdate
	LevelSimilar
	LevelNew
)

// String returns the lowercase name of the level, as used in log output.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelExact:
		return "exact"
	case LevelUpdate:
		return "update"
	case LevelSimilar:
		return "similar"
	case LevelNew:
		return "new"
	default:
		return "unknown"
	}
}

// Action is the decision the detector emits for a given Level.
type Action string

const (
	ActionSkip   Action = "skip"
	ActionUpdate Action = "update"
	ActionWarn   Action = "warn"
	ActionStore  Action = "store"
)

// SimilarityThreshold is the fixed cosine threshold for the SIMILAR
// level.
const SimilarityThreshold = 0.85

// Decision is the detector's verdict for one prospective write.
type Decision struct {
	Level      Level
	Action     Action
	ExistingID string // set for Exact/Update/Similar when a match drove the decision
	Reason     string
}

// Candidate is one existing record considered during classification.
type Candidate struct {
	ID           string
	DocID        string
	ContentHash  string
	MetadataHash string
}

// Classify applies the four-level decision table to candidates found
// for a prospective write identified by (docID, contentHash,
// metadataHash). Levels are evaluated in order; the first match wins.
func Classify(docID, contentHash, metadataHash string, candidates []Candidate) Decision {
	for _, c := range candidates {
		if c.ContentHash == contentHash && c.MetadataHash == metadataHash {
			return Decision{Level: LevelExact, Action: ActionSkip, ExistingID: c.ID, Reason: "identical content and metadata hash"}
		}
	}
	for _, c := range candidates {
		sameIdentity := (docID != "" && c.DocID == docID) || c.MetadataHash == metadataHash
		if sameIdentity && c.ContentHash != contentHash {
			return Decision{Level: LevelUpdate, Action: ActionUpdate, ExistingID: c.ID, Reason: "same logical identity, different content"}
		}
	}
	return Decision{Level: LevelNew, Action: ActionStore, Reason: "no matching candidate"}
}

// ChunkCandidate is the chunk-level analog of Candidate: the same
// logic applies with chunk_id substituted for doc_id and
// (parent_doc_id, chunk_index) as a secondary key.
type ChunkCandidate struct {
	ID            string
	ChunkID       string
	ParentDocID   string
	ChunkIndex    int
	ContentHash   string
	MetadataHash  string
}

// ClassifyChunk is the chunk-level counterpart of Classify.
func ClassifyChunk(chunkID, parentDocID string, chunkIndex int, contentHash, metadataHash string, candidates []ChunkCandidate) Decision {
	for _, c := range candidates {
		if c.ContentHash == contentHash && c.MetadataHash == metadataHash {
			return Decision{Level: LevelExact, Action: ActionSkip, ExistingID: c.ID, Reason: "identical chunk content and metadata hash"}
		}
	}
	for _, c := range candidates {
		sameIdentity := (chunkID != "" && c.ChunkID == chunkID) ||
			(c.ParentDocID == parentDocID && c.ChunkIndex == chunkIndex) ||
			c.MetadataHash == metadataHash
		if sameIdentity && c.ContentHash != contentHash {
			return Decision{Level: LevelUpdate, Action: ActionUpdate, ExistingID: c.ID, Reason: "same chunk identity, different content"}
		}
	}
	return Decision{Level: LevelNew, Action: ActionStore, Reason: "no matching chunk candidate"}
}

// SemanticIndex backs level 3 (SIMILAR): an approximate nearest
// neighbor probe over a bounded window of recently seen embeddings.
// Not safe for use across goroutines without external synchronization
// beyond what's documented on each method.
type SemanticIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	cache   *lru.Cache[uint64, string] // internal key -> existing point ID
	nextKey uint64
}

// NewSemanticIndex builds an index holding at most capacity recent
// embeddings.
func NewSemanticIndex(capacity int) *SemanticIndex {
	if capacity <= 0 {
		capacity = 10000
	}
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	cache, _ := lru.New[uint64, string](capacity)
	return &SemanticIndex{graph: g, cache: cache}
}

// Observe records an existing point's embedding so future writes can
// be checked against it.
func (s *SemanticIndex) Observe(pointID string, vector []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.nextKey
	s.nextKey++
	s.graph.Add(hnsw.MakeNode(key, vector))
	if evictedKey, _, evicted := s.cache.PeekOrAdd(key, pointID); evicted {
		_ = evictedKey // orphaned graph node; Nearest reports no match when it is the closest hit
	}
}

// Nearest returns the closest observed point's ID and cosine
// similarity, ok=false when the index is empty.
func (s *SemanticIndex) Nearest(vector []float32) (pointID string, similarity float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph.Len() == 0 {
		return "", 0, false
	}
	hits := s.graph.Search(vector, 1)
	if len(hits) == 0 {
		return "", 0, false
	}
	id, found := s.cache.Get(hits[0].Key)
	if !found {
		return "", 0, false
	}
	distance := s.graph.Distance(vector, hits[0].Value)
	return id, 1 - float64(distance), true
}

// ClassifyWithSimilarity extends Classify with level 3: when no exact
// or update match is found, probe the semantic index and emit a warn
// decision if the nearest neighbor clears SimilarityThreshold.
func ClassifyWithSimilarity(ctx context.Context, docID, contentHash, metadataHash string, candidates []Candidate, vector []float32, idx *SemanticIndex) Decision {
	d := Classify(docID, contentHash, metadataHash, candidates)
	if d.Level != LevelNew || idx == nil || vector == nil {
		return d
	}
	nearestID, sim, ok := idx.Nearest(vector)
	if ok && sim >= SimilarityThreshold {
		return Decision{Level: LevelSimilar, Action: ActionWarn, ExistingID: nearestID, Reason: "embedding near a prior record above the similarity threshold"}
	}
	return d
}
