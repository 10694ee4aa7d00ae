// Package embedder abstracts the embedding models the ingestion
// pipeline treats as a black box: something that maps a batch of
// documents to fixed-dimension vectors. Two implementations: an HTTP
// client for a real embeddings endpoint, and a deterministic
// hash-based embedder for tests and offline development.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/haystack-mcp/ragpipe/internal/config"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

// Embedder converts text to embedding vectors. Implementations MUST
// serialize concurrent EmbedBatch calls on themselves if the backing
// model is not reentrant; the pipeline always treats an Embedder as if
// it required that serialization.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
}

// clientEmbedder calls a configured HTTP embedding endpoint, one
// request per call, serialized behind a mutex.
type clientEmbedder struct {
	cfg config.EmbeddingConfig
	dim int
	mu  sync.Mutex
}

// NewClient builds an embedder that calls cfg.BaseURL+cfg.Path.
func NewClient(cfg config.EmbeddingConfig) Embedder {
	return &clientEmbedder{cfg: cfg, dim: cfg.Dimension}
}

func (c *clientEmbedder) Name() string   { return c.cfg.Model }
func (c *clientEmbedder) Dimension() int { return c.dim }

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *clientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	body, _ := json.Marshal(embedReq{Model: c.cfg.Model, Input: texts})
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.cfg.BaseURL+c.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.Wrap(pipeline.ErrEmbedderFailed, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, pipeline.New(pipeline.ErrEmbedderFailed, "embeddings error: %s: %s", resp.Status, string(raw))
	}

	var er embedResp
	if err := json.Unmarshal(raw, &er); err != nil {
		return nil, pipeline.New(pipeline.ErrEmbedderFailed, "failed to parse embedding response: %v", err)
	}
	if len(er.Data) != len(texts) {
		return nil, pipeline.New(pipeline.ErrEmbedderFailed, "unexpected embedding count: got %d, want %d", len(er.Data), len(texts))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

// deterministicEmbedder is a reentrant, hash-based embedder used in
// tests and for offline development.
type deterministicEmbedder struct {
	dim       int
	normalize bool
	name      string
}

// NewDeterministic builds a reproducible, dependency-free embedder.
func NewDeterministic(dim int, normalize bool) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, normalize: normalize, name: "deterministic"}
}

func (d *deterministicEmbedder) Name() string   { return d.name }
func (d *deterministicEmbedder) Dimension() int { return d.dim }

func (d *deterministicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) < 3 {
		addGram(b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			addGram(b[i:i+3], v)
		}
	}
	if d.normalize {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range v {
				v[i] *= inv
			}
		}
	}
	return v
}

func addGram(gram []byte, v []float32) {
	h := fnv.New64a()
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}

// CosineSimilarity returns the cosine similarity between two equal
// length vectors, used by the duplicate detector's level-3 check.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
