// Package chunker implements the recursive, separator-driven splitter
// and the chunk-set diff that backs incremental re-indexing.
//
// Splitting recurses through an ordered separator list (paragraph,
// line, sentence, word), then greedily merges the resulting pieces
// into token-budgeted windows with overlap. A chunk boundary falls
// mid-sentence only when a sentence alone exceeds the target size, in
// which case that sentence is split between words.
package chunker

import (
	"strconv"
	"strings"

	"github.com/haystack-mcp/ragpipe/internal/fingerprint"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

// separators are tried in priority order; splitting falls back to the
// next entry when a piece still exceeds the target size.
var separators = []string{"\n\n", "\n", ". ", " "}

// Options configures the splitter. Size/Overlap are counted in
// whitespace-delimited tokens; sizing chunks does not need a
// model-accurate BPE count.
type Options struct {
	Size    int // target chunk size in tokens; default 512
	Overlap int // overlap between consecutive chunks in tokens; default 50
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = 512
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.Size {
		o.Overlap = o.Size - 1
	}
	return o
}

// Chunk is a derived document representing a window of a parent
// document.
type Chunk struct {
	ParentDocID string
	ChunkIndex  int
	ChunkID     string
	TotalChunks int
	Text        string
	ContentHash string
}

func countTokens(s string) int { return len(strings.Fields(s)) }

// Split recursively splits text into chunks no larger than opt.Size
// tokens, with opt.Overlap tokens of trailing context repeated at the
// head of each following chunk. Returns ChunkingFailed if non-empty
// input produces zero chunks.
func Split(parentDocID, text string, opt Options) ([]Chunk, error) {
	opt = opt.withDefaults()
	if text == "" {
		return nil, nil
	}

	atoms := splitAtoms(text, opt.Size, 0)
	pieces := mergeWithOverlap(atoms, opt.Size, opt.Overlap)

	if len(pieces) == 0 {
		return nil, pipeline.New(pipeline.ErrChunkingFailed, "splitter produced zero chunks from non-empty input")
	}

	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{
			ParentDocID: parentDocID,
			ChunkIndex:  i,
			ChunkID:     ChunkID(parentDocID, i),
			TotalChunks: len(pieces),
			Text:        p,
			ContentHash: fingerprint.ContentHash(p),
		}
	}
	return chunks, nil
}

// ChunkID deterministically derives the chunk identifier for (parent,
// index): parentDocID + "_chunk_" + index.
func ChunkID(parentDocID string, index int) string {
	return parentDocID + "_chunk_" + strconv.Itoa(index)
}

// splitAtoms recursively breaks text into the smallest pieces that fit
// within targetTokens, trying each separator in priority order before
// falling back to single whitespace-delimited tokens.
func splitAtoms(text string, targetTokens, sepIdx int) []string {
	if countTokens(text) <= targetTokens {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return strings.Fields(text)
	}

	parts := splitKeepingSeparator(text, separators[sepIdx])
	if len(parts) <= 1 {
		// This separator does not occur in the text; try the next one.
		return splitAtoms(text, targetTokens, sepIdx+1)
	}

	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, splitAtoms(p, targetTokens, sepIdx+1)...)
	}
	return out
}

// splitKeepingSeparator splits on sep, reattaching sep to the end of
// every piece but the last so downstream reassembly doesn't lose it.
func splitKeepingSeparator(text, sep string) []string {
	raw := strings.Split(text, sep)
	if len(raw) <= 1 {
		return raw
	}
	out := make([]string, len(raw))
	for i, r := range raw {
		if i < len(raw)-1 {
			out[i] = r + sep
		} else {
			out[i] = r
		}
	}
	return out
}

// mergeWithOverlap greedily packs atoms into chunks of at most size
// tokens, carrying the trailing overlap tokens of each chunk into the
// head of the next so re-chunking identical input with identical
// parameters always reproduces the same boundaries.
func mergeWithOverlap(atoms []string, size, overlap int) []string {
	var chunks []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(cur, ""))
	}

	for _, a := range atoms {
		aTok := countTokens(a)
		if curTokens > 0 && curTokens+aTok > size {
			flush()
			cur, curTokens = carryOverlap(cur, overlap)
		}
		cur = append(cur, a)
		curTokens += aTok
	}
	flush()
	return chunks
}

// carryOverlap returns the trailing atoms of cur totaling at least
// overlap tokens (but never all of cur, to guarantee forward progress).
func carryOverlap(cur []string, overlap int) ([]string, int) {
	if overlap <= 0 || len(cur) == 0 {
		return nil, 0
	}
	var carried []string
	tokens := 0
	for i := len(cur) - 1; i >= 1 && tokens < overlap; i-- {
		carried = append([]string{cur[i]}, carried...)
		tokens += countTokens(cur[i])
	}
	return carried, tokens
}
