// Package fingerprint normalizes document content and derives the
// content/metadata/composite hashes that drive duplicate detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// placeholderPatterns are removed from content before hashing, case
// insensitive. Every reader of these markers imports them from here.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[Full content from file\.\.\.\]`),
	regexp.MustCompile(`(?i)\[\.\.\.\]`),
	regexp.MustCompile(`(?i)\[TODO:[^\]]*\]`),
	regexp.MustCompile(`(?i)\[TBD:[^\]]*\]`),
}

// volatileMetadataFields are excluded from the metadata hash because they
// change without representing a logical change in the document's identity.
var volatileMetadataFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"status":     true,
	"version":    true,
}

// Normalize applies the pipeline's canonical content normalization:
//  1. strip trailing whitespace from the whole string
//  2. fold CRLF/CR to LF
//  3. remove placeholder markers (case-insensitive)
//  4. lowercase
//
// Trailing whitespace is stripped once more after step 3, since removing
// a trailing placeholder can expose whitespace that preceded it.
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(content string) string {
	s := strings.TrimRight(content, " \t\n\r\v\f")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for _, p := range placeholderPatterns {
		s = p.ReplaceAllString(s, "")
	}
	s = strings.TrimRight(s, " \t\n\r\v\f")
	return strings.ToLower(s)
}

// ContainsPlaceholder reports whether content still carries one of the
// placeholder markers Normalize strips, used by the auditor's quality
// check to flag documents that were never filled in.
func ContainsPlaceholder(content string) bool {
	for _, p := range placeholderPatterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

// ContentHash returns the hex SHA-256 of the normalized content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}

// MetadataHash returns the hex SHA-256 of the canonical JSON encoding of
// meta, with keys sorted lexicographically and the volatile fields
// excluded. Non-serializable values are coerced to their string form.
func MetadataHash(meta map[string]any) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if volatileMetadataFields[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		b.WriteString(canonicalValue(meta[k]))
	}
	b.WriteByte('}')

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// canonicalValue renders v as deterministic JSON, falling back to its
// string representation when it cannot be marshaled directly.
func canonicalValue(v any) string {
	switch t := v.(type) {
	case []string:
		sorted := append([]string(nil), t...)
		out, _ := json.Marshal(sorted)
		return string(out)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			b.WriteString(canonicalValue(t[k]))
		}
		b.WriteByte('}')
		return b.String()
	default:
		if out, err := json.Marshal(v); err == nil {
			return string(out)
		}
		s, _ := json.Marshal(strings.TrimSpace(toString(v)))
		return string(s)
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Fingerprint is the (content_hash, metadata_hash, composite_key) triple
// derived deterministically from a document.
type Fingerprint struct {
	ContentHash  string
	MetadataHash string
	CompositeKey string
}

// Of computes the fingerprint of a (content, metadata) pair. It never
// mutates meta.
func Of(content string, meta map[string]any) Fingerprint {
	ch := ContentHash(content)
	mh := MetadataHash(meta)
	return Fingerprint{
		ContentHash:  ch,
		MetadataHash: mh,
		CompositeKey: ch + ":" + mh,
	}
}
