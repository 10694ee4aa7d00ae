// Package metadata implements the canonical metadata schema: the
// enumerated categories/sources/statuses, the Metadata record, and the
// Builder that populates it with defaults, generated timestamps, and a
// stable metadata hash.
//
// Enums are compile-time constants in this one file so every reader
// imports from here.
package metadata

import (
	"sort"
	"time"

	"github.com/haystack-mcp/ragpipe/internal/fingerprint"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

// Category enumerates the allowed document categories.
type Category string

const (
	CategoryUserRule       Category = "user_rule"
	CategoryProjectRule    Category = "project_rule"
	CategoryProjectCommand Category = "project_command"
	CategoryDesignDoc      Category = "design_doc"
	CategoryDebugSummary   Category = "debug_summary"
	CategoryTestPattern    Category = "test_pattern"
	CategoryOther          Category = "other"
)

var validCategories = map[Category]bool{
	CategoryUserRule: true, CategoryProjectRule: true, CategoryProjectCommand: true,
	CategoryDesignDoc: true, CategoryDebugSummary: true, CategoryTestPattern: true,
	CategoryOther: true,
}

// Source enumerates where a record came from.
type Source string

const (
	SourceManual    Source = "manual"
	SourceGenerated Source = "generated"
	SourceImported  Source = "imported"
)

var validSources = map[Source]bool{SourceManual: true, SourceGenerated: true, SourceImported: true}

// Status enumerates the lifecycle state of a stored record.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusDraft      Status = "draft"
)

var validStatuses = map[Status]bool{StatusActive: true, StatusDeprecated: true, StatusDraft: true}

// requiredFileCategories lists categories that must carry a FilePath.
var requiredFileCategories = map[Category]bool{
	CategoryUserRule: true, CategoryProjectRule: true, CategoryProjectCommand: true,
}

// Metadata is the canonical, fully populated metadata record attached to
// every stored point's payload.
type Metadata struct {
	DocID        string
	Version      string
	Category     Category
	HashContent  string // required; alias ContentHash is carried for compatibility
	ContentHash  string
	MetadataHash string
	Source       Source
	Status       Status
	FilePath     string
	Path         string // alias of FilePath
	HashFile     string
	Repo         string
	Tags         []string
	CreatedAt    string
	UpdatedAt    string
	Warning      string

	// Chunk-only fields.
	IsChunk      bool
	ChunkID      string
	ChunkIndex   int
	ParentDocID  string
	TotalChunks  int
}

// Fields returns the stable (non-volatile) subset of the record as a
// map suitable for fingerprint.MetadataHash. Extras are merged in so
// callers can fingerprint caller-supplied maps the same way a Metadata
// record is fingerprinted once built.
func (m Metadata) Fields() map[string]any {
	f := map[string]any{
		"doc_id":        m.DocID,
		"category":      string(m.Category),
		"hash_content":  m.HashContent,
		"content_hash":  m.ContentHash,
		"source":        string(m.Source),
		"file_path":     m.FilePath,
		"path":          m.Path,
		"hash_file":     m.HashFile,
		"repo":          m.Repo,
	}
	if len(m.Tags) > 0 {
		f["tags"] = append([]string(nil), m.Tags...)
	}
	if m.Warning != "" {
		f["warning"] = m.Warning
	}
	if m.IsChunk {
		f["chunk_id"] = m.ChunkID
		f["chunk_index"] = m.ChunkIndex
		f["parent_doc_id"] = m.ParentDocID
		f["is_chunk"] = true
		f["total_chunks"] = m.TotalChunks
	}
	return f
}

// nowISO returns the current time in ISO-8601 UTC with a trailing 'Z'.
func nowISO(now func() time.Time) string {
	return now().UTC().Format("2006-01-02T15:04:05.000000Z")
}

// Input carries the caller-supplied fields a Builder needs to produce a
// fully populated Metadata record.
type Input struct {
	DocID       string
	Category    Category
	HashContent string
	Source      Source // defaults to SourceManual
	Status      Status // defaults to StatusActive
	FilePath    string
	HashFile    string
	Repo        string
	Tags        []string
	Version     string // defaults to the creation timestamp
	Warning     string

	IsChunk     bool
	ChunkID     string
	ChunkIndex  int
	ParentDocID string
	TotalChunks int
}

// Builder constructs validated Metadata records with generated
// timestamps and a freshly computed metadata hash. Now is overridable
// for deterministic tests; it defaults to time.Now.
type Builder struct {
	Now func() time.Time
}

// Build validates in and produces a fully populated Metadata record.
// It returns *pipeline.Error{Kind: InvalidMetadata} when a required
// field is empty or an enumerated field holds an unknown value.
func (b Builder) Build(in Input) (Metadata, error) {
	now := b.Now
	if now == nil {
		now = time.Now
	}

	if in.DocID == "" {
		return Metadata{}, pipeline.New(pipeline.ErrInvalidMetadata, "doc_id is required")
	}
	if in.HashContent == "" {
		return Metadata{}, pipeline.New(pipeline.ErrInvalidMetadata, "hash_content is required")
	}
	if in.Category == "" {
		return Metadata{}, pipeline.New(pipeline.ErrInvalidMetadata, "category is required")
	}
	if !validCategories[in.Category] {
		return Metadata{}, pipeline.New(pipeline.ErrInvalidMetadata, "unknown category %q", in.Category)
	}
	if in.Source == "" {
		in.Source = SourceManual
	}
	if !validSources[in.Source] {
		return Metadata{}, pipeline.New(pipeline.ErrInvalidMetadata, "unknown source %q", in.Source)
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	if !validStatuses[in.Status] {
		return Metadata{}, pipeline.New(pipeline.ErrInvalidMetadata, "unknown status %q", in.Status)
	}
	if requiredFileCategories[in.Category] && in.FilePath == "" {
		return Metadata{}, pipeline.New(pipeline.ErrInvalidMetadata, "category %q requires file_path", in.Category)
	}

	ts := nowISO(now)
	version := in.Version
	if version == "" {
		version = ts
	}

	m := Metadata{
		DocID:       in.DocID,
		Version:     version,
		Category:    in.Category,
		HashContent: in.HashContent,
		ContentHash: in.HashContent,
		Source:      in.Source,
		Status:      in.Status,
		FilePath:    in.FilePath,
		Path:        in.FilePath,
		HashFile:    in.HashFile,
		Repo:        in.Repo,
		Tags:        append([]string(nil), in.Tags...),
		CreatedAt:   ts,
		UpdatedAt:   ts,
		Warning:     in.Warning,
		IsChunk:     in.IsChunk,
		ChunkID:     in.ChunkID,
		ChunkIndex:  in.ChunkIndex,
		ParentDocID: in.ParentDocID,
		TotalChunks: in.TotalChunks,
	}
	m.MetadataHash = fingerprint.MetadataHash(m.Fields())
	return m, nil
}

// Categories returns the full, sorted list of valid categories.
func Categories() []Category {
	out := make([]Category, 0, len(validCategories))
	for c := range validCategories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sources returns the full, sorted list of valid sources.
func Sources() []Source {
	out := make([]Source, 0, len(validSources))
	for s := range validSources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Statuses returns the full, sorted list of valid statuses.
func Statuses() []Status {
	out := make([]Status, 0, len(validStatuses))
	for s := range validStatuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
