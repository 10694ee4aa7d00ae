// Package backup implements the local backup/restore subsystem: a
// timestamped directory holding one JSON array per collection, a
// backup-wide metadata record, and a checksum manifest that restore
// must verify before touching the store.
//
// Directory creation uses a bare os.Mkdir (fails if the name already
// exists) so two concurrent backups can never collide. A restore
// additionally takes a github.com/gofrs/flock exclusive lock on the
// backup directory for its duration, so two restores of the same
// backup cannot interleave their writes.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/haystack-mcp/ragpipe/internal/bulk"
	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/update"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

const backupVersion = "1"

// DocumentEntry is one record in a documents.json/code_documents.json
// array.
type DocumentEntry struct {
	ID        string         `json:"id"`
	Content   string         `json:"content,omitempty"`
	Meta      map[string]any `json:"meta"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// Metadata is the backup-wide record written to metadata.json.
type Metadata struct {
	BackupID          string          `json:"backup_id"`
	Collections       map[string]string `json:"collections"`
	Timestamp         string          `json:"timestamp"`
	DocumentCount     int             `json:"document_count"`
	DocumentationCount int            `json:"documentation_count"`
	CodeCount         int             `json:"code_count"`
	IncludeEmbeddings bool            `json:"include_embeddings"`
	FiltersApplied    bool            `json:"filters_applied"`
	Filters           *filterdsl.Node `json:"filters,omitempty"`
	BackupVersion     string          `json:"backup_version"`
}

// FileChecksum is one manifest.json entry.
type FileChecksum struct {
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// Manifest is the written manifest.json.
type Manifest struct {
	BackupID  string         `json:"backup_id"`
	Files     []FileChecksum `json:"files"`
	CreatedAt string         `json:"created_at"`
}

// Now is overridable for deterministic tests; it defaults to time.Now.
var Now = time.Now

// Service runs backup/restore against a base directory that holds one
// subdirectory per backup.
type Service struct {
	BaseDir string
}

// New builds a Service rooted at baseDir.
func New(baseDir string) *Service {
	return &Service{BaseDir: baseDir}
}

// Request configures one Backup call.
type Request struct {
	DocCollection     string
	CodeCollection    string // empty when no code collection is backed up
	DocBulk           *bulk.Service
	CodeBulk          *bulk.Service
	IncludeEmbeddings bool
	Filter            *filterdsl.Node
}

// Backup exports the requested collections into a new timestamped
// directory under s.BaseDir, writing documents.json (and
// code_documents.json when a code collection is given), metadata.json,
// and manifest.json. Returns the backup directory's path.
func (s *Service) Backup(ctx context.Context, req Request) (string, error) {
	now := Now().UTC()
	backupID := fmt.Sprintf("backup_%s_%s", req.DocCollection, now.Format("20060102_150405"))
	dir := filepath.Join(s.BaseDir, backupID)

	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return "", pipeline.Wrap(pipeline.ErrStoreUnavailable, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", pipeline.Wrap(pipeline.ErrStoreUnavailable, err)
	}

	docEntries, err := exportEntries(ctx, req.DocBulk, req.Filter, req.IncludeEmbeddings)
	if err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "documents.json"), docEntries); err != nil {
		return "", err
	}

	meta := Metadata{
		BackupID: backupID, Timestamp: now.Format("2006-01-02T15:04:05.000000Z"),
		Collections: map[string]string{"documentation": req.DocCollection},
		DocumentationCount: len(docEntries), DocumentCount: len(docEntries),
		IncludeEmbeddings: req.IncludeEmbeddings, FiltersApplied: req.Filter != nil,
		Filters: req.Filter, BackupVersion: backupVersion,
	}

	files := []string{"documents.json"}
	if req.CodeCollection != "" && req.CodeBulk != nil {
		codeEntries, err := exportEntries(ctx, req.CodeBulk, req.Filter, req.IncludeEmbeddings)
		if err != nil {
			return "", err
		}
		if err := writeJSON(filepath.Join(dir, "code_documents.json"), codeEntries); err != nil {
			return "", err
		}
		meta.Collections["code"] = req.CodeCollection
		meta.CodeCount = len(codeEntries)
		meta.DocumentCount += len(codeEntries)
		files = append(files, "code_documents.json")
	}

	if err := writeJSON(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return "", err
	}
	files = append(files, "metadata.json")

	manifest, err := buildManifest(backupID, dir, files, now)
	if err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "manifest.json"), manifest); err != nil {
		return "", err
	}

	return dir, nil
}

func exportEntries(ctx context.Context, b *bulk.Service, filter *filterdsl.Node, includeEmbeddings bool) ([]DocumentEntry, error) {
	points, err := b.Export(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentEntry, len(points))
	for i, p := range points {
		// Meta carries only the metadata record, whichever shape the
		// stored point used; content is its own top-level entry field.
		e := DocumentEntry{ID: p.ID, Meta: update.DetectShape(p.Payload).Metadata(p.Payload)}
		if c, ok := p.Value("content"); ok {
			e.Content, _ = c.(string)
		}
		if includeEmbeddings {
			e.Embedding = p.Vector
		}
		out[i] = e
	}
	return out, nil
}

func buildManifest(backupID, dir string, filenames []string, now time.Time) (Manifest, error) {
	m := Manifest{BackupID: backupID, CreatedAt: now.Format("2006-01-02T15:04:05.000000Z")}
	for _, f := range filenames {
		sum, size, err := checksumFile(filepath.Join(dir, f))
		if err != nil {
			return Manifest{}, pipeline.Wrap(pipeline.ErrStoreUnavailable, err)
		}
		m.Files = append(m.Files, FileChecksum{Filename: f, Checksum: sum, Size: size})
	}
	return m, nil
}

func checksumFile(path string) (string, int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), int64(len(raw)), nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return pipeline.Wrap(pipeline.ErrInvalidInput, err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// RestoreRequest configures one Restore call. Embed and CodeEmbed are
// used only to re-embed entries that were backed up without a vector
// (IncludeEmbeddings=false); each must match the embedder the
// corresponding collection was originally indexed with, since doc and
// code collections are not guaranteed to share a vector space. CodeEmbed
// defaults to Embed when CodeBulk is set but CodeEmbed is nil.
type RestoreRequest struct {
	Dir       string
	DocBulk   *bulk.Service // target for documents.json
	CodeBulk  *bulk.Service // target for code_documents.json, optional
	Embed     func(content string) ([]float32, error)
	CodeEmbed func(content string) ([]float32, error)
}

// Restore verifies every file named in manifest.json against its
// recorded SHA-256 checksum, aborting with BackupCorrupted on any
// mismatch before writing anything to the store, then upserts every
// entry back into its collection.
func (s *Service) Restore(ctx context.Context, req RestoreRequest) error {
	lock := flock.New(filepath.Join(req.Dir, ".restore.lock"))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return pipeline.New(pipeline.ErrStoreUnavailable, "could not acquire exclusive lock on backup directory %q", req.Dir)
	}
	defer lock.Unlock()

	var manifest Manifest
	if err := readJSON(filepath.Join(req.Dir, "manifest.json"), &manifest); err != nil {
		return pipeline.Wrap(pipeline.ErrBackupCorrupted, err)
	}

	for _, f := range manifest.Files {
		sum, size, err := checksumFile(filepath.Join(req.Dir, f.Filename))
		if err != nil {
			return pipeline.Wrap(pipeline.ErrBackupCorrupted, err)
		}
		if sum != f.Checksum || size != f.Size {
			return pipeline.New(pipeline.ErrBackupCorrupted, "checksum mismatch for %q", f.Filename)
		}
	}

	if err := s.restoreFile(ctx, filepath.Join(req.Dir, "documents.json"), req.DocBulk, req.Embed); err != nil {
		return err
	}
	if req.CodeBulk != nil {
		if _, statErr := os.Stat(filepath.Join(req.Dir, "code_documents.json")); statErr == nil {
			codeEmbed := req.CodeEmbed
			if codeEmbed == nil {
				codeEmbed = req.Embed
			}
			if err := s.restoreFile(ctx, filepath.Join(req.Dir, "code_documents.json"), req.CodeBulk, codeEmbed); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) restoreFile(ctx context.Context, path string, b *bulk.Service, embed func(string) ([]float32, error)) error {
	var entries []DocumentEntry
	if err := readJSON(path, &entries); err != nil {
		return pipeline.Wrap(pipeline.ErrBackupCorrupted, err)
	}

	items := make([]bulk.ImportItem, len(entries))
	for i, e := range entries {
		p := vectorstore.Point{
			ID:      e.ID,
			Payload: map[string]any{"content": e.Content, "meta": e.Meta},
			Vector:  e.Embedding,
		}
		item := bulk.ImportItem{Point: p}
		if len(e.Embedding) == 0 && e.Content != "" && embed != nil {
			item.Text = e.Content
		}
		items[i] = item
	}

	var e embedder.Embedder
	if embed != nil {
		e = embedderFunc(embed)
	}
	return b.Import(ctx, items, e, 1)
}

// embedderFunc adapts a plain function to the embedder.Embedder
// interface so Restore can re-embed entries backed up without
// embeddings without importing a concrete embedder implementation.
type embedderFunc func(content string) ([]float32, error)

func (f embedderFunc) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
func (f embedderFunc) Name() string   { return "restore-embedder" }
func (f embedderFunc) Dimension() int { return 0 }

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
