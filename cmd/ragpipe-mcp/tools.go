package main

import (
	"context"
	"fmt"

	"github.com/haystack-mcp/ragpipe/internal/audit"
	"github.com/haystack-mcp/ragpipe/internal/bulk"
	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
	"github.com/haystack-mcp/ragpipe/internal/incremental"
	"github.com/haystack-mcp/ragpipe/internal/ingest"
	"github.com/haystack-mcp/ragpipe/internal/metadata"
	"github.com/haystack-mcp/ragpipe/internal/query"
	"github.com/haystack-mcp/ragpipe/internal/update"
)

// =====================
// Argument types
// =====================

type IngestArgs struct {
	DocID       string   `json:"docId,omitempty" jsonschema:"description=Caller-supplied document id. Left empty, one is derived from the content hash. Example: 'auth-guide'"`
	Content     string   `json:"content" jsonschema:"required,description=Full text of the document to ingest"`
	ContentType string   `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code,description=Routes the document to the documentation or code collection/embedder. Defaults to 'doc'"`
	Category    string   `json:"category,omitempty" jsonschema:"enum=user_rule,enum=project_rule,enum=project_command,enum=design_doc,enum=debug_summary,enum=test_pattern,enum=other,description=Document category, defaults to 'other'"`
	Source      string   `json:"source,omitempty" jsonschema:"description=Origin of the document: 'manual', 'generated' or 'imported'. Defaults to 'manual'"`
	FilePath    string   `json:"filePath,omitempty" jsonschema:"description=Repository-relative path the content was read from. Required for user_rule/project_rule/project_command categories"`
	Repo        string   `json:"repo,omitempty" jsonschema:"description=Repository identifier the document belongs to"`
	Tags        []string `json:"tags,omitempty" jsonschema:"description=Free-form tags attached to the document"`
	Version     string   `json:"version,omitempty" jsonschema:"description=Caller-supplied version label; defaults to the record's creation timestamp"`
}

type SearchArgs struct {
	Query       string `json:"query" jsonschema:"required,description=Natural-language query text to embed and search for"`
	ContentType string `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code,description=Which collection to search. Defaults to 'doc'"`
	Category    string `json:"category,omitempty" jsonschema:"description=Restrict results to this category"`
	TopK        int    `json:"topK,omitempty" jsonschema:"minimum=1,maximum=100,description=Number of results to return, default 10"`
}

type LookupByDocIDArgs struct {
	DocID       string `json:"docId" jsonschema:"required,description=doc_id to look up"`
	ContentType string `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	Category    string `json:"category,omitempty" jsonschema:"description=Optional category filter"`
}

type UpdateContentArgs struct {
	PointID     string         `json:"pointId" jsonschema:"required,description=Point id (doc_id or chunk_id) to rewrite"`
	ContentType string         `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	NewContent  string         `json:"newContent" jsonschema:"required,description=Replacement content; content_hash and embedding are recomputed from this"`
	MetaPatch   map[string]any `json:"metaPatch,omitempty" jsonschema:"description=Additional metadata fields to set alongside the content rewrite"`
}

type UpdateMetadataArgs struct {
	PointID     string         `json:"pointId" jsonschema:"required,description=Point id to patch"`
	ContentType string         `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	Patch       map[string]any `json:"patch" jsonschema:"required,description=Metadata fields to set; the existing vector is preserved"`
}

type DeprecateArgs struct {
	PointID     string `json:"pointId" jsonschema:"required,description=Point id to mark deprecated"`
	ContentType string `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
}

type VersionHistoryArgs struct {
	DocID             string `json:"docId" jsonschema:"required,description=doc_id whose version history to list"`
	ContentType       string `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	Category          string `json:"category,omitempty" jsonschema:"description=Optional category filter"`
	IncludeDeprecated bool   `json:"includeDeprecated,omitempty" jsonschema:"description=Include deprecated versions, not just the active one"`
}

type IncrementalUpdateArgs struct {
	DocID       string `json:"docId" jsonschema:"required,description=Parent document id whose chunk set should be reconciled"`
	NewContent  string `json:"newContent" jsonschema:"required,description=Full new content of the document"`
	ContentType string `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	Category    string `json:"category,omitempty" jsonschema:"description=Category applied to newly written chunks"`
	FilePath    string `json:"filePath,omitempty"`
	Repo        string `json:"repo,omitempty"`
}

type DeleteByFilterArgs struct {
	ContentType string `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	Field       string `json:"field" jsonschema:"required,description=Payload field to filter on, e.g. 'meta.doc_id' or 'meta.category'"`
	Value       string `json:"value" jsonschema:"required,description=Value the field must equal for a point to be deleted"`
}

type UpdateMetadataByFilterArgs struct {
	ContentType string         `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	Field       string         `json:"field" jsonschema:"required,description=Payload field to filter on"`
	Value       string         `json:"value" jsonschema:"required,description=Value the field must equal"`
	Patch       map[string]any `json:"patch" jsonschema:"required,description=Metadata fields to set on every matching point"`
}

type ImportRecordArgs struct {
	DocID    string         `json:"docId" jsonschema:"required,description=doc_id to import under"`
	Category string         `json:"category,omitempty" jsonschema:"description=Category stored in the record's metadata"`
	Content  string         `json:"content" jsonschema:"required,description=Document content to embed and store"`
	Meta     map[string]any `json:"meta,omitempty" jsonschema:"description=Additional metadata fields"`
}

type ImportRecordsArgs struct {
	ContentType string             `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	Records     []ImportRecordArgs `json:"records" jsonschema:"required,description=Documents to import"`
	Policy      string             `json:"policy,omitempty" jsonschema:"enum=skip,enum=update,enum=error,description=How to handle a doc_id that already exists. Defaults to 'skip'"`
}

type VerifyDocumentArgs struct {
	Content  string         `json:"content" jsonschema:"required,description=Raw document content to score"`
	Metadata map[string]any `json:"metadata" jsonschema:"required,description=Metadata map (doc_id, category, status, content_hash, file_path) to validate against the content"`
}

type AuditDirectoryArgs struct {
	Path        string `json:"path,omitempty" jsonschema:"description=Directory to walk and reconcile against the store. Leave empty to audit stored points only"`
	ContentType string `json:"contentType,omitempty" jsonschema:"enum=doc,enum=code"`
	Category    string `json:"category,omitempty" jsonschema:"description=Restrict the audit to this category"`
}

type BackupArgs struct {
	IncludeEmbeddings bool   `json:"includeEmbeddings,omitempty" jsonschema:"description=Include raw embedding vectors in the backup. Off by default to keep backups small"`
	IncludeCode       bool   `json:"includeCode,omitempty" jsonschema:"description=Also back up the code collection alongside documentation"`
	Category          string `json:"category,omitempty" jsonschema:"description=Restrict the backup to this category"`
}

type RestoreArgs struct {
	Dir         string `json:"dir" jsonschema:"required,description=Path to a backup directory previously produced by the backup tool"`
	IncludeCode bool   `json:"includeCode,omitempty" jsonschema:"description=Also restore code_documents.json if present in the backup"`
}

// =====================
// Tool implementations
// =====================

func contentType(s string) ingest.ContentType {
	if s == string(ingest.ContentCode) {
		return ingest.ContentCode
	}
	return ingest.ContentDoc
}

func (s *server) ingestDocument(args IngestArgs) (string, error) {
	in := ingest.Input{
		DocID: args.DocID, Content: args.Content,
		ContentType: contentType(args.ContentType),
		Category:    metadata.Category(args.Category),
		Source:      metadata.Source(args.Source),
		FilePath:    args.FilePath, Repo: args.Repo,
		Tags: args.Tags, Version: args.Version,
	}
	res, err := s.app.Ingest.Store(context.Background(), in)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("status=%s action=%s level=%s point_id=%s doc_id=%s version=%s reason=%q",
		res.Status, res.Action, res.Level, res.PointID, res.DocID, res.Version, res.Reason), nil
}

func (s *server) search(args SearchArgs) (string, error) {
	q := s.queryFor(args.ContentType)
	var filter *filterdsl.Node
	if args.Category != "" {
		f := filterdsl.EqNode("meta.category", args.Category)
		filter = &f
	}
	topK := args.TopK
	if topK <= 0 {
		topK = 10
	}
	results, err := q.SearchWithFilters(context.Background(), args.Query, filter, topK)
	if err != nil {
		return "", err
	}
	out := fmt.Sprintf("%d results:\n", len(results))
	for _, r := range results {
		docID, _ := r.Point.Value("meta.doc_id")
		out += fmt.Sprintf("- %v (score=%.4f, point_id=%s)\n", docID, r.Score, r.Point.ID)
	}
	return out, nil
}

// lookupByDocID returns only the active point(s) for a doc_id; use
// get_version_history to see deprecated versions too.
func (s *server) lookupByDocID(args LookupByDocIDArgs) (string, error) {
	q := s.queryFor(args.ContentType)
	points, err := q.LookupByDocID(context.Background(), args.DocID, args.Category, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d matching points for doc_id=%s", len(points), args.DocID), nil
}

func (s *server) updateContent(args UpdateContentArgs) (string, error) {
	u, embed := s.updateFor(args.ContentType)
	p, err := u.UpdateContent(context.Background(), args.PointID, args.NewContent, embed, args.MetaPatch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("updated point %s", p.ID), nil
}

func (s *server) updateMetadata(args UpdateMetadataArgs) (string, error) {
	u, _ := s.updateFor(args.ContentType)
	p, err := u.UpdateMetadata(context.Background(), args.PointID, args.Patch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("patched point %s", p.ID), nil
}

func (s *server) deprecate(args DeprecateArgs) (string, error) {
	u, _ := s.updateFor(args.ContentType)
	p, err := u.Deprecate(context.Background(), args.PointID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("deprecated point %s", p.ID), nil
}

func (s *server) versionHistory(args VersionHistoryArgs) (string, error) {
	u, _ := s.updateFor(args.ContentType)
	history, err := u.GetVersionHistory(context.Background(), args.DocID, args.Category, args.IncludeDeprecated)
	if err != nil {
		return "", err
	}
	out := fmt.Sprintf("%d versions for doc_id=%s:\n", len(history), args.DocID)
	for _, p := range history {
		v, _ := p.Value("meta.version")
		st, _ := p.Value("meta.status")
		out += fmt.Sprintf("- %s version=%v status=%v\n", p.ID, v, st)
	}
	return out, nil
}

func (s *server) incrementalUpdate(args IncrementalUpdateArgs) (string, error) {
	inc := s.incrementalFor(args.ContentType)
	opt := incrementalOptions(args)
	report, err := inc.Update(context.Background(), args.DocID, args.NewContent, opt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("unchanged=%d changed=%d new=%d deleted=%d touched=%v",
		report.Counts.Unchanged, report.Counts.Changed, report.Counts.New, report.Counts.Deleted, report.TouchedIDs), nil
}

func (s *server) deleteByFilter(args DeleteByFilterArgs) (string, error) {
	b := s.bulkFor(args.ContentType)
	n, err := b.DeleteByFilter(context.Background(), filterdsl.EqNode(args.Field, args.Value))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("deleted %d points", n), nil
}

func (s *server) updateMetadataByFilter(args UpdateMetadataByFilterArgs) (string, error) {
	b := s.bulkFor(args.ContentType)
	n, errs, err := b.UpdateMetadataByFilter(context.Background(), filterdsl.EqNode(args.Field, args.Value), args.Patch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("updated %d points, %d per-point errors", n, len(errs)), nil
}

func (s *server) importRecords(args ImportRecordsArgs) (string, error) {
	b := s.bulkFor(args.ContentType)
	_, embed := s.updateFor(args.ContentType)
	records := make([]bulk.ImportRecord, len(args.Records))
	for i, r := range args.Records {
		records[i] = bulk.ImportRecord{DocID: r.DocID, Category: r.Category, Content: r.Content, Meta: r.Meta}
	}
	report, err := b.ImportRecords(context.Background(), records, bulk.DuplicatePolicy(args.Policy), embed)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("imported=%d skipped=%d updated=%d errors=%d", report.Imported, report.Skipped, report.Updated, len(report.Errors)), nil
}

func (s *server) verifyDocument(args VerifyDocumentArgs) (string, error) {
	r := verifyDocumentReport(args.Content, args.Metadata)
	return fmt.Sprintf("status=%s score=%.2f issues=%v", r.Status, r.Score, r.Issues), nil
}

func (s *server) auditDirectory(args AuditDirectoryArgs) (string, error) {
	a := s.auditFor(args.ContentType)
	report, err := a.AuditDirectory(context.Background(), args.Path, args.Category)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("files=%d missing=%d mismatched=%d integrity_score=%.2f",
		report.TotalFiles, report.Missing, report.Mismatched, report.IntegrityScore), nil
}

func (s *server) backup(args BackupArgs) (string, error) {
	req := backupRequest(s.app, args)
	dir, err := s.app.Backup.Backup(context.Background(), req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("backup written to %s", dir), nil
}

func (s *server) restore(args RestoreArgs) (string, error) {
	req := restoreRequest(s.app, args)
	if err := s.app.Backup.Restore(context.Background(), req); err != nil {
		return "", err
	}
	return fmt.Sprintf("restored from %s", args.Dir), nil
}

// queryFor/updateFor/bulkFor/incrementalFor/auditFor route a tool call
// to the doc or code side of the App based on the caller's
// contentType argument, mirroring ingest.Engine.collectionFor.
func (s *server) queryFor(ct string) *query.Service {
	if contentType(ct) == ingest.ContentCode {
		return s.app.CodeQuery
	}
	return s.app.DocQuery
}

func (s *server) updateFor(ct string) (*update.Service, embedder.Embedder) {
	if contentType(ct) == ingest.ContentCode {
		return s.app.CodeUpdate, s.app.CodeEmbedder
	}
	return s.app.DocUpdate, s.app.DocEmbedder
}

func (s *server) bulkFor(ct string) *bulk.Service {
	if contentType(ct) == ingest.ContentCode {
		return s.app.CodeBulk
	}
	return s.app.DocBulk
}

func (s *server) incrementalFor(ct string) *incremental.Updater {
	if contentType(ct) == ingest.ContentCode {
		return s.app.CodeIncremental
	}
	return s.app.DocIncremental
}

func (s *server) auditFor(ct string) *audit.Service {
	if contentType(ct) == ingest.ContentCode {
		return s.app.CodeAudit
	}
	return s.app.DocAudit
}
