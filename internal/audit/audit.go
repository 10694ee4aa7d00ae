// Package audit implements the per-document quality check and the
// storage-integrity audit: a weighted rubric over individual stored
// documents, and a recursive, extension-filtered directory walk that
// reconciles files on disk against stored points.
package audit

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/haystack-mcp/ragpipe/internal/fingerprint"
	"github.com/haystack-mcp/ragpipe/internal/query"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
)

const minContentLength = 100

var requiredFilePathCategories = map[string]bool{
	"user_rule": true, "project_rule": true, "project_command": true,
}

// Issue names one failed check in a VerifyDocument report.
type Issue string

const (
	IssueEmptyContent       Issue = "empty_content"
	IssueTooShort           Issue = "too_short"
	IssuePlaceholder        Issue = "contains_placeholder"
	IssueMissingDocID       Issue = "missing_doc_id"
	IssueMissingCategory    Issue = "missing_category"
	IssueHashMismatch       Issue = "hash_mismatch"
	IssueInvalidStatus      Issue = "invalid_status"
	IssueMissingFilePath    Issue = "missing_file_path"
)

var validStatuses = map[string]bool{"active": true, "deprecated": true, "draft": true}

// Report is the per-document verification result.
type Report struct {
	Score  float64
	Status string // "pass" or "fail"
	Issues []Issue
}

// VerifyDocument runs the quality rubric against content/metadata:
// 70% weight on content, hash integrity, and required metadata; 30%
// on the remaining checks. status = pass iff score >= 0.8 AND no
// issues at all.
func VerifyDocument(content string, meta map[string]any) Report {
	var issues []Issue

	critical := 0
	const criticalChecks = 3

	if strings.TrimSpace(content) == "" {
		issues = append(issues, IssueEmptyContent)
	} else {
		critical++
	}
	if len(content) < minContentLength {
		issues = append(issues, IssueTooShort)
	}
	if fingerprint.ContainsPlaceholder(content) {
		issues = append(issues, IssuePlaceholder)
	}

	docID, _ := meta["doc_id"].(string)
	category, _ := meta["category"].(string)
	if docID == "" {
		issues = append(issues, IssueMissingDocID)
	}
	if category == "" {
		issues = append(issues, IssueMissingCategory)
	}
	if docID != "" && category != "" {
		critical++
	}

	wantHash, _ := meta["content_hash"].(string)
	if wantHash == "" {
		wantHash, _ = meta["hash_content"].(string)
	}
	if wantHash != "" && wantHash == fingerprint.ContentHash(content) {
		critical++
	} else if wantHash != "" {
		issues = append(issues, IssueHashMismatch)
	}

	status, _ := meta["status"].(string)
	if status != "" && !validStatuses[status] {
		issues = append(issues, IssueInvalidStatus)
	}

	filePath, _ := meta["file_path"].(string)
	if requiredFilePathCategories[category] && filePath == "" {
		issues = append(issues, IssueMissingFilePath)
	}

	otherChecks := 4.0 // too_short, placeholder, invalid_status, file_path
	otherPassed := otherChecks
	for _, i := range issues {
		switch i {
		case IssueTooShort, IssuePlaceholder, IssueInvalidStatus, IssueMissingFilePath:
			otherPassed--
		}
	}
	if otherPassed < 0 {
		otherPassed = 0
	}

	score := 0.7*(float64(critical)/criticalChecks) + 0.3*(otherPassed/otherChecks)

	r := Report{Score: score, Issues: issues}
	if score >= 0.8 && len(issues) == 0 {
		r.Status = "pass"
	} else {
		r.Status = "fail"
	}
	return r
}

// FileClass classifies one file found on disk against the store.
type FileClass string

const (
	FileMatchedEqual     FileClass = "matched_equal"
	FileMatchedMismatch  FileClass = "matched_mismatched"
	FileMissingFromStore FileClass = "missing_from_store"
)

// FileResult is one entry in a DirectoryReport.
type FileResult struct {
	Path  string
	Class FileClass
}

// DirectoryReport is the result of AuditDirectory.
type DirectoryReport struct {
	Files          []FileResult
	TotalFiles     int
	Missing        int
	Mismatched     int
	QualityReports []Report
	IntegrityScore float64
}

// Service runs audits against a query.Service bound to one collection.
type Service struct {
	query *query.Service
}

// New builds an audit Service.
func New(q *query.Service) *Service {
	return &Service{query: q}
}

// defaultExtensions restricts the walk to documents the pipeline could
// plausibly have ingested.
var defaultExtensions = map[string]bool{
	".md": true, ".txt": true, ".go": true, ".py": true, ".js": true,
	".ts": true, ".json": true, ".yaml": true, ".yml": true,
}

// AuditDirectory walks root recursively, matches files to stored
// points by normalized file_path, and classifies each as
// matched-equal, matched-mismatched, or missing-from-store. When root
// is empty, only the stored-point quality statistics are computed.
func (s *Service) AuditDirectory(ctx context.Context, root string, category string) (DirectoryReport, error) {
	if root == "" {
		return s.auditStoredOnly(ctx, category)
	}

	byPath, err := s.storedByPath(ctx, category)
	if err != nil {
		return DirectoryReport{}, err
	}

	var report DirectoryReport
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !defaultExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		report.TotalFiles++
		raw, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		p, found := byPath[rel]
		switch {
		case !found:
			report.Missing++
			report.Files = append(report.Files, FileResult{Path: rel, Class: FileMissingFromStore})
		case fingerprint.ContentHash(string(raw)) != storedHash(p):
			report.Mismatched++
			report.Files = append(report.Files, FileResult{Path: rel, Class: FileMatchedMismatch})
		default:
			report.Files = append(report.Files, FileResult{Path: rel, Class: FileMatchedEqual})
		}
		return nil
	})
	if walkErr != nil {
		return DirectoryReport{}, walkErr
	}

	for _, p := range byPath {
		report.QualityReports = append(report.QualityReports, verifyPoint(p))
	}
	sortFiles(report.Files)
	if report.TotalFiles > 0 {
		report.IntegrityScore = float64(report.TotalFiles-report.Missing-report.Mismatched) / float64(report.TotalFiles)
	}
	return report, nil
}

func (s *Service) auditStoredOnly(ctx context.Context, category string) (DirectoryReport, error) {
	byPath, err := s.storedByPath(ctx, category)
	if err != nil {
		return DirectoryReport{}, err
	}
	var report DirectoryReport
	passed := 0
	for _, p := range byPath {
		r := verifyPoint(p)
		report.QualityReports = append(report.QualityReports, r)
		if r.Status == "pass" {
			passed++
		}
	}
	if len(byPath) > 0 {
		report.IntegrityScore = float64(passed) / float64(len(byPath))
	}
	return report, nil
}

func (s *Service) storedByPath(ctx context.Context, category string) (map[string]vectorstore.Point, error) {
	points, err := s.query.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]vectorstore.Point, len(points))
	for _, p := range points {
		if category != "" {
			c, _ := p.Value("meta.category")
			if cs, _ := c.(string); cs != category {
				continue
			}
		}
		fp, ok := p.Value("meta.file_path")
		if !ok {
			continue
		}
		path, _ := fp.(string)
		if path == "" {
			continue
		}
		out[path] = p
	}
	return out, nil
}

func storedHash(p vectorstore.Point) string {
	if v, ok := p.Value("meta.content_hash"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if v, ok := p.Value("meta.hash_content"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func verifyPoint(p vectorstore.Point) Report {
	meta := map[string]any{}
	for _, k := range []string{"doc_id", "category", "content_hash", "hash_content", "status", "file_path"} {
		if v, ok := p.Value("meta." + k); ok {
			meta[k] = v
		}
	}
	content, _ := p.Value("content")
	text, _ := content.(string)
	return VerifyDocument(text, meta)
}

// sortFiles orders a DirectoryReport's Files by path for deterministic
// output across runs (map iteration over stored points is otherwise
// unordered).
func sortFiles(files []FileResult) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
