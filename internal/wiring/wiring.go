// Package wiring builds the full set of pipeline services from a
// loaded config.Config, shared by both cmd/ragpipe and
// cmd/ragpipe-mcp so the two entrypoints never diverge in how they
// construct the store, embedders, or component graph.
package wiring

import (
	"context"

	"github.com/haystack-mcp/ragpipe/internal/audit"
	"github.com/haystack-mcp/ragpipe/internal/backup"
	"github.com/haystack-mcp/ragpipe/internal/bulk"
	"github.com/haystack-mcp/ragpipe/internal/config"
	"github.com/haystack-mcp/ragpipe/internal/dedupe"
	"github.com/haystack-mcp/ragpipe/internal/embedder"
	"github.com/haystack-mcp/ragpipe/internal/incremental"
	"github.com/haystack-mcp/ragpipe/internal/ingest"
	"github.com/haystack-mcp/ragpipe/internal/logging"
	"github.com/haystack-mcp/ragpipe/internal/pipeline"
	"github.com/haystack-mcp/ragpipe/internal/query"
	"github.com/haystack-mcp/ragpipe/internal/update"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore"
	"github.com/haystack-mcp/ragpipe/internal/vectorstore/qdrant"
)

// App holds every service a caller (CLI command or MCP tool handler)
// needs, already wired against one store and one pair of collections.
type App struct {
	Config config.Config
	Store  vectorstore.Adapter

	DocEmbedder  embedder.Embedder
	CodeEmbedder embedder.Embedder

	DocQuery  *query.Service
	CodeQuery *query.Service

	DocUpdate  *update.Service
	CodeUpdate *update.Service

	DocBulk  *bulk.Service
	CodeBulk *bulk.Service

	DocIncremental  *incremental.Updater
	CodeIncremental *incremental.Updater

	DocAudit  *audit.Service
	CodeAudit *audit.Service

	Ingest *ingest.Engine
	Backup *backup.Service

	ctx *pipeline.Context
}

// New builds an App from cfg. The vector-store adapter is always a
// live Qdrant client; callers that want another adapter (such as the
// in-memory store) use NewWithStore.
func New(cfg config.Config) (*App, error) {
	store, err := qdrant.New(cfg.VectorStoreURL, cfg.VectorStoreAPIKey)
	if err != nil {
		return nil, err
	}
	return build(cfg, store)
}

// NewWithStore builds an App against an already-constructed Adapter
// (the in-memory adapter in tests, or a pre-opened Qdrant client).
func NewWithStore(cfg config.Config, store vectorstore.Adapter) (*App, error) {
	return build(cfg, store)
}

func build(cfg config.Config, store vectorstore.Adapter) (*App, error) {
	pctx := pipeline.NewContext(pipeline.WithLogger(logging.NewPipelineLogger()))

	docEmbed := embedder.NewClient(cfg.DocEmbedding)
	codeEmbed := embedder.NewClient(cfg.CodeEmbedding)

	docQuery := query.New(store, cfg.DocCollection, docEmbed, pctx)
	codeQuery := query.New(store, cfg.CodeCollection, codeEmbed, pctx)

	docUpdate := update.New(store, cfg.DocCollection, pctx)
	codeUpdate := update.New(store, cfg.CodeCollection, pctx)

	docBulk := bulk.New(store, cfg.DocCollection, docEmbed, pctx)
	codeBulk := bulk.New(store, cfg.CodeCollection, codeEmbed, pctx)

	docIncremental := incremental.New(store, cfg.DocCollection, docEmbed, pctx)
	codeIncremental := incremental.New(store, cfg.CodeCollection, codeEmbed, pctx)

	docAudit := audit.New(docQuery)
	codeAudit := audit.New(codeQuery)

	eng := ingest.New(store, cfg.DocCollection, cfg.CodeCollection, docEmbed, codeEmbed, pctx)
	eng.Updater = docUpdate
	eng.CodeUpdater = codeUpdate
	eng.SemanticIndex = dedupe.NewSemanticIndex(0)

	bk := backup.New(cfg.BackupDir)

	return &App{
		Config: cfg, Store: store,
		DocEmbedder: docEmbed, CodeEmbedder: codeEmbed,
		DocQuery: docQuery, CodeQuery: codeQuery,
		DocUpdate: docUpdate, CodeUpdate: codeUpdate,
		DocBulk: docBulk, CodeBulk: codeBulk,
		DocIncremental: docIncremental, CodeIncremental: codeIncremental,
		DocAudit: docAudit, CodeAudit: codeAudit,
		Ingest: eng, Backup: bk, ctx: pctx,
	}, nil
}

// EnsureCollections asserts both collections exist with the
// appropriate vector size and payload indexes. Safe to call on every
// startup; a second call against an already-created collection is a
// no-op on the adapter side.
func (a *App) EnsureCollections(ctx context.Context) error {
	if err := a.Store.EnsureCollection(ctx, a.Config.DocCollection, a.DocEmbedder.Dimension()); err != nil {
		return err
	}
	if err := a.Store.EnsurePayloadIndexes(ctx, a.Config.DocCollection, qdrant.RequiredIndexFields); err != nil {
		return err
	}
	if err := a.Store.EnsureCollection(ctx, a.Config.CodeCollection, a.CodeEmbedder.Dimension()); err != nil {
		return err
	}
	return a.Store.EnsurePayloadIndexes(ctx, a.Config.CodeCollection, qdrant.RequiredIndexFields)
}
