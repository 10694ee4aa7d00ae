// Command ragpipe-mcp exposes the ingestion pipeline's operations as
// an MCP stdio server: a stdio transport, one mcp.Server, tools
// grouped into logical registration functions, and signal-driven
// shutdown.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcp "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport/stdio"

	"github.com/haystack-mcp/ragpipe/internal/config"
	"github.com/haystack-mcp/ragpipe/internal/wiring"
)

func main() {
	// log, not internal/logging: this process's stdout carries the MCP
	// JSON-RPC stream, and the standard logger's default output is
	// stderr, which keeps the two apart.
	log.Println("Starting ragpipe MCP server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	app, err := wiring.New(cfg)
	if err != nil {
		log.Fatalf("failed to wire pipeline: %v", err)
	}
	if err := app.EnsureCollections(context.Background()); err != nil {
		log.Printf("warning: could not ensure collections: %v", err)
	}

	srv := &server{app: app}

	serverTransport := stdio.NewStdioServerTransport()
	mcpServer := mcp.NewServer(serverTransport)

	registerAllTools(mcpServer, srv)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := mcpServer.Serve(); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		log.Fatalf("MCP server error: %v", err)
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down...", sig)
	}

	log.Println("ragpipe MCP server stopped")
}

// registerAllTools groups tools by concern, each group in its own
// function, so the registration list doesn't become one unreadable
// block.
func registerAllTools(mcpServer *mcp.Server, s *server) {
	registerIngestTools(mcpServer, s)
	registerLifecycleTools(mcpServer, s)
	registerBulkTools(mcpServer, s)
	registerMaintenanceTools(mcpServer, s)
	log.Println("all ragpipe MCP tools registered")
}

type toolSpec struct {
	name        string
	description string
	handler     interface{}
}

func registerTools(mcpServer *mcp.Server, tools []toolSpec) {
	for _, t := range tools {
		if err := mcpServer.RegisterTool(t.name, t.description, t.handler); err != nil {
			log.Printf("error registering %s tool: %v", t.name, err)
		}
	}
}

func registerIngestTools(mcpServer *mcp.Server, s *server) {
	registerTools(mcpServer, []toolSpec{
		{"ingest_document", "Ingests a document, deduplicating against existing records before writing", func(args IngestArgs) (*mcp.ToolResponse, error) {
			res, err := s.ingestDocument(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"search", "Embeds a query and returns the top matching documents", func(args SearchArgs) (*mcp.ToolResponse, error) {
			res, err := s.search(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"lookup_by_doc_id", "Finds every stored point for a given doc_id", func(args LookupByDocIDArgs) (*mcp.ToolResponse, error) {
			res, err := s.lookupByDocID(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"incremental_update", "Re-chunks a document's new content and only re-embeds changed or new chunks", func(args IncrementalUpdateArgs) (*mcp.ToolResponse, error) {
			res, err := s.incrementalUpdate(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
	})
}

func registerLifecycleTools(mcpServer *mcp.Server, s *server) {
	registerTools(mcpServer, []toolSpec{
		{"update_content", "Rewrites a point's content, recomputing its hash and embedding", func(args UpdateContentArgs) (*mcp.ToolResponse, error) {
			res, err := s.updateContent(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"update_metadata", "Patches a point's metadata in place, preserving its vector", func(args UpdateMetadataArgs) (*mcp.ToolResponse, error) {
			res, err := s.updateMetadata(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"deprecate", "Marks a point deprecated", func(args DeprecateArgs) (*mcp.ToolResponse, error) {
			res, err := s.deprecate(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"get_version_history", "Lists every stored version of a document, newest last", func(args VersionHistoryArgs) (*mcp.ToolResponse, error) {
			res, err := s.versionHistory(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
	})
}

func registerBulkTools(mcpServer *mcp.Server, s *server) {
	registerTools(mcpServer, []toolSpec{
		{"delete_by_filter", "Deletes every point matching a single field/value filter", func(args DeleteByFilterArgs) (*mcp.ToolResponse, error) {
			res, err := s.deleteByFilter(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"update_metadata_by_filter", "Patches metadata on every point matching a filter", func(args UpdateMetadataByFilterArgs) (*mcp.ToolResponse, error) {
			res, err := s.updateMetadataByFilter(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"import_records", "Imports documents by doc_id, applying a duplicate policy (skip, update, error)", func(args ImportRecordsArgs) (*mcp.ToolResponse, error) {
			res, err := s.importRecords(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
	})
}

func registerMaintenanceTools(mcpServer *mcp.Server, s *server) {
	registerTools(mcpServer, []toolSpec{
		{"verify_document", "Scores a document against the quality rubric", func(args VerifyDocumentArgs) (*mcp.ToolResponse, error) {
			res, err := s.verifyDocument(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"audit_directory", "Reconciles a directory on disk against stored points", func(args AuditDirectoryArgs) (*mcp.ToolResponse, error) {
			res, err := s.auditDirectory(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"backup", "Writes a timestamped backup of the documentation (and optionally code) collection", func(args BackupArgs) (*mcp.ToolResponse, error) {
			res, err := s.backup(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
		{"restore", "Restores a collection from a backup directory after verifying its checksums", func(args RestoreArgs) (*mcp.ToolResponse, error) {
			res, err := s.restore(args)
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponse(mcp.NewTextContent(res)), nil
		}},
	})
}
