package main

import (
	"context"

	"github.com/haystack-mcp/ragpipe/internal/audit"
	"github.com/haystack-mcp/ragpipe/internal/backup"
	"github.com/haystack-mcp/ragpipe/internal/filterdsl"
	"github.com/haystack-mcp/ragpipe/internal/incremental"
	"github.com/haystack-mcp/ragpipe/internal/metadata"
	"github.com/haystack-mcp/ragpipe/internal/wiring"
)

// server bundles the wired App every tool handler reaches into.
type server struct {
	app *wiring.App
}

func incrementalOptions(args IncrementalUpdateArgs) incremental.Options {
	return incremental.Options{
		Category: metadata.Category(args.Category),
		FilePath: args.FilePath,
		Repo:     args.Repo,
	}
}

func verifyDocumentReport(content string, meta map[string]any) audit.Report {
	return audit.VerifyDocument(content, meta)
}

func backupRequest(app *wiring.App, args BackupArgs) backup.Request {
	req := backup.Request{
		DocCollection:     app.Config.DocCollection,
		DocBulk:           app.DocBulk,
		IncludeEmbeddings: args.IncludeEmbeddings,
	}
	if args.Category != "" {
		f := filterdsl.EqNode("meta.category", args.Category)
		req.Filter = &f
	}
	if args.IncludeCode {
		req.CodeCollection = app.Config.CodeCollection
		req.CodeBulk = app.CodeBulk
	}
	return req
}

func restoreRequest(app *wiring.App, args RestoreArgs) backup.RestoreRequest {
	req := backup.RestoreRequest{
		Dir:     args.Dir,
		DocBulk: app.DocBulk,
		Embed: func(content string) ([]float32, error) {
			vecs, err := app.DocEmbedder.EmbedBatch(context.Background(), []string{content})
			if err != nil {
				return nil, err
			}
			return vecs[0], nil
		},
	}
	if args.IncludeCode {
		req.CodeBulk = app.CodeBulk
		req.CodeEmbed = func(content string) ([]float32, error) {
			vecs, err := app.CodeEmbedder.EmbedBatch(context.Background(), []string{content})
			if err != nil {
				return nil, err
			}
			return vecs[0], nil
		}
	}
	return req
}
