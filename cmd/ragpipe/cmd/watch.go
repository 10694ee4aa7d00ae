package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/haystack-mcp/ragpipe/internal/ingest"
	"github.com/haystack-mcp/ragpipe/internal/logging"
	"github.com/haystack-mcp/ragpipe/internal/metadata"
)

// newWatchCmd builds an fsnotify-based directory watcher that
// re-ingests a file on every write/create event. No polling fallback
// and no gitignore matcher: this command only ever watches a single
// directory the caller controls and has no notion of a project ignore
// file. A plain per-path timer debounces the burst of events most
// editors fire on a single save.
func newWatchCmd() *cobra.Command {
	var category string
	var code bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and re-ingest files as they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], category, code, debounce)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category to attach to ingested files")
	cmd.Flags().BoolVar(&code, "code", false, "Ingest into the code collection instead of documentation")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "Quiet period before re-ingesting a changed file")
	return cmd
}

func runWatch(cmd *cobra.Command, root string, category string, code bool, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}

	ct := ingest.ContentDoc
	if code {
		ct = ingest.ContentCode
	}

	timers := map[string]*time.Timer{}
	ingestPath := func(path string) {
		raw, err := os.ReadFile(path)
		if err != nil {
			logging.Log.WithError(err).WithField("path", path).Warn("watch: read failed")
			return
		}
		res, err := app.Ingest.Store(cmd.Context(), ingest.Input{
			Content: string(raw), ContentType: ct,
			Category: metadata.Category(category), FilePath: path,
		})
		if err != nil {
			logging.WithKind(err).WithField("path", path).Warn("watch: ingest failed")
			return
		}
		logging.Log.WithField("path", path).WithField("status", res.Status).WithField("action", res.Action).Info("watch: ingested")
	}

	fmt.Println("watching", root)
	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := ev.Name
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(debounce, func() { ingestPath(path) })
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.Log.WithError(err).Warn("watch: fsnotify error")
		}
	}
}
