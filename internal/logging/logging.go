// Package logging provides the process-wide structured logger and the
// adapter that exposes it through the pipeline.Logger seam every
// service constructor accepts. Entries are JSON, stamped with the
// emitting package and file:line, written to stdout and (when
// writable) a log file, at LOG_LEVEL-driven verbosity. Errors carrying
// a pipeline error kind are tagged with it so operators can filter by
// taxonomy rather than by message text.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

// Log is the package-wide logger configured with JSON output.
var Log = logrus.New()

type callerHook struct{}

func (callerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (callerHook) Fire(e *logrus.Entry) error {
	if e.Caller == nil {
		return nil
	}
	e.Data["package"] = packageFromFunc(e.Caller.Function)
	e.Data["file"] = fmt.Sprintf("%s:%d", filepath.Base(e.Caller.File), e.Caller.Line)
	return nil
}

func packageFromFunc(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.Index(fn, "."); i >= 0 {
		return fn[:i]
	}
	return fn
}

func init() {
	Log.SetReportCaller(true)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		// The hook above carries the caller fields; blank out the
		// formatter's own caller rendering so they aren't emitted
		// twice under different keys.
		CallerPrettyfier: func(*runtime.Frame) (string, string) { return "", "" },
	})
	Log.AddHook(callerHook{})

	logPath := os.Getenv("LOG_PATH")
	if logPath == "" {
		logPath = "ragpipe.log"
	}
	if logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		Log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	} else {
		Log.SetOutput(os.Stdout)
	}

	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	if lvl, err := logrus.ParseLevel(levelStr); err == nil {
		Log.SetLevel(lvl)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}

// WithKind attaches err to a log entry along with its pipeline error
// kind, when it carries one.
func WithKind(err error) *logrus.Entry {
	e := Log.WithError(err)
	if kind, ok := pipeline.KindOf(err); ok {
		e = e.WithField("kind", string(kind))
	}
	return e
}

// PipelineLogger adapts Log to the pipeline.Logger interface the
// service constructors accept, so ingest/update/bulk/incremental
// decisions land in the same stream as command-level logs.
type PipelineLogger struct {
	log *logrus.Logger
}

// NewPipelineLogger returns the adapter over the process logger.
func NewPipelineLogger() *PipelineLogger {
	return &PipelineLogger{log: Log}
}

func (p *PipelineLogger) Info(msg string, fields map[string]any)  { p.entry(fields).Info(msg) }
func (p *PipelineLogger) Error(msg string, fields map[string]any) { p.entry(fields).Error(msg) }
func (p *PipelineLogger) Debug(msg string, fields map[string]any) { p.entry(fields).Debug(msg) }

func (p *PipelineLogger) entry(fields map[string]any) *logrus.Entry {
	e := logrus.NewEntry(p.log)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			e = e.WithField(k, err.Error())
			if kind, kok := pipeline.KindOf(err); kok {
				e = e.WithField("kind", string(kind))
			}
			continue
		}
		e = e.WithField(k, v)
	}
	return e
}
