// Package config loads ragpipe's runtime configuration from the
// environment: godotenv.Overload() followed by individual os.Getenv
// reads with strings.TrimSpace, falling back to documented defaults
// rather than failing at parse time.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/haystack-mcp/ragpipe/internal/pipeline"
)

// EmbeddingConfig describes one of the two embedding models the
// pipeline drives (documentation and code).
type EmbeddingConfig struct {
	Model     string
	Dimension int
	BaseURL   string
	Path      string
	APIKey    string
	Timeout   time.Duration
}

// Config is ragpipe's fully resolved runtime configuration.
type Config struct {
	VectorStoreURL    string
	VectorStoreAPIKey string

	DocCollection  string
	CodeCollection string

	DocEmbedding  EmbeddingConfig
	CodeEmbedding EmbeddingConfig

	LogLevel string

	BackupDir string
}

const (
	defaultDocCollection  = "haystack_mcp"
	defaultCodeCollection = "haystack_mcp_code"
	defaultDocDimension   = 384
	defaultCodeDimension  = 768
	defaultDocModel       = "text-embedding-3-small"
	defaultCodeModel      = "code-embedding-001"
	defaultLogLevel       = "info"
	defaultBackupDir      = "./backups"
)

// Load reads configuration from the environment. It calls
// godotenv.Overload() first so a local .env deterministically
// controls development runs.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		DocCollection:  defaultCollection("DOC_COLLECTION", defaultDocCollection),
		CodeCollection: defaultCollection("CODE_COLLECTION", defaultCodeCollection),
		LogLevel:       defaultCollection("LOG_LEVEL", defaultLogLevel),
		BackupDir:      defaultCollection("BACKUP_DIR", defaultBackupDir),
	}

	cfg.VectorStoreURL = strings.TrimSpace(os.Getenv("VECTOR_STORE_URL"))
	if cfg.VectorStoreURL == "" {
		return Config{}, pipeline.New(pipeline.ErrInvalidInput, "VECTOR_STORE_URL is required")
	}
	cfg.VectorStoreAPIKey = strings.TrimSpace(os.Getenv("VECTOR_STORE_API_KEY"))
	if cfg.VectorStoreAPIKey == "" {
		return Config{}, pipeline.New(pipeline.ErrInvalidInput, "VECTOR_STORE_API_KEY is required")
	}

	cfg.DocEmbedding = EmbeddingConfig{
		Model:     defaultCollection("DOC_EMBEDDING_MODEL", defaultDocModel),
		Dimension: defaultInt("DOC_EMBEDDING_DIM", defaultDocDimension),
		BaseURL:   strings.TrimSpace(os.Getenv("DOC_EMBEDDING_URL")),
		Path:      defaultCollection("DOC_EMBEDDING_PATH", "/v1/embeddings"),
		APIKey:    strings.TrimSpace(os.Getenv("DOC_EMBEDDING_API_KEY")),
		Timeout:   30 * time.Second,
	}
	cfg.CodeEmbedding = EmbeddingConfig{
		Model:     defaultCollection("CODE_EMBEDDING_MODEL", defaultCodeModel),
		Dimension: defaultInt("CODE_EMBEDDING_DIM", defaultCodeDimension),
		BaseURL:   strings.TrimSpace(os.Getenv("CODE_EMBEDDING_URL")),
		Path:      defaultCollection("CODE_EMBEDDING_PATH", "/v1/embeddings"),
		APIKey:    strings.TrimSpace(os.Getenv("CODE_EMBEDDING_API_KEY")),
		Timeout:   30 * time.Second,
	}

	return cfg, nil
}

func defaultCollection(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func defaultInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
