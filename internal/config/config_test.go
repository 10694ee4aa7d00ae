package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VECTOR_STORE_URL", "VECTOR_STORE_API_KEY", "DOC_COLLECTION", "CODE_COLLECTION",
		"DOC_EMBEDDING_MODEL", "DOC_EMBEDDING_DIM", "CODE_EMBEDDING_MODEL", "CODE_EMBEDDING_DIM",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadRequiresVectorStoreSettings(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when VECTOR_STORE_URL/API_KEY are unset")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("VECTOR_STORE_URL", "http://localhost:6333")
	t.Setenv("VECTOR_STORE_API_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DocCollection != defaultDocCollection || cfg.CodeCollection != defaultCodeCollection {
		t.Fatalf("expected default collections, got %+v", cfg)
	}
	if cfg.DocEmbedding.Dimension != defaultDocDimension || cfg.CodeEmbedding.Dimension != defaultCodeDimension {
		t.Fatalf("expected default dimensions, got %+v", cfg)
	}
}

func TestLoadHonorsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VECTOR_STORE_URL", "http://localhost:6333")
	t.Setenv("VECTOR_STORE_API_KEY", "secret")
	t.Setenv("DOC_COLLECTION", "custom_docs")
	t.Setenv("CODE_EMBEDDING_DIM", "1024")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DocCollection != "custom_docs" {
		t.Fatalf("expected overridden doc collection, got %s", cfg.DocCollection)
	}
	if cfg.CodeEmbedding.Dimension != 1024 {
		t.Fatalf("expected overridden code dimension, got %d", cfg.CodeEmbedding.Dimension)
	}
}
