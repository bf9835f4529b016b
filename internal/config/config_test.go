package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.RAG.ChunkWords != 150 {
		t.Errorf("chunk_words = %d, want 150", cfg.RAG.ChunkWords)
	}
	if cfg.Store.Backend != "chromem" {
		t.Errorf("backend = %q, want chromem", cfg.Store.Backend)
	}
	if !cfg.Generation.Retry.Enabled || cfg.Generation.Retry.MaxAttempts != 3 {
		t.Errorf("retry defaults wrong: %+v", cfg.Generation.Retry)
	}
	if cfg.Generation.Retry.DefaultWaitSecs != 60 {
		t.Errorf("default wait = %d, want 60", cfg.Generation.Retry.DefaultWaitSecs)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("server:\n  port: 9000\nstore:\n  backend: postgres\nrag:\n  chunk_words: 80\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAGSERVER_STORE_BACKEND", "faiss")
	t.Setenv("RAGSERVER_CHUNK_WORDS", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000 from file", cfg.Server.Port)
	}
	if cfg.Store.Backend != "faiss" {
		t.Errorf("backend = %q, want env override faiss", cfg.Store.Backend)
	}
	if cfg.RAG.ChunkWords != 42 {
		t.Errorf("chunk_words = %d, want env override 42", cfg.RAG.ChunkWords)
	}
	// Untouched sections keep their defaults.
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("embedding model = %q", cfg.Embedding.Model)
	}
}
