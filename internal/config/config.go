package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	UploadDir string `yaml:"upload_dir"`
}

// LLMConfig configures one remote provider endpoint (embedding or generation).
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

// RetryConfig bounds the generation gateway's rate-limit retry loop.
type RetryConfig struct {
	Enabled         bool `yaml:"enabled"`
	MaxAttempts     int  `yaml:"max_attempts"`
	DefaultWaitSecs int  `yaml:"default_wait_secs"`
}

// GenerationConfig is the generation provider plus its retry policy.
type GenerationConfig struct {
	LLMConfig `yaml:",inline"`
	Retry     RetryConfig `yaml:"retry"`
}

// PostgresConfig contains connection details for the pgvector-backed store.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

// FaissConfig locates the external index helper process and its data dir.
type FaissConfig struct {
	Python string `yaml:"python"`
	Script string `yaml:"script"`
	Dir    string `yaml:"dir"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend   string         `yaml:"backend"`
	Dimension int            `yaml:"dimension"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Faiss     FaissConfig    `yaml:"faiss"`
}

// RAGConfig holds chunking defaults.
type RAGConfig struct {
	ChunkWords int `yaml:"chunk_words"`
}

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Embedding  LLMConfig        `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Store      StoreConfig      `yaml:"store"`
	RAG        RAGConfig        `yaml:"rag"`
}

// Load reads the YAML config at path, falls back to defaults if the file is
// missing, and applies RAGSERVER_* environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, UploadDir: "./uploads"},
		Embedding: LLMConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "text-embedding-3-small",
		},
		Generation: GenerationConfig{
			LLMConfig: LLMConfig{
				Provider: "openai",
				BaseURL:  "https://api.openai.com/v1",
				Model:    "gpt-4o-mini",
			},
			Retry: RetryConfig{Enabled: true, MaxAttempts: 3, DefaultWaitSecs: 60},
		},
		Store: StoreConfig{
			Backend:   "chromem",
			Dimension: 768,
			Faiss: FaissConfig{
				Python: "python3",
				Script: "./scripts/embeddings_faiss.py",
				Dir:    "./faissdb",
			},
		},
		RAG: RAGConfig{ChunkWords: 150},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "./uploads"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.Retry.MaxAttempts == 0 {
		cfg.Generation.Retry.MaxAttempts = 3
	}
	if cfg.Generation.Retry.DefaultWaitSecs == 0 {
		cfg.Generation.Retry.DefaultWaitSecs = 60
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "chromem"
	}
	if cfg.Store.Dimension == 0 {
		cfg.Store.Dimension = 768
	}
	if cfg.Store.Faiss.Python == "" {
		cfg.Store.Faiss.Python = "python3"
	}
	if cfg.RAG.ChunkWords == 0 {
		cfg.RAG.ChunkWords = 150
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RAGSERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("RAGSERVER_UPLOAD_DIR"); v != "" {
		cfg.Server.UploadDir = v
	}
	if v := os.Getenv("RAGSERVER_EMBEDDING_KEY"); v != "" {
		cfg.Embedding.Key = v
	}
	if v := os.Getenv("RAGSERVER_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("RAGSERVER_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("RAGSERVER_GENERATION_KEY"); v != "" {
		cfg.Generation.Key = v
	}
	if v := os.Getenv("RAGSERVER_GENERATION_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("RAGSERVER_GENERATION_BASE_URL"); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := os.Getenv("RAGSERVER_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("RAGSERVER_POSTGRES_DSN"); v != "" {
		cfg.Store.Postgres.DSN = v
	}
	if v := os.Getenv("RAGSERVER_CHUNK_WORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RAG.ChunkWords = n
		}
	}
}
