package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	StoreChromem  = "chromem"
	StorePGVector = "pgvector"

	DriverPG       = "pgdriver"
	DriverPostgres = "postgres"
)

type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Key               string  `yaml:"key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type RAGConfig struct {
	TopK           int    `yaml:"top_k"`
	IncludeScores  bool   `yaml:"include_scores"`
	Store          string `yaml:"store"`
	StoreDir       string `yaml:"store_dir"`
	InMemory       bool   `yaml:"in_memory"`
	Compress       bool   `yaml:"compress"`
	EncryptionKey  string `yaml:"encryption_key"`
	CatalogPath    string `yaml:"catalog_path"`
	MaxChunkChars  int    `yaml:"max_chunk_chars"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	PromptTemplate string `yaml:"prompt_template"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

type Config struct {
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
}

// LoadConfig reads the YAML file at path, expanding ${VAR} references from the
// environment. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns a configuration for a local Ollama install and a chromem store.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	applyLLMDefaults(&cfg.EmbedLLM, "mxbai-embed-large")
	applyLLMDefaults(&cfg.ChatLLM, "tinyllama")

	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.Store == "" {
		cfg.RAG.Store = StoreChromem
	}
	if cfg.RAG.StoreDir == "" {
		cfg.RAG.StoreDir = "./vectorstores"
	}
	if cfg.RAG.CatalogPath == "" {
		cfg.RAG.CatalogPath = cfg.RAG.StoreDir + "/catalog.db"
	}
	if cfg.RAG.MaxChunkChars < 0 {
		cfg.RAG.MaxChunkChars = 0
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPG
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8501"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 10
	}
}

func applyLLMDefaults(c *LLMConfig, model string) {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.BaseURL == "" && c.Provider == ProviderOllama {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
}
