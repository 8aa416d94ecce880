package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	APIToken    string  `yaml:"api_token"`
	Model       string  `yaml:"model"`
	EmbedModel  string  `yaml:"embed_model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type RetrievalConfig struct {
	TopK         int     `yaml:"top_k"`
	MinScore     float64 `yaml:"min_score"`
	EmbeddingDim int     `yaml:"embedding_dim"`
}

type PromptConfig struct {
	MaxChars int `yaml:"max_chars"`
}

type GenerationConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	BaseBackoffMs     int     `yaml:"base_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms"`
	JitterMs          int     `yaml:"jitter_ms"`
	OverallDeadlineMs int     `yaml:"overall_deadline_ms"`
	RateLimit         float64 `yaml:"rate_limit"`
}

type CorpusConfig struct {
	Dir            string `yaml:"dir"`
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	MinChunkLength int    `yaml:"min_chunk_length"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Generation GenerationConfig `yaml:"generation"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/advisor/config.yaml"),
			"/etc/advisor/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 800
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.3
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 3
	}
	if config.Retrieval.MinScore == 0 {
		config.Retrieval.MinScore = 0.3
	}
	if config.Retrieval.EmbeddingDim == 0 {
		config.Retrieval.EmbeddingDim = 768
	}

	if config.Prompt.MaxChars == 0 {
		config.Prompt.MaxChars = 6000
	}

	if config.Generation.MaxAttempts == 0 {
		config.Generation.MaxAttempts = 3
	}
	if config.Generation.BaseBackoffMs == 0 {
		config.Generation.BaseBackoffMs = 1000
	}
	if config.Generation.MaxBackoffMs == 0 {
		config.Generation.MaxBackoffMs = 8000
	}
	if config.Generation.OverallDeadlineMs == 0 {
		config.Generation.OverallDeadlineMs = 60000
	}

	if config.Corpus.ChunkSize == 0 {
		config.Corpus.ChunkSize = 1000
	}
	if config.Corpus.ChunkOverlap == 0 {
		config.Corpus.ChunkOverlap = 200
	}
	if config.Corpus.MinChunkLength == 0 {
		config.Corpus.MinChunkLength = 100
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "chunks"
	}

	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if token := os.Getenv("LLM_API_TOKEN"); token != "" {
		config.LLM.APIToken = token
	}
	if dir := os.Getenv("CORPUS_DIR"); dir != "" {
		config.Corpus.Dir = dir
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
