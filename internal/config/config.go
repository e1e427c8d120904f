package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"thinkr-chatbot/internal/service"
)

// Vector store backends.
const (
	BackendLocal  = "local"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	Temperature   float64
	MaxTokens     int

	EmbeddingModel     string
	EmbeddingBaseURL   string
	EmbeddingDim       int
	EmbeddingBatchSize int

	VectorDBPath  string
	VectorBackend string
	QdrantURL     string
	Collection    string
	DBPath        string
	PDFDir        string

	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	SimilarityThreshold float64
	HistoryWindow       int

	LLMMaxRetries        int
	LLMRequestsPerMinute int
	LLMTimeout           time.Duration

	SessionID string
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// If CONFIG_FILE names a YAML file, its keys (same names as the environment variables)
// fill in anything the environment leaves unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	get := func(key, defaultValue string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		if value, ok := file[key]; ok && value != "" {
			return value
		}
		return defaultValue
	}

	openAIBaseURL := strings.TrimRight(get("OPENAI_BASE_URL", "https://api.openai.com"), "/")

	cfg := &Config{
		OpenAIAPIKey:     get("OPENAI_API_KEY", ""),
		OpenAIModel:      get("OPENAI_MODEL", "gpt-4"),
		OpenAIBaseURL:    openAIBaseURL,
		EmbeddingModel:   get("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingBaseURL: strings.TrimRight(get("EMBEDDING_BASE_URL", openAIBaseURL), "/"),
		VectorDBPath:     get("VECTOR_DB_PATH", "./data/vector_db"),
		VectorBackend:    strings.ToLower(get("VECTOR_BACKEND", BackendLocal)),
		QdrantURL:        get("QDRANT_URL", "http://localhost:6333"),
		Collection:       get("COLLECTION", "thinkr"),
		DBPath:           get("DB_PATH", "./data/thinkr.db"),
		PDFDir:           get("PDF_DIR", "./data/pdfs"),
		SessionID:        get("SESSION_ID", "default"),
		APIPort:          get("API_PORT", "8000"),
		LogFormat:        strings.ToLower(get("LOG_FORMAT", "text")),
	}

	ints := []struct {
		key    string
		def    string
		dst    *int
		minVal int
	}{
		{"MAX_TOKENS", "1000", &cfg.MaxTokens, 1},
		{"EMBEDDING_DIM", "1536", &cfg.EmbeddingDim, 1},
		{"EMBEDDING_BATCH_SIZE", "64", &cfg.EmbeddingBatchSize, 1},
		{"CHUNK_SIZE", "1000", &cfg.ChunkSize, 1},
		{"CHUNK_OVERLAP", "200", &cfg.ChunkOverlap, 0},
		{"TOP_K", "5", &cfg.TopK, 1},
		{"HISTORY_WINDOW", "3", &cfg.HistoryWindow, 0},
		{"LLM_MAX_RETRIES", "2", &cfg.LLMMaxRetries, 0},
		{"LLM_REQUESTS_PER_MINUTE", "60", &cfg.LLMRequestsPerMinute, 0},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(get(f.key, f.def))
		if err != nil {
			return nil, fmt.Errorf("%s must be a valid integer: %w", f.key, err)
		}
		if v < f.minVal {
			return nil, fmt.Errorf("%s must be at least %d", f.key, f.minVal)
		}
		*f.dst = v
	}

	cfg.Temperature, err = strconv.ParseFloat(get("TEMPERATURE", "0.7"), 64)
	if err != nil {
		return nil, fmt.Errorf("TEMPERATURE must be a valid number: %w", err)
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("TEMPERATURE must be between 0 and 2")
	}

	cfg.SimilarityThreshold, err = strconv.ParseFloat(get("SIMILARITY_THRESHOLD", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be a valid number: %w", err)
	}
	if cfg.SimilarityThreshold < -1 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be between -1 and 1")
	}

	cfg.LLMTimeout, err = time.ParseDuration(get("LLM_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("LLM_TIMEOUT must be a valid duration: %w", err)
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}

	switch cfg.VectorBackend {
	case BackendLocal, BackendQdrant:
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendLocal, BackendQdrant, cfg.VectorBackend)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	if cfg.Collection == "" {
		return nil, fmt.Errorf("COLLECTION is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.VectorDBPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector db directory: %w", err)
	}

	return cfg, nil
}

// RequireAPIKey returns service.ErrMissingCredential when no OpenAI API key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set: %w", service.ErrMissingCredential)
	}
	return nil
}

// loadFile reads a flat YAML file of KEY: value pairs. An empty path yields no values.
func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}
