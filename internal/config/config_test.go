package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"thinkr-chatbot/internal/service"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var envVars = []string{
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "TEMPERATURE", "MAX_TOKENS",
	"EMBEDDING_MODEL", "EMBEDDING_BASE_URL", "EMBEDDING_DIM", "EMBEDDING_BATCH_SIZE",
	"VECTOR_DB_PATH", "VECTOR_BACKEND", "QDRANT_URL", "COLLECTION", "DB_PATH", "PDF_DIR",
	"CHUNK_SIZE", "CHUNK_OVERLAP", "TOP_K", "SIMILARITY_THRESHOLD", "HISTORY_WINDOW",
	"LLM_MAX_RETRIES", "LLM_REQUESTS_PER_MINUTE", "LLM_TIMEOUT",
	"SESSION_ID", "API_PORT", "LOG_LEVEL", "LOG_FORMAT", "CONFIG_FILE",
}

// isolateEnv clears every config variable for the duration of the test and
// moves into a temp directory so no .env file is picked up.
func isolateEnv(t *testing.T) string {
	t.Helper()
	original := make(map[string]string)
	for _, key := range envVars {
		original[key] = os.Getenv(key)
		unsetEnv(key)
	}
	originalWd, _ := os.Getwd()
	tmpDir := t.TempDir()
	_ = os.Chdir(tmpDir)

	t.Cleanup(func() {
		_ = os.Chdir(originalWd)
		for key, value := range original {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	})

	// Keep data directories inside the temp dir.
	setEnv("DB_PATH", filepath.Join(tmpDir, "data", "thinkr.db"))
	setEnv("VECTOR_DB_PATH", filepath.Join(tmpDir, "data", "vector_db"))
	return tmpDir
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T, string)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name:     "default values",
			setupEnv: func(t *testing.T, dir string) {},
			wantErr:  false,
			checkConfig: func(cfg *Config) bool {
				return cfg.OpenAIModel == "gpt-4" &&
					cfg.Temperature == 0.7 &&
					cfg.MaxTokens == 1000 &&
					cfg.OpenAIBaseURL == "https://api.openai.com" &&
					cfg.EmbeddingBaseURL == "https://api.openai.com" &&
					cfg.EmbeddingModel == "text-embedding-3-small" &&
					cfg.EmbeddingDim == 1536 &&
					cfg.PDFDir == "./data/pdfs" &&
					cfg.VectorBackend == BackendLocal &&
					cfg.Collection == "thinkr" &&
					cfg.ChunkSize == 1000 &&
					cfg.ChunkOverlap == 200 &&
					cfg.TopK == 5 &&
					cfg.SimilarityThreshold == 0.5 &&
					cfg.LLMTimeout == 60*time.Second &&
					cfg.SessionID == "default" &&
					cfg.APIPort == "8000" &&
					cfg.LogLevel == slog.LevelInfo &&
					cfg.LogFormat == "text"
			},
		},
		{
			name: "custom values",
			setupEnv: func(t *testing.T, dir string) {
				setEnv("OPENAI_API_KEY", "sk-test")
				setEnv("OPENAI_MODEL", "gpt-4o-mini")
				setEnv("TEMPERATURE", "0.2")
				setEnv("MAX_TOKENS", "256")
				setEnv("OPENAI_BASE_URL", "http://localhost:9999/")
				setEnv("VECTOR_BACKEND", "QDRANT")
				setEnv("LOG_LEVEL", "debug")
				setEnv("LOG_FORMAT", "json")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.OpenAIAPIKey == "sk-test" &&
					cfg.OpenAIModel == "gpt-4o-mini" &&
					cfg.Temperature == 0.2 &&
					cfg.MaxTokens == 256 &&
					cfg.OpenAIBaseURL == "http://localhost:9999" &&
					cfg.EmbeddingBaseURL == "http://localhost:9999" &&
					cfg.VectorBackend == BackendQdrant &&
					cfg.LogLevel == slog.LevelDebug &&
					cfg.LogFormat == "json"
			},
		},
		{
			name: "yaml file fills unset keys",
			setupEnv: func(t *testing.T, dir string) {
				path := filepath.Join(dir, "thinkr.yaml")
				content := "OPENAI_MODEL: gpt-3.5-turbo\ntop_k: 8\nTEMPERATURE: 0.1\n"
				if err := os.WriteFile(path, []byte(content), 0644); err != nil {
					t.Fatal(err)
				}
				setEnv("CONFIG_FILE", path)
				setEnv("TEMPERATURE", "0.9")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.OpenAIModel == "gpt-3.5-turbo" &&
					cfg.TopK == 8 &&
					cfg.Temperature == 0.9
			},
		},
		{
			name: "missing yaml file",
			setupEnv: func(t *testing.T, dir string) {
				setEnv("CONFIG_FILE", filepath.Join(dir, "nope.yaml"))
			},
			wantErr: true,
		},
		{
			name:     "invalid MAX_TOKENS",
			setupEnv: func(t *testing.T, dir string) { setEnv("MAX_TOKENS", "many") },
			wantErr:  true,
		},
		{
			name:     "zero MAX_TOKENS",
			setupEnv: func(t *testing.T, dir string) { setEnv("MAX_TOKENS", "0") },
			wantErr:  true,
		},
		{
			name:     "temperature out of range",
			setupEnv: func(t *testing.T, dir string) { setEnv("TEMPERATURE", "3.5") },
			wantErr:  true,
		},
		{
			name: "overlap not smaller than chunk size",
			setupEnv: func(t *testing.T, dir string) {
				setEnv("CHUNK_SIZE", "100")
				setEnv("CHUNK_OVERLAP", "100")
			},
			wantErr: true,
		},
		{
			name:     "unknown backend",
			setupEnv: func(t *testing.T, dir string) { setEnv("VECTOR_BACKEND", "faiss") },
			wantErr:  true,
		},
		{
			name:     "invalid log level",
			setupEnv: func(t *testing.T, dir string) { setEnv("LOG_LEVEL", "loud") },
			wantErr:  true,
		},
		{
			name:     "invalid timeout",
			setupEnv: func(t *testing.T, dir string) { setEnv("LLM_TIMEOUT", "soon") },
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolateEnv(t)
			tt.setupEnv(t, dir)

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.checkConfig != nil {
				if !tt.checkConfig(cfg) {
					t.Errorf("Load() config check failed: %+v", cfg)
				}
			}
		})
	}
}

func TestLoad_CreatesDataDirectories(t *testing.T) {
	dir := isolateEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Dir(cfg.DBPath)); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "vector_db")); err != nil {
		t.Errorf("vector db directory not created: %v", err)
	}
}

func TestConfig_RequireAPIKey(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireAPIKey(); !errors.Is(err, service.ErrMissingCredential) {
		t.Errorf("RequireAPIKey() error = %v, want ErrMissingCredential", err)
	}

	cfg.OpenAIAPIKey = "   "
	if err := cfg.RequireAPIKey(); !errors.Is(err, service.ErrMissingCredential) {
		t.Errorf("RequireAPIKey() with blank key error = %v, want ErrMissingCredential", err)
	}

	cfg.OpenAIAPIKey = "sk-test"
	if err := cfg.RequireAPIKey(); err != nil {
		t.Errorf("RequireAPIKey() error = %v, want nil", err)
	}
}
