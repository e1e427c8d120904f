// Package app assembles the chatbot from configuration. Both the CLI and the API server start here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/config"
	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/indexer"
	"thinkr-chatbot/internal/llm"
	"thinkr-chatbot/internal/pdf"
	"thinkr-chatbot/internal/service"
	"thinkr-chatbot/internal/storage"
	"thinkr-chatbot/internal/vectorstore"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Store    vectorstore.VectorStore
	Pipeline *indexer.Pipeline
	Chatbot  *chatbot.Chatbot
	History  *conversation.History

	closers []func() error
}

// SetupLogging installs the default slog logger for cfg, writing to w.
func SetupLogging(cfg *config.Config, w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// New opens storage and builds the chatbot. Without an API key the model-backed
// operations fail with service.ErrMissingCredential while history, export and
// info keep working.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, service.WrapError(err, "failed to open database")
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if err := storage.Migrate(db); err != nil {
		_ = a.Close()
		return nil, service.WrapError(err, "failed to run migrations")
	}
	slog.DebugContext(ctx, "database initialized", "path", cfg.DBPath)

	store, err := openStore(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Store = store
	if q, ok := store.(*vectorstore.QdrantStore); ok {
		a.closers = append(a.closers, q.Close)
	}

	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	turnRepo := storage.NewTurnRepo(db)

	var (
		embedder      indexer.Embedder
		queryEmbedder chatbot.Embedder
		completer     chatbot.Completer
		credentialErr error
	)
	if keyErr := cfg.RequireAPIKey(); keyErr != nil {
		slog.WarnContext(ctx, "model API unavailable", "error", keyErr)
		u := llm.Unavailable{Err: keyErr, Dim: cfg.EmbeddingDim}
		embedder, queryEmbedder, completer, credentialErr = u, u, u, keyErr
	} else {
		ec, err := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim, cfg.EmbeddingBatchSize)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		embedder, queryEmbedder = ec, ec
		completer = llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel,
			llm.WithTimeout(cfg.LLMTimeout),
			llm.WithMaxRetries(cfg.LLMMaxRetries),
			llm.WithRequestsPerMinute(cfg.LLMRequestsPerMinute),
		)
	}

	a.Pipeline = indexer.NewPipeline(
		pdf.NewExtractor(),
		docRepo,
		chunkRepo,
		embedder,
		store,
		cfg.Collection,
		indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
	)

	a.History, err = conversation.NewPersistentHistory(ctx, turnRepo, cfg.SessionID)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Chatbot = chatbot.New(chatbot.Config{
		Model:               cfg.OpenAIModel,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
		TopK:                cfg.TopK,
		SimilarityThreshold: cfg.SimilarityThreshold,
		HistoryWindow:       cfg.HistoryWindow,
		PDFDir:              cfg.PDFDir,
		VectorDBPath:        cfg.VectorDBPath,
		Backend:             cfg.VectorBackend,
		Collection:          cfg.Collection,
		EmbeddingModel:      cfg.EmbeddingModel,
	}, chatbot.Deps{
		Pipeline:      a.Pipeline,
		Store:         store,
		Documents:     docRepo,
		Chunks:        chunkRepo,
		Embedder:      queryEmbedder,
		LLM:           completer,
		CredentialErr: credentialErr,
	})

	slog.DebugContext(ctx, "chatbot ready",
		"backend", cfg.VectorBackend,
		"collection", cfg.Collection,
		"model", cfg.OpenAIModel,
		"session_id", cfg.SessionID,
	)
	return a, nil
}

func openStore(cfg *config.Config) (vectorstore.VectorStore, error) {
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := vectorstore.NewLocalStore(cfg.VectorDBPath)
		if err != nil {
			return nil, service.WrapError(err, "failed to open local vector store")
		}
		return store, nil
	}
}

// Close releases storage handles in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
