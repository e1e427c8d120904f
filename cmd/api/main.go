package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thinkr-chatbot/internal/app"
	"thinkr-chatbot/internal/config"
	"thinkr-chatbot/internal/http"
	"thinkr-chatbot/internal/web"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions about the ThinkR R course material using retrieval-augmented generation over indexed PDFs.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: ThinkR Chatbot API
//   description: |
//     RAG (Retrieval-Augmented Generation) API for the ThinkR R programming course.
//     Index the course PDFs, then ask questions and get answers with page references.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app.SetupLogging(cfg, os.Stdout, cfg.LogLevel)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatalf("Cannot start API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	}()
	slog.Info("Chatbot initialized",
		"backend", cfg.VectorBackend,
		"collection", cfg.Collection,
		"pdf_dir", cfg.PDFDir,
		"session_id", cfg.SessionID,
	)

	router := http.NewRouter(&http.Deps{
		Chatbot:     a.Chatbot,
		History:     a.History,
		VectorStore: a.Store,
		DB:          a.DB,
		Collection:  cfg.Collection,
		IndexHTML:   web.IndexHTML,
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.OpenAIBaseURL, "model", cfg.OpenAIModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("API server failed", "error", err)
			_ = a.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
