// Package handlers implements the REST endpoints of the chatbot server.
package handlers

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chatbot.go -package=mocks thinkr-chatbot/internal/handlers Chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/indexer"
	"thinkr-chatbot/internal/service"
	"thinkr-chatbot/internal/vectorstore"
)

// Chatbot is the part of the chatbot the HTTP layer depends on.
type Chatbot interface {
	Ask(ctx context.Context, hist *conversation.History, req chatbot.AskRequest) (*chatbot.Answer, error)
	IndexAsync(ctx context.Context, req chatbot.IndexRequest, done func(*indexer.Result, error)) error
	Recommend(ctx context.Context, topic string, count int) ([]chatbot.Recommendation, error)
	Search(ctx context.Context, query string, k int) ([]chatbot.SearchHit, error)
	SystemInfo(ctx context.Context, hist *conversation.History) *chatbot.SystemInfo
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// maxBodyBytes bounds request bodies, conversation imports included.
const maxBodyBytes = 10 << 20

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// decodeJSON decodes an optional JSON body. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		logger.WarnContext(ctx, "validation error", "error", err)
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, service.ErrInvalidInput):
		logger.WarnContext(ctx, "invalid input", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, vectorstore.ErrNotIndexed):
		logger.WarnContext(ctx, "index is empty", "error", err)
		writeError(w, http.StatusConflict, "No course material indexed yet, run index-pdfs first")
	case errors.Is(err, service.ErrIndexInProgress):
		writeError(w, http.StatusConflict, "Indexing already in progress")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrMissingCredential):
		logger.ErrorContext(ctx, "model API credentials missing", "error", err)
		writeError(w, http.StatusServiceUnavailable, "OPENAI_API_KEY is not configured")
	case errors.Is(err, service.ErrExternalService):
		logger.ErrorContext(ctx, "external service error", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.ErrorContext(ctx, "service error", "error", err)
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}
