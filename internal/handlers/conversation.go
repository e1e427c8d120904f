package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/service"
)

// ConversationHandler manages the server's conversation history.
type ConversationHandler struct {
	hist *conversation.History
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(hist *conversation.History) *ConversationHandler {
	return &ConversationHandler{hist: hist}
}

// StatusResponse is a plain acknowledgement.
type StatusResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	TotalMessages int    `json:"total_messages"`
}

// Clear handles POST /conversation/clear.
func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.hist.Clear(ctx); err != nil {
		handleServiceError(w, ctx, err, "Failed to clear conversation")
		return
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "conversation cleared", "session_id", h.hist.SessionID())
	writeJSON(ctx, w, http.StatusOK, StatusResponse{Status: "success", Message: "Conversation history cleared"})
}

// Export handles GET /conversation/export?format=json|text.
// JSON returns the export envelope; text returns the plain transcript.
func (h *ConversationHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = conversation.FormatJSON
	}
	data, err := h.hist.Export(format)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to export conversation")
		return
	}

	if format == conversation.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import handles POST /conversation/import with a JSON export as the body.
// The imported turns replace the current history.
func (h *ConversationHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Conversation export too large")
			return
		}
		logger.WarnContext(ctx, "failed to read import body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(data) == 0 {
		handleServiceError(w, ctx, &service.ValidationError{Field: "body", Message: "cannot be empty"}, "")
		return
	}

	if err := h.hist.Import(ctx, data); err != nil {
		handleServiceError(w, ctx, err, "Failed to import conversation")
		return
	}

	total := h.hist.Len() * 2
	logger.InfoContext(ctx, "conversation imported", "turns", h.hist.Len())
	writeJSON(ctx, w, http.StatusOK, StatusResponse{Status: "success", Message: "Conversation imported", TotalMessages: total})
}
