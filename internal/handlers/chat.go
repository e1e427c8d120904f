package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/conversation"
)

// maxBatchMessages bounds a /chat/batch request.
const maxBatchMessages = 20

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	bot  Chatbot
	hist *conversation.History
	md   goldmark.Markdown
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(bot Chatbot, hist *conversation.History) *ChatHandler {
	return &ChatHandler{
		bot:  bot,
		hist: hist,
		md:   newMarkdown(),
	}
}

// ChatRequest represents the HTTP request payload for chat.
//
// swagger:model ChatRequest
type ChatRequest struct {
	Message string `json:"message"`
	// UseContext defaults to true.
	UseContext *bool `json:"use_context,omitempty"`
	K          int   `json:"k,omitempty"`
}

// ChatResponse represents the HTTP response payload for chat.
//
// swagger:model ChatResponse
type ChatResponse struct {
	// Answer with the reference list appended, as markdown
	Response string `json:"response"`
	// Response rendered to HTML
	ResponseHTML string                   `json:"response_html"`
	References   []conversation.Reference `json:"references"`
	ContextUsed  bool                     `json:"context_used"`
	Model        string                   `json:"model"`
	Timestamp    time.Time                `json:"timestamp"`
}

// ServeHTTP handles HTTP requests for chat.
//
// swagger:route POST /chat chat
//
// # Ask a question about the course material
//
// Answers the message using retrieved course context (unless use_context is false)
// and appends the exchange to the server's conversation history.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/ChatResponse"
//	'400':
//	  description: Bad request (empty message or invalid body)
//	'409':
//	  description: No course material indexed yet
//	'502':
//	  description: Completion or embedding API failure
//	'503':
//	  description: API key not configured
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	answer, err := h.bot.Ask(ctx, h.hist, chatbot.AskRequest{
		Question:   req.Message,
		UseContext: useContext(req.UseContext),
		K:          req.K,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to process chat request")
		return
	}

	writeJSON(ctx, w, http.StatusOK, h.toResponse(r, answer))
}

func (h *ChatHandler) toResponse(r *http.Request, answer *chatbot.Answer) ChatResponse {
	ctx := r.Context()
	html, err := renderMarkdown(h.md, answer.Response)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to render answer", "error", err)
	}
	refs := answer.References
	if refs == nil {
		refs = []conversation.Reference{}
	}
	return ChatResponse{
		Response:     answer.Response,
		ResponseHTML: html,
		References:   refs,
		ContextUsed:  answer.ContextUsed,
		Model:        answer.Model,
		Timestamp:    answer.Timestamp,
	}
}

func useContext(v *bool) bool {
	return v == nil || *v
}

// BatchChatRequest represents a batch of chat messages.
//
// swagger:model BatchChatRequest
type BatchChatRequest struct {
	Messages   []string `json:"messages"`
	UseContext *bool    `json:"use_context,omitempty"`
}

// BatchChatItem is the outcome for one message of a batch.
type BatchChatItem struct {
	Message string `json:"message"`
	*ChatResponse
	Error string `json:"error,omitempty"`
}

// BatchChatResponse represents the response of a batch chat.
//
// swagger:model BatchChatResponse
type BatchChatResponse struct {
	Responses []BatchChatItem `json:"responses"`
	Total     int             `json:"total"`
	Failed    int             `json:"failed"`
}

// BatchChatHandler answers several messages in order.
type BatchChatHandler struct {
	chat *ChatHandler
}

// NewBatchChatHandler creates a batch handler sharing the chat handler's history.
func NewBatchChatHandler(chat *ChatHandler) *BatchChatHandler {
	return &BatchChatHandler{chat: chat}
}

// ServeHTTP handles HTTP requests for batch chat.
//
// swagger:route POST /chat/batch chatBatch
//
// # Ask several questions in order
//
// Each message is answered sequentially and recorded in the history.
// A failing message is reported in its item and does not stop the batch.
func (h *BatchChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req BatchChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	if len(req.Messages) > maxBatchMessages {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d messages per batch", maxBatchMessages))
		return
	}

	resp := BatchChatResponse{Responses: make([]BatchChatItem, 0, len(req.Messages)), Total: len(req.Messages)}
	for _, msg := range req.Messages {
		if err := ctx.Err(); err != nil {
			return
		}
		item := BatchChatItem{Message: msg}
		answer, err := h.chat.bot.Ask(ctx, h.chat.hist, chatbot.AskRequest{
			Question:   msg,
			UseContext: useContext(req.UseContext),
		})
		if err != nil {
			logger.WarnContext(ctx, "batch message failed", "message_length", len(strings.TrimSpace(msg)), "error", err)
			item.Error = err.Error()
			resp.Failed++
		} else {
			out := h.chat.toResponse(r, answer)
			item.ChatResponse = &out
		}
		resp.Responses = append(resp.Responses, item)
	}

	logger.InfoContext(ctx, "batch processed", "total", resp.Total, "failed", resp.Failed)
	writeJSON(ctx, w, http.StatusOK, resp)
}
