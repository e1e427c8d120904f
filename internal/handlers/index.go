package handlers

import (
	"context"
	"net/http"
	"strconv"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/indexer"
)

// IndexHandler handles HTTP requests for triggering re-indexing.
type IndexHandler struct {
	bot Chatbot
	// alwaysForce makes every run a full rebuild.
	alwaysForce bool
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(bot Chatbot, alwaysForce bool) *IndexHandler {
	return &IndexHandler{bot: bot, alwaysForce: alwaysForce}
}

// IndexRequest is the optional body of an index request.
//
// swagger:model IndexRequest
type IndexRequest struct {
	Force  bool   `json:"force,omitempty"`
	PDFDir string `json:"pdf_dir,omitempty"`
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Force   bool   `json:"force"`
}

// ServeHTTP handles HTTP requests for triggering re-indexing.
//
// swagger:route POST /index-pdfs indexPDFs
//
// # Index the PDF course material
//
// Starts an index run in the background and returns 202. Unchanged PDFs are
// skipped unless force is set in the body or as ?force=true.
// GET /system-info reports progress and the last result.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IndexRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if v := r.URL.Query().Get("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		req.Force = req.Force || force
	}
	force := req.Force || h.alwaysForce

	// The run outlives the request, so it gets its own context.
	indexCtx := contextutil.WithLogger(context.Background(), logger)
	err := h.bot.IndexAsync(indexCtx, chatbot.IndexRequest{PDFDir: req.PDFDir, Force: force}, func(res *indexer.Result, err error) {
		if err != nil {
			return
		}
		logger.InfoContext(indexCtx, "re-indexing completed", "status", res.Status, "indexed", res.Indexed, "total_entries", res.TotalEntries)
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to start indexing")
		return
	}

	logger.InfoContext(ctx, "indexing triggered via API", "force", force, "pdf_dir", req.PDFDir)
	message := "Indexing started. Check /system-info for progress."
	if force {
		message = "Force re-indexing started (existing index discarded). Check /system-info for progress."
	}
	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: message,
		Status:  "accepted",
		Force:   force,
	})
}
