package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"thinkr-chatbot/internal/chatbot"
	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/conversation"
)

// SystemInfoHandler reports configuration and index state.
type SystemInfoHandler struct {
	bot  Chatbot
	hist *conversation.History
}

// NewSystemInfoHandler creates a new SystemInfoHandler.
func NewSystemInfoHandler(bot Chatbot, hist *conversation.History) *SystemInfoHandler {
	return &SystemInfoHandler{bot: bot, hist: hist}
}

// ServeHTTP handles GET /system-info.
//
// swagger:route GET /system-info systemInfo
//
// # System information
//
// Returns model settings, vector store statistics, conversation length and
// the state of the last index run.
func (h *SystemInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(ctx, w, http.StatusOK, h.bot.SystemInfo(ctx, h.hist))
}

// RecommendHandler suggests material for a topic.
type RecommendHandler struct {
	bot Chatbot
}

// NewRecommendHandler creates a new RecommendHandler.
func NewRecommendHandler(bot Chatbot) *RecommendHandler {
	return &RecommendHandler{bot: bot}
}

// RecommendRequest is the body of POST /recommendations.
//
// swagger:model RecommendRequest
type RecommendRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count,omitempty"`
}

// RecommendResponse lists recommendations for a topic.
//
// swagger:model RecommendResponse
type RecommendResponse struct {
	Topic           string                   `json:"topic"`
	Recommendations []chatbot.Recommendation `json:"recommendations"`
}

// ServeHTTP handles POST /recommendations.
//
// swagger:route POST /recommendations recommendations
//
// # Recommend course material
//
// Returns up to count (default 3, max 20) pages to review for the topic.
func (h *RecommendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req RecommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	recs, err := h.bot.Recommend(ctx, req.Topic, req.Count)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get recommendations")
		return
	}
	if recs == nil {
		recs = []chatbot.Recommendation{}
	}
	writeJSON(ctx, w, http.StatusOK, RecommendResponse{Topic: strings.TrimSpace(req.Topic), Recommendations: recs})
}

// SearchHandler exposes similarity search over the course index.
type SearchHandler struct {
	bot Chatbot
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(bot Chatbot) *SearchHandler {
	return &SearchHandler{bot: bot}
}

// SearchResponse lists the hits above the similarity threshold.
//
// swagger:model SearchResponse
type SearchResponse struct {
	Query   string              `json:"query"`
	Results []chatbot.SearchHit `json:"results"`
	Total   int                 `json:"total"`
}

// ServeHTTP handles GET /search?query=&k=.
//
// swagger:route GET /search search
//
// # Similarity search
//
// Returns the k most similar chunks with their text and metadata.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("query")
	k := 0
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = n
	}

	hits, err := h.bot.Search(ctx, query, k)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to search")
		return
	}
	if hits == nil {
		hits = []chatbot.SearchHit{}
	}
	writeJSON(ctx, w, http.StatusOK, SearchResponse{Query: query, Results: hits, Total: len(hits)})
}
