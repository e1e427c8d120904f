package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/handlers"
	"thinkr-chatbot/internal/vectorstore"
)

// requestTimeout bounds synchronous handlers; LLM calls can be slow.
const requestTimeout = 2 * time.Minute

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Chatbot     handlers.Chatbot
	History     *conversation.History
	VectorStore vectorstore.VectorStore
	DB          handlers.Pinger
	Collection  string
	IndexHTML   string // Embedded HTML content
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	// Add CORS middleware
	r.Use(CORS)

	chatHandler := handlers.NewChatHandler(deps.Chatbot, deps.History)
	conv := handlers.NewConversationHandler(deps.History)

	r.Method(http.MethodPost, "/chat", chatHandler)
	r.Method(http.MethodPost, "/chat/batch", handlers.NewBatchChatHandler(chatHandler))
	r.Method(http.MethodPost, "/index-pdfs", handlers.NewIndexHandler(deps.Chatbot, false))
	r.Method(http.MethodPost, "/update-index", handlers.NewIndexHandler(deps.Chatbot, true))
	r.Method(http.MethodGet, "/system-info", handlers.NewSystemInfoHandler(deps.Chatbot, deps.History))
	r.Method(http.MethodPost, "/recommendations", handlers.NewRecommendHandler(deps.Chatbot))
	r.Method(http.MethodGet, "/search", handlers.NewSearchHandler(deps.Chatbot))
	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.VectorStore, deps.DB, deps.Collection))

	r.Route("/conversation", func(r chi.Router) {
		r.Post("/clear", conv.Clear)
		r.Get("/export", conv.Export)
		r.Post("/import", conv.Import)
	})

	// Serve HTML page at root
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(deps.IndexHTML))
	})

	return r
}
