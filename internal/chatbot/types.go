package chatbot

import (
	"time"

	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/indexer"
)

// IndexRequest asks for an index run.
type IndexRequest struct {
	// PDFDir overrides the configured PDF directory when set.
	PDFDir string
	// Force discards the whole index before indexing.
	Force bool
	// Progress, when set, receives per-file progress.
	Progress func(indexer.Progress)
}

// AskRequest is a question to the chatbot.
type AskRequest struct {
	Question string
	// UseContext enables retrieval from the course material.
	UseContext bool
	// K overrides the configured number of chunks to retrieve.
	K int
}

// Answer is the chatbot's reply to one question.
type Answer struct {
	// Response is the model output with the reference list appended.
	Response    string                   `json:"response"`
	RawResponse string                   `json:"raw_response"`
	References  []conversation.Reference `json:"references"`
	ContextUsed bool                     `json:"context_used"`
	Model       string                   `json:"model"`
	Timestamp   time.Time                `json:"timestamp"`
}

// SearchHit is a similarity hit with its chunk text.
type SearchHit struct {
	ChunkID  string         `json:"chunk_id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Recommendation points a learner at course material for a topic.
type Recommendation struct {
	Topic          string  `json:"topic"`
	Module         string  `json:"module"`
	Page           int     `json:"page"`
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevance_score"`
	Suggestion     string  `json:"suggestion"`
}

// StoreInfo describes the vector index.
type StoreInfo struct {
	Backend        string `json:"backend"`
	Collection     string `json:"collection"`
	TotalEntries   int    `json:"total_entries"`
	Documents      int    `json:"documents"`
	Dimension      int    `json:"dimension"`
	EmbeddingModel string `json:"embedding_model"`
	Error          string `json:"error,omitempty"`
}

// SystemInfo is a snapshot of the chatbot's configuration and state.
type SystemInfo struct {
	Model               string              `json:"model"`
	Temperature         float64             `json:"temperature"`
	MaxTokens           int                 `json:"max_tokens"`
	VectorStore         StoreInfo           `json:"vector_store"`
	IndexStats          *indexer.IndexStats `json:"index_stats,omitempty"`
	ConversationHistory int                 `json:"conversation_history_length"`
	PDFDirectory        string              `json:"pdf_directory"`
	VectorDBPath        string              `json:"vector_db_path"`
	Indexing            bool                `json:"indexing"`
	LastIndex           *indexer.Result     `json:"last_index,omitempty"`
}
