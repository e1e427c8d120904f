// Package chatbot answers questions about the course material and manages the index.
package chatbot

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks thinkr-chatbot/internal/chatbot Embedder
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completer.go -package=mocks thinkr-chatbot/internal/chatbot Completer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/indexer"
	"thinkr-chatbot/internal/llm"
	"thinkr-chatbot/internal/prompt"
	"thinkr-chatbot/internal/service"
	"thinkr-chatbot/internal/storage"
	"thinkr-chatbot/internal/vectorstore"
)

const (
	maxK                = 20
	defaultRecommend    = 3
	candidateMultiplier = 2
)

// Embedder turns a query into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Completer calls the chat completion API.
type Completer interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Config holds the chatbot's tunables.
type Config struct {
	Model               string
	Temperature         float64
	MaxTokens           int
	TopK                int
	SimilarityThreshold float64
	HistoryWindow       int
	PDFDir              string
	VectorDBPath        string
	Backend             string
	Collection          string
	EmbeddingModel      string
}

// Deps are the collaborators the chatbot orchestrates.
type Deps struct {
	Pipeline  *indexer.Pipeline
	Store     vectorstore.VectorStore
	Documents storage.DocumentStore
	Chunks    storage.ChunkStore
	Embedder  Embedder
	LLM       Completer
	// CredentialErr is returned by every operation that needs the model API.
	CredentialErr error
}

// Chatbot ties PDF indexing, retrieval, prompting and completion together.
type Chatbot struct {
	cfg  Config
	deps Deps

	indexing  atomic.Bool
	mu        sync.RWMutex
	lastIndex *indexer.Result
}

// New creates a chatbot.
func New(cfg Config, deps Deps) *Chatbot {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.HistoryWindow < 0 {
		cfg.HistoryWindow = 0
	}
	return &Chatbot{cfg: cfg, deps: deps}
}

// Config returns the chatbot configuration.
func (b *Chatbot) Config() Config {
	return b.cfg
}

// Index runs the indexing pipeline. Only one run may be active at a time.
func (b *Chatbot) Index(ctx context.Context, req IndexRequest) (*indexer.Result, error) {
	if err := b.beginIndex(); err != nil {
		return nil, err
	}
	defer b.indexing.Store(false)
	return b.runIndex(ctx, req)
}

// IndexAsync starts an index run in the background and returns once it has started.
// done, when set, is called with the outcome.
func (b *Chatbot) IndexAsync(ctx context.Context, req IndexRequest, done func(*indexer.Result, error)) error {
	if err := b.beginIndex(); err != nil {
		return err
	}
	go func() {
		defer b.indexing.Store(false)
		res, err := b.runIndex(ctx, req)
		if err != nil {
			contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "background indexing failed", "error", err)
		}
		if done != nil {
			done(res, err)
		}
	}()
	return nil
}

// IsIndexing reports whether an index run is active.
func (b *Chatbot) IsIndexing() bool {
	return b.indexing.Load()
}

// LastIndex returns the result of the most recent completed run, if any.
func (b *Chatbot) LastIndex() *indexer.Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastIndex
}

func (b *Chatbot) beginIndex() error {
	if b.deps.CredentialErr != nil {
		return b.deps.CredentialErr
	}
	if b.deps.Pipeline == nil {
		return errors.New("indexing pipeline not configured")
	}
	if !b.indexing.CompareAndSwap(false, true) {
		return service.ErrIndexInProgress
	}
	return nil
}

func (b *Chatbot) runIndex(ctx context.Context, req IndexRequest) (*indexer.Result, error) {
	dir := req.PDFDir
	if dir == "" {
		dir = b.cfg.PDFDir
	}
	res, err := b.deps.Pipeline.Run(ctx, indexer.Options{PDFDir: dir, Force: req.Force, Progress: req.Progress})
	if err != nil {
		return nil, fmt.Errorf("indexing failed: %w", err)
	}
	b.mu.Lock()
	b.lastIndex = res
	b.mu.Unlock()
	return res, nil
}

// Ask answers a question and appends the turn to hist.
func (b *Chatbot) Ask(ctx context.Context, hist *conversation.History, req AskRequest) (*Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, &service.ValidationError{Field: "question", Message: "cannot be empty"}
	}
	k, err := b.resolveK(req.K)
	if err != nil {
		return nil, err
	}
	if b.deps.CredentialErr != nil {
		return nil, b.deps.CredentialErr
	}

	logger.InfoContext(ctx, "question received", "question_length", len(question), "use_context", req.UseContext, "k", k)

	var chunks []prompt.ContextChunk
	if req.UseContext {
		chunks, err = b.retrieve(ctx, question, k)
		if err != nil {
			return nil, err
		}
	}

	var recent []conversation.Turn
	if hist != nil {
		recent = hist.Recent(b.cfg.HistoryWindow)
	}
	messages, err := prompt.Build(prompt.Input{Question: question, Context: chunks, History: recent})
	if err != nil {
		return nil, err
	}

	raw, err := b.deps.LLM.ChatWithMessages(ctx, messages, llm.ChatParams{
		Model:       b.cfg.Model,
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: b.cfg.Temperature,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		return nil, externalError(err, "failed to get LLM response")
	}

	refs := make([]conversation.Reference, 0, len(chunks))
	for _, c := range chunks {
		refs = append(refs, conversation.Reference{
			Module:         c.Module,
			Source:         c.Source,
			Page:           c.Page,
			Timestamp:      c.Timestamp,
			RelevanceScore: c.Score,
		})
	}

	answer := &Answer{
		Response:    prompt.FormatWithReferences(raw, refs),
		RawResponse: raw,
		References:  refs,
		ContextUsed: len(chunks) > 0,
		Model:       b.cfg.Model,
		Timestamp:   time.Now().UTC(),
	}

	if hist != nil {
		if err := hist.Append(ctx, conversation.Turn{
			Question:    question,
			Answer:      raw,
			References:  refs,
			ContextUsed: answer.ContextUsed,
			Model:       answer.Model,
			Timestamp:   answer.Timestamp,
		}); err != nil {
			return nil, fmt.Errorf("failed to record turn: %w", err)
		}
	}

	logger.InfoContext(ctx, "question answered", "chunks_used", len(chunks), "answer_length", len(raw))
	return answer, nil
}

// retrieve embeds the question, searches the index and returns the reranked context chunks.
func (b *Chatbot) retrieve(ctx context.Context, question string, k int) ([]prompt.ContextChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	results, err := b.search(ctx, question, k*candidateMultiplier)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		chunk prompt.ContextChunk
		final float64
	}
	candidates := make([]candidate, 0, len(results))
	for _, r := range results {
		score := float64(r.Score)
		if score < b.cfg.SimilarityThreshold {
			continue
		}
		rec, err := b.deps.Chunks.GetByID(ctx, r.PointID)
		if err != nil {
			logger.WarnContext(ctx, "failed to fetch chunk text", "chunk_id", r.PointID, "error", err)
			continue
		}
		c := prompt.ContextChunk{
			Module:    moduleName(r.Meta),
			Source:    vectorstore.MetaString(r.Meta, "filename"),
			Page:      rec.Page,
			Timestamp: rec.Timestamp,
			Score:     score,
			Text:      rec.Text,
		}
		candidates = append(candidates, candidate{
			chunk: c,
			final: score + float64(lexicalScore(question, rec.Text, c.Module)),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].final > candidates[j].final
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	chunks := make([]prompt.ContextChunk, len(candidates))
	for i, c := range candidates {
		chunks[i] = c.chunk
	}
	logger.InfoContext(ctx, "context retrieved", "hits", len(results), "kept", len(chunks), "threshold", b.cfg.SimilarityThreshold)
	return chunks, nil
}

// search checks the index is populated, embeds text and runs a similarity search.
func (b *Chatbot) search(ctx context.Context, text string, k int) ([]vectorstore.SearchResult, error) {
	total, err := b.deps.Store.Count(ctx, b.cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to count index entries: %w", err)
	}
	if total == 0 {
		return nil, vectorstore.ErrNotIndexed
	}

	vec, err := b.deps.Embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, externalError(err, "failed to embed query")
	}

	results, err := b.deps.Store.Search(ctx, b.cfg.Collection, vec, k, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return results, nil
}

// aboveThreshold drops hits scoring below the configured similarity threshold.
func (b *Chatbot) aboveThreshold(results []vectorstore.SearchResult) []vectorstore.SearchResult {
	kept := results[:0:0]
	for _, r := range results {
		if float64(r.Score) >= b.cfg.SimilarityThreshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// Search returns similarity hits above the threshold with their chunk text.
func (b *Chatbot) Search(ctx context.Context, query string, k int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &service.ValidationError{Field: "query", Message: "cannot be empty"}
	}
	k, err := b.resolveK(k)
	if err != nil {
		return nil, err
	}
	if b.deps.CredentialErr != nil {
		return nil, b.deps.CredentialErr
	}

	results, err := b.search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range b.aboveThreshold(results) {
		hit := SearchHit{ChunkID: r.PointID, Score: float64(r.Score), Metadata: r.Meta}
		if rec, err := b.deps.Chunks.GetByID(ctx, r.PointID); err == nil {
			hit.Text = rec.Text
		} else {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to fetch chunk text", "chunk_id", r.PointID, "error", err)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Recommend suggests course material to review for a topic.
func (b *Chatbot) Recommend(ctx context.Context, topic string, count int) ([]Recommendation, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &service.ValidationError{Field: "topic", Message: "cannot be empty"}
	}
	if count < 0 {
		return nil, &service.ValidationError{Field: "count", Message: "must not be negative"}
	}
	if count == 0 {
		count = defaultRecommend
	}
	if count > maxK {
		count = maxK
	}
	if b.deps.CredentialErr != nil {
		return nil, b.deps.CredentialErr
	}

	results, err := b.search(ctx, topic, count)
	if err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, len(results))
	for _, r := range b.aboveThreshold(results) {
		module := moduleName(r.Meta)
		page := vectorstore.MetaInt(r.Meta, "page")
		recs = append(recs, Recommendation{
			Topic:          topic,
			Module:         module,
			Page:           page,
			Source:         vectorstore.MetaString(r.Meta, "filename"),
			RelevanceScore: float64(r.Score),
			Suggestion:     fmt.Sprintf("Review %s on page %d", module, page),
		})
	}
	return recs, nil
}

// SystemInfo reports configuration, index state and history length.
// Store failures are reported in the result rather than returned.
func (b *Chatbot) SystemInfo(ctx context.Context, hist *conversation.History) *SystemInfo {
	logger := contextutil.LoggerFromContext(ctx)

	info := &SystemInfo{
		Model:        b.cfg.Model,
		Temperature:  b.cfg.Temperature,
		MaxTokens:    b.cfg.MaxTokens,
		PDFDirectory: b.cfg.PDFDir,
		VectorDBPath: b.cfg.VectorDBPath,
		Indexing:     b.IsIndexing(),
		LastIndex:    b.LastIndex(),
		VectorStore: StoreInfo{
			Backend:        b.cfg.Backend,
			Collection:     b.cfg.Collection,
			EmbeddingModel: b.cfg.EmbeddingModel,
		},
	}
	if b.deps.Embedder != nil {
		info.VectorStore.Dimension = b.deps.Embedder.Dimension()
	}
	if hist != nil {
		info.ConversationHistory = hist.Len()
	}

	if total, err := b.deps.Store.Count(ctx, b.cfg.Collection); err != nil {
		logger.WarnContext(ctx, "failed to count index entries", "error", err)
		info.VectorStore.Error = err.Error()
	} else {
		info.VectorStore.TotalEntries = total
	}

	var stats *indexer.IndexStats
	var err error
	if b.deps.Pipeline != nil {
		stats, err = b.deps.Pipeline.Stats(ctx, b.cfg.EmbeddingModel)
	} else {
		stats, err = indexer.ComputeStats(ctx, b.deps.Documents, b.deps.Chunks, nil, b.cfg.EmbeddingModel)
	}
	if err != nil {
		logger.WarnContext(ctx, "failed to compute index stats", "error", err)
	} else {
		info.IndexStats = stats
		info.VectorStore.Documents = stats.Documents
	}
	return info
}

func (b *Chatbot) resolveK(k int) (int, error) {
	if k < 0 {
		return 0, &service.ValidationError{Field: "k", Message: "must not be negative"}
	}
	if k == 0 {
		k = b.cfg.TopK
	}
	if k > maxK {
		k = maxK
	}
	return k, nil
}

// moduleName is the document title, falling back to the filename without extension.
func moduleName(meta map[string]any) string {
	if title := strings.TrimSpace(vectorstore.MetaString(meta, "title")); title != "" {
		return title
	}
	name := vectorstore.MetaString(meta, "filename")
	if name == "" {
		name = filepath.Base(vectorstore.MetaString(meta, "source"))
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// externalError marks err as an external service failure unless it is a credential or context error.
func externalError(err error, msg string) error {
	if errors.Is(err, service.ErrMissingCredential) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %w", service.ErrExternalService, msg, err)
}
