package chatbot

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"thinkr-chatbot/internal/chatbot/mocks"
	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/indexer"
	"thinkr-chatbot/internal/llm"
	"thinkr-chatbot/internal/pdf"
	pdf_mocks "thinkr-chatbot/internal/pdf/mocks"
	"thinkr-chatbot/internal/service"
	"thinkr-chatbot/internal/storage"
	storage_mocks "thinkr-chatbot/internal/storage/mocks"
	"thinkr-chatbot/internal/vectorstore"
	vectorstore_mocks "thinkr-chatbot/internal/vectorstore/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const contextMarker = "Relevant course material context:"

func testConfig() Config {
	return Config{
		Model:               "gpt-test",
		Temperature:         0.3,
		MaxTokens:           500,
		TopK:                5,
		SimilarityThreshold: 0.5,
		HistoryWindow:       3,
		PDFDir:              "./pdfs",
		Collection:          "test",
		Backend:             "local",
		EmbeddingModel:      "embed-test",
	}
}

type mockSet struct {
	store    *vectorstore_mocks.MockVectorStore
	chunks   *storage_mocks.MockChunkStore
	docs     *storage_mocks.MockDocumentStore
	embedder *mocks.MockEmbedder
	llm      *mocks.MockCompleter
}

func newMockBot(t *testing.T) (*Chatbot, *mockSet) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := &mockSet{
		store:    vectorstore_mocks.NewMockVectorStore(ctrl),
		chunks:   storage_mocks.NewMockChunkStore(ctrl),
		docs:     storage_mocks.NewMockDocumentStore(ctrl),
		embedder: mocks.NewMockEmbedder(ctrl),
		llm:      mocks.NewMockCompleter(ctrl),
	}
	bot := New(testConfig(), Deps{
		Store:     m.store,
		Documents: m.docs,
		Chunks:    m.chunks,
		Embedder:  m.embedder,
		LLM:       m.llm,
	})
	return bot, m
}

// capture records the messages sent to the completion API.
func capture(dst *[]llm.Message, reply string) func(context.Context, []llm.Message, llm.ChatParams) (string, error) {
	return func(_ context.Context, msgs []llm.Message, _ llm.ChatParams) (string, error) {
		*dst = msgs
		return reply, nil
	}
}

func TestAsk_WithoutContextNeverQueriesStore(t *testing.T) {
	bot, m := newMockBot(t)
	hist := conversation.NewHistory()

	// No expectations on store, chunks or embedder: any call fails the test.
	var sent []llm.Message
	m.llm.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), llm.ChatParams{Model: "gpt-test", MaxTokens: 500, Temperature: 0.3}).
		DoAndReturn(capture(&sent, "Use c() to build vectors."))

	answer, err := bot.Ask(context.Background(), hist, AskRequest{Question: "How do I build a vector?", UseContext: false})
	require.NoError(t, err)

	assert.False(t, answer.ContextUsed)
	assert.Empty(t, answer.References)
	assert.Equal(t, "Use c() to build vectors.", answer.Response)
	require.NotEmpty(t, sent)
	for _, msg := range sent {
		assert.NotContains(t, msg.Content, contextMarker)
		assert.NotContains(t, msg.Content, "[Reference")
	}
	assert.Equal(t, "How do I build a vector?", sent[len(sent)-1].Content)
	assert.Equal(t, 1, hist.Len())
}

func TestAsk_EmptyIndexReturnsErrNotIndexed(t *testing.T) {
	bot, m := newMockBot(t)
	m.store.EXPECT().Count(gomock.Any(), "test").Return(0, nil)

	_, err := bot.Ask(context.Background(), conversation.NewHistory(), AskRequest{Question: "What is a tibble?", UseContext: true})
	assert.ErrorIs(t, err, vectorstore.ErrNotIndexed)
}

func TestAsk_WithContext(t *testing.T) {
	bot, m := newMockBot(t)
	hist := conversation.NewHistory()
	vec := []float32{1, 0, 0}

	m.store.EXPECT().Count(gomock.Any(), "test").Return(3, nil)
	m.embedder.EXPECT().EmbedQuery(gomock.Any(), "How do I filter rows?").Return(vec, nil)
	m.store.EXPECT().Search(gomock.Any(), "test", vec, 10, nil).Return([]vectorstore.SearchResult{
		{PointID: "c1", Score: 0.9, Meta: map[string]any{"title": "Data Wrangling", "filename": "wrangling.pdf", "page": 4}},
		{PointID: "c2", Score: 0.6, Meta: map[string]any{"filename": "intro.pdf", "page": 2}},
		{PointID: "c3", Score: 0.3, Meta: map[string]any{"filename": "misc.pdf", "page": 9}},
	}, nil)
	m.chunks.EXPECT().GetByID(gomock.Any(), "c1").Return(&storage.ChunkRecord{ID: "c1", Page: 4, Timestamp: "12:30", Text: "Use filter() to keep rows."}, nil)
	m.chunks.EXPECT().GetByID(gomock.Any(), "c2").Return(&storage.ChunkRecord{ID: "c2", Page: 2, Text: "R is a language for statistics."}, nil)

	var sent []llm.Message
	m.llm.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(capture(&sent, "Call filter()."))

	answer, err := bot.Ask(context.Background(), hist, AskRequest{Question: "  How do I filter rows?  ", UseContext: true})
	require.NoError(t, err)

	assert.True(t, answer.ContextUsed)
	require.Len(t, answer.References, 2, "hits below the threshold are dropped")
	assert.Equal(t, conversation.Reference{Module: "Data Wrangling", Source: "wrangling.pdf", Page: 4, Timestamp: "12:30", RelevanceScore: float64(float32(0.9))}, answer.References[0])
	assert.Equal(t, "intro", answer.References[1].Module, "module falls back to the filename")
	assert.Equal(t, "Call filter().", answer.RawResponse)
	assert.Contains(t, answer.Response, "**Relevant Course References:**")
	assert.Contains(t, answer.Response, "- **Data Wrangling** (Timestamp: 12:30) (Page: 4)")

	last := sent[len(sent)-1].Content
	assert.Contains(t, last, contextMarker)
	assert.Contains(t, last, "Use filter() to keep rows.")
	assert.NotContains(t, last, "misc.pdf")
	assert.True(t, strings.HasSuffix(last, "User question: How do I filter rows?"))

	turns := hist.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "Call filter().", turns[0].Answer)
	assert.Len(t, turns[0].References, 2)
}

func TestAsk_LexicalRerank(t *testing.T) {
	bot, m := newMockBot(t)
	vec := []float32{1}

	m.store.EXPECT().Count(gomock.Any(), "test").Return(2, nil)
	m.embedder.EXPECT().EmbedQuery(gomock.Any(), gomock.Any()).Return(vec, nil)
	m.store.EXPECT().Search(gomock.Any(), "test", vec, 2, nil).Return([]vectorstore.SearchResult{
		{PointID: "generic", Score: 0.71, Meta: map[string]any{"filename": "a.pdf"}},
		{PointID: "specific", Score: 0.70, Meta: map[string]any{"filename": "b.pdf"}},
	}, nil)
	m.chunks.EXPECT().GetByID(gomock.Any(), "generic").Return(&storage.ChunkRecord{Text: "Some general remarks about the course."}, nil)
	m.chunks.EXPECT().GetByID(gomock.Any(), "specific").Return(&storage.ChunkRecord{Text: "ggplot builds plots layer by layer with ggplot."}, nil)
	m.llm.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return("ok", nil)

	answer, err := bot.Ask(context.Background(), nil, AskRequest{Question: "ggplot layers", UseContext: true, K: 1})
	require.NoError(t, err)
	require.Len(t, answer.References, 1)
	assert.Equal(t, "b.pdf", answer.References[0].Source)
}

func TestAsk_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   AskRequest
		field string
	}{
		{name: "empty question", req: AskRequest{Question: ""}, field: "question"},
		{name: "whitespace question", req: AskRequest{Question: " \n\t"}, field: "question"},
		{name: "negative k", req: AskRequest{Question: "q", K: -1}, field: "k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, _ := newMockBot(t)
			_, err := bot.Ask(context.Background(), conversation.NewHistory(), tt.req)
			require.ErrorIs(t, err, service.ErrInvalidInput)
			var ve *service.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestAsk_CompletionFailureIsExternal(t *testing.T) {
	bot, m := newMockBot(t)
	hist := conversation.NewHistory()
	m.llm.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("bad status 500: boom"))

	_, err := bot.Ask(context.Background(), hist, AskRequest{Question: "q"})
	require.ErrorIs(t, err, service.ErrExternalService)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 0, hist.Len(), "failed turns are not recorded")
}

func TestAsk_MissingCredential(t *testing.T) {
	unavailable := llm.Unavailable{Err: service.ErrMissingCredential, Dim: 3}
	bot := New(testConfig(), Deps{Embedder: unavailable, LLM: unavailable, CredentialErr: service.ErrMissingCredential})

	_, err := bot.Ask(context.Background(), conversation.NewHistory(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, service.ErrMissingCredential)

	_, err = bot.Recommend(context.Background(), "vectors", 3)
	assert.ErrorIs(t, err, service.ErrMissingCredential)

	_, err = bot.Index(context.Background(), IndexRequest{})
	assert.ErrorIs(t, err, service.ErrMissingCredential)
}

func TestAsk_SendsRecentHistory(t *testing.T) {
	bot, m := newMockBot(t)
	hist := conversation.NewHistory()
	for i := 0; i < 5; i++ {
		require.NoError(t, hist.Append(context.Background(), conversation.Turn{Question: "q" + string(rune('0'+i)), Answer: "a"}))
	}

	var sent []llm.Message
	m.llm.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(capture(&sent, "ok"))

	_, err := bot.Ask(context.Background(), hist, AskRequest{Question: "next"})
	require.NoError(t, err)

	// system + 3 turns * 2 + question
	require.Len(t, sent, 8)
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.Equal(t, "q2", sent[1].Content)
	assert.Equal(t, 6, hist.Len())
}

func TestIndex_RejectsConcurrentRun(t *testing.T) {
	bot := New(testConfig(), Deps{Pipeline: &indexer.Pipeline{}})
	bot.indexing.Store(true)

	_, err := bot.Index(context.Background(), IndexRequest{})
	assert.ErrorIs(t, err, service.ErrIndexInProgress)

	err = bot.IndexAsync(context.Background(), IndexRequest{}, nil)
	assert.ErrorIs(t, err, service.ErrIndexInProgress)
}

func TestRecommend(t *testing.T) {
	bot, m := newMockBot(t)
	vec := []float32{0, 1}

	m.store.EXPECT().Count(gomock.Any(), "test").Return(10, nil)
	m.embedder.EXPECT().EmbedQuery(gomock.Any(), "data frames").Return(vec, nil)
	m.store.EXPECT().Search(gomock.Any(), "test", vec, 3, nil).Return([]vectorstore.SearchResult{
		{PointID: "c1", Score: 0.8, Meta: map[string]any{"title": "Intro to R", "filename": "intro.pdf", "page": float64(4)}},
		{PointID: "c2", Score: 0.7, Meta: map[string]any{"filename": "frames.pdf", "page": 7}},
	}, nil)

	recs, err := bot.Recommend(context.Background(), " data frames ", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, Recommendation{
		Topic:          "data frames",
		Module:         "Intro to R",
		Page:           4,
		Source:         "intro.pdf",
		RelevanceScore: float64(float32(0.8)),
		Suggestion:     "Review Intro to R on page 4",
	}, recs[0])
	assert.Equal(t, "Review frames on page 7", recs[1].Suggestion)
}

func TestRecommend_DropsHitsBelowThreshold(t *testing.T) {
	bot, m := newMockBot(t)
	vec := []float32{1, 0}

	m.store.EXPECT().Count(gomock.Any(), "test").Return(10, nil)
	m.embedder.EXPECT().EmbedQuery(gomock.Any(), "ggplot2").Return(vec, nil)
	m.store.EXPECT().Search(gomock.Any(), "test", vec, 3, nil).Return([]vectorstore.SearchResult{
		{PointID: "c1", Score: 0.9, Meta: map[string]any{"title": "Graphics", "page": 2}},
		{PointID: "c2", Score: 0.12, Meta: map[string]any{"title": "Plotting", "page": 9}},
	}, nil)

	recs, err := bot.Recommend(context.Background(), "ggplot2", 3)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Graphics", recs[0].Module)
}

func TestRecommend_Validation(t *testing.T) {
	bot, _ := newMockBot(t)

	_, err := bot.Recommend(context.Background(), "", 3)
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = bot.Recommend(context.Background(), "loops", -2)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestRecommend_ClampsCount(t *testing.T) {
	bot, m := newMockBot(t)
	m.store.EXPECT().Count(gomock.Any(), "test").Return(1, nil)
	m.embedder.EXPECT().EmbedQuery(gomock.Any(), "loops").Return([]float32{1}, nil)
	m.store.EXPECT().Search(gomock.Any(), "test", gomock.Any(), maxK, nil).Return(nil, nil)

	recs, err := bot.Recommend(context.Background(), "loops", 500)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSearch(t *testing.T) {
	bot, m := newMockBot(t)
	m.store.EXPECT().Count(gomock.Any(), "test").Return(2, nil)
	m.embedder.EXPECT().EmbedQuery(gomock.Any(), "apply").Return([]float32{1}, nil)
	m.store.EXPECT().Search(gomock.Any(), "test", gomock.Any(), 3, nil).Return([]vectorstore.SearchResult{
		{PointID: "c1", Score: 0.9, Meta: map[string]any{"page": 1}},
		{PointID: "gone", Score: 0.6, Meta: map[string]any{"page": 2}},
		{PointID: "weak", Score: 0.12, Meta: map[string]any{"page": 3}},
	}, nil)
	m.chunks.EXPECT().GetByID(gomock.Any(), "c1").Return(&storage.ChunkRecord{Text: "sapply() returns a vector."}, nil)
	m.chunks.EXPECT().GetByID(gomock.Any(), "gone").Return(nil, storage.ErrNotFound)

	hits, err := bot.Search(context.Background(), "apply", 3)
	require.NoError(t, err)
	require.Len(t, hits, 2, "hits below the similarity threshold are dropped")
	assert.Equal(t, "sapply() returns a vector.", hits[0].Text)
	assert.Empty(t, hits[1].Text)
	for _, h := range hits {
		assert.NotEqual(t, "weak", h.ChunkID)
	}
}

// bagEmbedder hashes words into a small vector so texts sharing words are similar.
type bagEmbedder struct{}

const bagDim = 32

func (bagEmbedder) embed(text string) []float32 {
	vec := make([]float32, bagDim)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%bagDim]++
	}
	return vec
}

func (e bagEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e bagEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (bagEmbedder) Dimension() int { return bagDim }

func TestChatbot_IndexThenAsk(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := t.TempDir()

	db, err := storage.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))
	docs := storage.NewDocumentRepo(db)
	chunks := storage.NewChunkRepo(db)

	store, err := vectorstore.NewLocalStore(filepath.Join(dir, "vector_db"))
	require.NoError(t, err)

	pdfDir := filepath.Join(dir, "pdfs")
	require.NoError(t, os.MkdirAll(pdfDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "vectors.pdf"), []byte("v1"), 0o644))

	extractor := pdf_mocks.NewMockExtractor(ctrl)
	extractor.EXPECT().Extract(gomock.Any(), filepath.Join(pdfDir, "vectors.pdf")).Return(&pdf.Document{
		Metadata: pdf.Metadata{Title: "Vectors in R", Filename: "vectors.pdf", Pages: 1},
		Pages:    []pdf.Page{{Number: 1, Text: "Vectors are created with the c function. Vectors hold values of one type."}},
	}, nil).Times(1)

	var sent []llm.Message
	completer := mocks.NewMockCompleter(ctrl)
	completer.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(capture(&sent, "Use c().")).Times(1)

	cfg := testConfig()
	cfg.PDFDir = pdfDir
	cfg.SimilarityThreshold = 0.1
	pipeline := indexer.NewPipeline(extractor, docs, chunks, bagEmbedder{}, store, cfg.Collection, indexer.NewChunker(500, 0))
	bot := New(cfg, Deps{Pipeline: pipeline, Store: store, Documents: docs, Chunks: chunks, Embedder: bagEmbedder{}, LLM: completer})
	hist := conversation.NewHistory()

	// Empty index first.
	_, err = bot.Ask(context.Background(), hist, AskRequest{Question: "vectors", UseContext: true})
	require.ErrorIs(t, err, vectorstore.ErrNotIndexed)

	res, err := bot.Index(context.Background(), IndexRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.Same(t, res, bot.LastIndex())
	assert.False(t, bot.IsIndexing())

	// A second run without force must not re-extract or duplicate.
	res, err = bot.Index(context.Background(), IndexRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	answer, err := bot.Ask(context.Background(), hist, AskRequest{Question: "How are vectors created?", UseContext: true})
	require.NoError(t, err)
	assert.True(t, answer.ContextUsed)
	require.NotEmpty(t, answer.References)
	assert.Equal(t, "Vectors in R", answer.References[0].Module)
	assert.Contains(t, sent[len(sent)-1].Content, "Vectors are created with the c function.")

	info := bot.SystemInfo(context.Background(), hist)
	assert.Equal(t, 1, info.VectorStore.TotalEntries)
	assert.Equal(t, 1, info.VectorStore.Documents)
	assert.Equal(t, bagDim, info.VectorStore.Dimension)
	assert.Equal(t, 1, info.ConversationHistory)
	assert.Equal(t, "gpt-test", info.Model)
	require.NotNil(t, info.IndexStats)
	assert.Equal(t, 1, info.IndexStats.Chunks)
	require.NotNil(t, info.LastIndex)
}

func TestChatbot_IndexAsync(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))
	store, err := vectorstore.NewLocalStore(filepath.Join(dir, "vector_db"))
	require.NoError(t, err)

	docs, chunks := storage.NewDocumentRepo(db), storage.NewChunkRepo(db)
	pipeline := indexer.NewPipeline(pdf.NewExtractor(), docs, chunks, bagEmbedder{}, store, "test", nil)
	cfg := testConfig()
	cfg.PDFDir = filepath.Join(dir, "missing")
	bot := New(cfg, Deps{Pipeline: pipeline, Store: store, Documents: docs, Chunks: chunks, Embedder: bagEmbedder{}})

	done := make(chan *indexer.Result, 1)
	require.NoError(t, bot.IndexAsync(context.Background(), IndexRequest{}, func(res *indexer.Result, err error) {
		assert.NoError(t, err)
		done <- res
	}))
	res := <-done
	assert.Equal(t, indexer.StatusWarning, res.Status)
}

func TestSystemInfo_StoreError(t *testing.T) {
	bot, m := newMockBot(t)
	m.embedder.EXPECT().Dimension().Return(1536)
	m.store.EXPECT().Count(gomock.Any(), "test").Return(0, errors.New("connection refused"))
	m.docs.EXPECT().List(gomock.Any()).Return(nil, nil)
	m.chunks.EXPECT().ListAll(gomock.Any()).Return(nil, nil)

	info := bot.SystemInfo(context.Background(), nil)
	assert.Equal(t, "connection refused", info.VectorStore.Error)
	assert.Equal(t, 1536, info.VectorStore.Dimension)
	assert.Equal(t, 0, info.ConversationHistory)
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want string
	}{
		{name: "title", meta: map[string]any{"title": "Intro", "filename": "intro.pdf"}, want: "Intro"},
		{name: "blank title", meta: map[string]any{"title": "  ", "filename": "week1.pdf"}, want: "week1"},
		{name: "source only", meta: map[string]any{"source": "slides/ggplot.pdf"}, want: "ggplot"},
		{name: "nothing", meta: map[string]any{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, moduleName(tt.meta))
		})
	}
}
