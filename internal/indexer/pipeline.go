package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/pdf"
	"thinkr-chatbot/internal/storage"
	"thinkr-chatbot/internal/vectorstore"
)

// chunkNamespace seeds the name-based UUIDs used as chunk and point ids.
var chunkNamespace = uuid.MustParse("6f1c3d4e-9b2a-4f5e-8c7d-2a1b0e9f8d7c")

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Pipeline turns a directory of PDFs into chunk rows in SQLite and points in the vector store.
type Pipeline struct {
	extractor   pdf.Extractor
	docRepo     storage.DocumentStore
	chunkRepo   storage.ChunkStore
	embedder    Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	chunker     *Chunker
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	extractor pdf.Extractor,
	docRepo storage.DocumentStore,
	chunkRepo storage.ChunkStore,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	chunker *Chunker,
) *Pipeline {
	if chunker == nil {
		chunker = NewChunker(defaultChunkSize, defaultOverlap)
	}
	return &Pipeline{
		extractor:   extractor,
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		chunker:     chunker,
	}
}

// Options controls a single Run.
type Options struct {
	PDFDir string
	// Force discards the whole index before indexing.
	Force bool
	// Progress, when set, is called after each file.
	Progress func(Progress)
}

// Progress reports how far a Run has got.
type Progress struct {
	Done  int
	Total int
	File  string
}

// Run status values.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

// FileFailure records a PDF that could not be indexed.
type FileFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Result summarises a Run.
type Result struct {
	Status       string        `json:"status"`
	Message      string        `json:"message"`
	Scanned      int           `json:"scanned"`
	Indexed      int           `json:"indexed"`
	Skipped      int           `json:"skipped"`
	Removed      int           `json:"removed"`
	Chunks       int           `json:"chunks"`
	Failed       []FileFailure `json:"failed"`
	TotalEntries int           `json:"total_entries"`
	Force        bool          `json:"force"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome of indexing a single document.
type Outcome int

const (
	OutcomeIndexed Outcome = iota
	OutcomeSkipped
)

// Run indexes every PDF under opts.PDFDir.
// Unchanged files are skipped, changed files are replaced and files that
// disappeared are pruned. Per-file failures are recorded in the result and
// never abort the batch.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	result := &Result{
		Failed:    []FileFailure{},
		Force:     opts.Force,
		StartedAt: time.Now().UTC(),
	}

	if opts.Force {
		if err := p.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	if err := p.vectorStore.EnsureCollection(ctx, p.collection, p.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to prepare collection: %w", err)
	}

	files, err := pdf.ScanDir(ctx, opts.PDFDir)
	if errors.Is(err, pdf.ErrDirNotFound) {
		logger.WarnContext(ctx, "pdf directory not found", "pdf_dir", opts.PDFDir)
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("PDF directory %s not found", opts.PDFDir)
		return p.finish(ctx, result)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", opts.PDFDir, err)
	}
	result.Scanned = len(files)

	logger.InfoContext(ctx, "starting indexing", "pdf_dir", opts.PDFDir, "total_files", len(files), "force", opts.Force)

	seen := make(map[string]struct{}, len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[file.RelPath] = struct{}{}

		outcome, chunks, err := p.IndexDocument(ctx, file)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "skipping pdf", "rel_path", file.RelPath, "error", err)
			result.Failed = append(result.Failed, FileFailure{File: file.RelPath, Error: err.Error()})
		case outcome == OutcomeSkipped:
			result.Skipped++
		default:
			result.Indexed++
			result.Chunks += chunks
		}

		if opts.Progress != nil {
			opts.Progress(Progress{Done: i + 1, Total: len(files), File: file.RelPath})
		}
	}

	removed, err := p.prune(ctx, seen)
	if err != nil {
		return nil, err
	}
	result.Removed = removed

	switch {
	case len(files) == 0:
		result.Status = StatusWarning
		result.Message = "No PDF chunks found to index"
	case len(result.Failed) > 0:
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Indexed %d of %d PDFs, %d failed", result.Indexed+result.Skipped, len(files), len(result.Failed))
	default:
		result.Status = StatusSuccess
		result.Message = fmt.Sprintf("Successfully indexed %d PDFs (%d new or changed, %d unchanged)", len(files), result.Indexed, result.Skipped)
	}

	return p.finish(ctx, result)
}

func (p *Pipeline) finish(ctx context.Context, result *Result) (*Result, error) {
	total, err := p.vectorStore.Count(ctx, p.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to count index entries: %w", err)
	}
	result.TotalEntries = total
	result.FinishedAt = time.Now().UTC()

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "indexing completed",
		"status", result.Status,
		"scanned", result.Scanned,
		"indexed", result.Indexed,
		"skipped", result.Skipped,
		"failed", len(result.Failed),
		"removed", result.Removed,
		"chunks", result.Chunks,
		"total_entries", result.TotalEntries,
		"duration", result.Duration(),
	)
	return result, nil
}

// IndexDocument indexes one PDF. It is skipped when its content hash matches the stored one.
// On success the document's old chunks and points are replaced by the new ones.
func (p *Pipeline) IndexDocument(ctx context.Context, file pdf.File) (Outcome, int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return OutcomeIndexed, 0, fmt.Errorf("failed to read file %s: %w", file.AbsPath, err)
	}
	sum := sha256.Sum256(content)
	hashHex := hex.EncodeToString(sum[:])

	existing, err := p.docRepo.GetByPath(ctx, file.RelPath)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return OutcomeIndexed, 0, fmt.Errorf("failed to check existing document: %w", err)
	}
	if existing != nil && existing.Hash == hashHex {
		logger.DebugContext(ctx, "skipping unchanged file", "rel_path", file.RelPath, "hash", hashHex)
		return OutcomeSkipped, 0, nil
	}

	doc, err := p.extractor.Extract(ctx, file.AbsPath)
	if err != nil {
		return OutcomeIndexed, 0, err
	}

	chunks := p.chunker.ChunkPages(doc.Pages)
	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks generated", "rel_path", file.RelPath, "pages", doc.Metadata.Pages)
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err = p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return OutcomeIndexed, 0, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vectors) != len(chunks) {
			return OutcomeIndexed, 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors))
		}
	}

	if existing != nil {
		if err := p.removeChunks(ctx, existing.ID); err != nil {
			return OutcomeIndexed, 0, err
		}
	}

	record := &storage.DocumentRecord{
		RelPath:  file.RelPath,
		Filename: filepath.Base(file.RelPath),
		Title:    doc.Metadata.Title,
		Author:   doc.Metadata.Author,
		Subject:  doc.Metadata.Subject,
		Pages:    doc.Metadata.Pages,
		Hash:     hashHex,
	}
	if existing != nil {
		record.ID = existing.ID
	}
	if err := p.docRepo.Upsert(ctx, record); err != nil {
		return OutcomeIndexed, 0, fmt.Errorf("failed to upsert document: %w", err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		chunkID := generateStableChunkID(file.RelPath, chunk.Page, chunk.Index, chunk.Text)

		if err := p.chunkRepo.Insert(ctx, &storage.ChunkRecord{
			ID:         chunkID,
			DocumentID: record.ID,
			ChunkIndex: chunk.Index,
			Page:       chunk.Page,
			Timestamp:  chunk.Timestamp,
			IsCode:     chunk.IsCode,
			Text:       chunk.Text,
		}); err != nil {
			p.rollback(ctx, record.ID)
			return OutcomeIndexed, 0, fmt.Errorf("failed to insert chunk: %w", err)
		}

		points[i] = vectorstore.Point{
			ID:  chunkID,
			Vec: vectors[i],
			Meta: map[string]any{
				"document_id": record.ID,
				"source":      file.RelPath,
				"filename":    record.Filename,
				"title":       record.Title,
				"author":      record.Author,
				"page":        chunk.Page,
				"timestamp":   chunk.Timestamp,
				"is_code":     chunk.IsCode,
				"chunk_index": chunk.Index,
			},
		}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		p.rollback(ctx, record.ID)
		return OutcomeIndexed, 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	logger.InfoContext(ctx, "indexed pdf", "rel_path", file.RelPath, "pages", doc.Metadata.Pages, "chunks", len(chunks), "title", record.Title)
	return OutcomeIndexed, len(chunks), nil
}

// RemoveDocument deletes a document with its chunks and points. Unknown paths are ignored.
func (p *Pipeline) RemoveDocument(ctx context.Context, relPath string) error {
	doc, err := p.docRepo.GetByPath(ctx, relPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up document %s: %w", relPath, err)
	}
	if err := p.removeChunks(ctx, doc.ID); err != nil {
		return err
	}
	if err := p.docRepo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", relPath, err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "removed pdf from index", "rel_path", relPath)
	return nil
}

// ClearAll drops every point and every document row.
func (p *Pipeline) ClearAll(ctx context.Context) error {
	if err := p.vectorStore.Reset(ctx, p.collection); err != nil {
		return fmt.Errorf("failed to reset vector index: %w", err)
	}
	if err := p.docRepo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "index cleared", "collection", p.collection)
	return nil
}

// prune removes documents whose files are no longer present.
func (p *Pipeline) prune(ctx context.Context, seen map[string]struct{}) (int, error) {
	docs, err := p.docRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	removed := 0
	for _, doc := range docs {
		if _, ok := seen[doc.RelPath]; ok {
			continue
		}
		if err := p.RemoveDocument(ctx, doc.RelPath); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (p *Pipeline) removeChunks(ctx context.Context, documentID string) error {
	oldIDs, err := p.chunkRepo.ListIDsByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list old chunk IDs: %w", err)
	}
	if len(oldIDs) == 0 {
		return nil
	}
	if err := p.vectorStore.Delete(ctx, p.collection, oldIDs); err != nil {
		return fmt.Errorf("failed to delete old points: %w", err)
	}
	if err := p.chunkRepo.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}
	return nil
}

// rollback removes a partially written document so the next run retries it.
func (p *Pipeline) rollback(ctx context.Context, documentID string) {
	logger := contextutil.LoggerFromContext(ctx)
	if err := p.removeChunks(ctx, documentID); err != nil {
		logger.WarnContext(ctx, "rollback: failed to remove chunks", "document_id", documentID, "error", err)
	}
	if err := p.docRepo.Delete(ctx, documentID); err != nil {
		logger.WarnContext(ctx, "rollback: failed to remove document", "document_id", documentID, "error", err)
	}
}

// generateStableChunkID derives a UUID from the chunk's position and content,
// so identical input always maps to the same point id.
func generateStableChunkID(relPath string, page, index int, text string) string {
	name := relPath + "\x00" + strconv.Itoa(page) + "\x00" + strconv.Itoa(index) + "\x00" + text
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
