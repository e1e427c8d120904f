package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"thinkr-chatbot/internal/storage"
)

const (
	// ChunkerVersion is the version identifier for the chunker implementation.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "v2.0-pdf"
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// IndexStats describes the current contents of the index.
type IndexStats struct {
	// Documents is the number of indexed PDFs.
	Documents int `json:"documents"`
	// DocumentsWith0Chunks is the number of PDFs that produced no text.
	DocumentsWith0Chunks int `json:"documents_with_0_chunks"`
	// Chunks is the number of stored chunks.
	Chunks int `json:"chunks"`
	// CodeChunks is the number of chunks holding a fenced code block.
	CodeChunks int `json:"code_chunks"`
	// Pages is the total page count over all documents.
	Pages int `json:"pages"`
	// ChunkTokenStats contains statistics about token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	ChunkerVersion  string          `json:"chunker_version"`
	// IndexVersion is a hash of chunker version, embedding model and chunking params.
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// Stats computes index statistics from the relational store.
func (p *Pipeline) Stats(ctx context.Context, embeddingModelName string) (*IndexStats, error) {
	return ComputeStats(ctx, p.docRepo, p.chunkRepo, p.chunker, embeddingModelName)
}

// ComputeStats computes index statistics from the given stores.
func ComputeStats(ctx context.Context, docRepo storage.DocumentStore, chunkRepo storage.ChunkStore, chunker *Chunker, embeddingModelName string) (*IndexStats, error) {
	docs, err := docRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	chunks, err := chunkRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	stats := &IndexStats{
		Documents:      len(docs),
		Chunks:         len(chunks),
		ChunkerVersion: ChunkerVersion,
	}

	perDoc := make(map[string]int, len(docs))
	tokenCounts := make([]int, 0, len(chunks))
	for _, chunk := range chunks {
		perDoc[chunk.DocumentID]++
		if chunk.IsCode {
			stats.CodeChunks++
		}
		// Estimate tokens from rune count (approximation: ~4 chars per token)
		tokenCount := int(math.Round(float64(utf8.RuneCountInString(chunk.Text)) / TokensPerRune))
		if tokenCount < 1 {
			tokenCount = 1
		}
		tokenCounts = append(tokenCounts, tokenCount)
	}
	for _, doc := range docs {
		stats.Pages += doc.Pages
		if perDoc[doc.ID] == 0 {
			stats.DocumentsWith0Chunks++
		}
	}
	stats.ChunkTokenStats = computeTokenStats(tokenCounts)

	size, overlap := defaultChunkSize, defaultOverlap
	if chunker != nil {
		size, overlap = chunker.ChunkSize, chunker.Overlap
	}
	stats.IndexVersion = indexVersion(embeddingModelName, size, overlap)

	return stats, nil
}

func indexVersion(embeddingModelName string, chunkSize, overlap int) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d|overlap=%d", ChunkerVersion, embeddingModelName, chunkSize, overlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
