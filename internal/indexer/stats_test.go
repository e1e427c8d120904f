package indexer

import (
	"context"
	"strings"
	"testing"
)

func TestComputeStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats, err := env.pipeline.Stats(ctx, "test-embedding-model")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Documents != 0 || stats.Chunks != 0 {
		t.Errorf("empty index stats = %+v, want zeros", stats)
	}
	if stats.ChunkerVersion != ChunkerVersion {
		t.Errorf("ChunkerVersion = %s, want %s", stats.ChunkerVersion, ChunkerVersion)
	}
	if len(stats.IndexVersion) != 16 {
		t.Errorf("IndexVersion = %q, want 16 hex chars", stats.IndexVersion)
	}

	env.writePDF(t, "module1.pdf", moduleText)
	env.writePDF(t, "blank.pdf", "   ")
	res := env.run(t, false)

	stats, err = env.pipeline.Stats(ctx, "test-embedding-model")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	if stats.DocumentsWith0Chunks != 1 {
		t.Errorf("DocumentsWith0Chunks = %d, want 1", stats.DocumentsWith0Chunks)
	}
	if stats.Chunks != res.Chunks {
		t.Errorf("Chunks = %d, want %d", stats.Chunks, res.Chunks)
	}
	if stats.CodeChunks != 1 {
		t.Errorf("CodeChunks = %d, want 1", stats.CodeChunks)
	}
	if stats.Pages != 2 {
		t.Errorf("Pages = %d, want 2", stats.Pages)
	}
	if stats.ChunkTokenStats.Min < 1 || stats.ChunkTokenStats.Max < stats.ChunkTokenStats.Min {
		t.Errorf("ChunkTokenStats = %+v, want min >= 1 and max >= min", stats.ChunkTokenStats)
	}
}

func TestIndexVersion(t *testing.T) {
	base := indexVersion("text-embedding-3-small", 1000, 200)
	if base != indexVersion("text-embedding-3-small", 1000, 200) {
		t.Error("indexVersion() not deterministic")
	}
	if base == indexVersion("text-embedding-3-large", 1000, 200) {
		t.Error("indexVersion() should change with the embedding model")
	}
	if base == indexVersion("text-embedding-3-small", 500, 200) {
		t.Error("indexVersion() should change with the chunk size")
	}
	if strings.Trim(base, "0123456789abcdef") != "" {
		t.Errorf("indexVersion() = %q, want hex", base)
	}
}

func TestComputeTokenStats(t *testing.T) {
	tests := []struct {
		name     string
		input    []int
		expected ChunkTokenStats
	}{
		{
			name:     "empty",
			input:    []int{},
			expected: ChunkTokenStats{},
		},
		{
			name:     "single value",
			input:    []int{100},
			expected: ChunkTokenStats{Min: 100, Max: 100, Mean: 100, P95: 100},
		},
		{
			name:     "multiple values",
			input:    []int{10, 20, 30, 40, 50},
			expected: ChunkTokenStats{Min: 10, Max: 50, Mean: 30, P95: 50},
		},
		{
			name:     "unsorted input",
			input:    []int{50, 10, 40, 20, 30},
			expected: ChunkTokenStats{Min: 10, Max: 50, Mean: 30, P95: 50},
		},
		{
			name:     "fractional mean",
			input:    []int{1, 2},
			expected: ChunkTokenStats{Min: 1, Max: 2, Mean: 1.5, P95: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := computeTokenStats(tt.input)
			if result != tt.expected {
				t.Errorf("computeTokenStats() = %+v, want %+v", result, tt.expected)
			}
		})
	}
}
