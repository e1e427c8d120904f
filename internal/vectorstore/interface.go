package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks thinkr-chatbot/internal/vectorstore VectorStore

import (
	"context"
	"errors"
)

// ErrNotIndexed is returned by Search when the collection is missing or holds no points.
var ErrNotIndexed = errors.New("not indexed")

// ErrDimensionMismatch is returned when a vector does not match the collection's dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k nearest points, best first. Filters are exact matches on metadata.
	// Returns ErrNotIndexed when the collection is missing or empty.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// Count returns the number of points in the collection, 0 if it does not exist.
	Count(ctx context.Context, collection string) (int, error)

	// EnsureCollection creates the collection if needed and validates its vector size.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Reset drops every point in the collection.
	Reset(ctx context.Context, collection string) error
}
