package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbeddingsClient produces embeddings through langchaingo and validates their size.
type EmbeddingsClient struct {
	Model        string
	ExpectedSize int // Expected vector size for validation
	embedder     embeddings.Embedder
}

// NewEmbeddingsClient creates an embeddings client for an OpenAI-compatible API.
// baseURL is the API root without the /v1 suffix.
// All embeddings returned by EmbedTexts are validated against expectedSize.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize, batchSize int) (*EmbeddingsClient, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(strings.TrimRight(baseURL, "/")+"/v1"),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings model: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return NewEmbeddingsClientWithEmbedder(embedder, model, expectedSize), nil
}

// NewEmbeddingsClientWithEmbedder wraps an existing langchaingo embedder.
func NewEmbeddingsClientWithEmbedder(embedder embeddings.Embedder, model string, expectedSize int) *EmbeddingsClient {
	return &EmbeddingsClient{
		Model:        model,
		ExpectedSize: expectedSize,
		embedder:     embedder,
	}
}

// EmbedTexts generates embeddings for the given texts, one per input.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}

	for i, vec := range vectors {
		if err := c.validate(vec); err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
	}
	return vectors, nil
}

// EmbedQuery generates the embedding for a single search query.
func (c *EmbeddingsClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty query")
	}

	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if err := c.validate(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// Dimension returns the expected vector size.
func (c *EmbeddingsClient) Dimension() int {
	return c.ExpectedSize
}

func (c *EmbeddingsClient) validate(vec []float32) error {
	if c.ExpectedSize > 0 && len(vec) != c.ExpectedSize {
		return fmt.Errorf("has size %d, expected %d", len(vec), c.ExpectedSize)
	}
	return nil
}
