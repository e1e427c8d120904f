package llm

import "context"

// Unavailable stands in for clients that cannot be built, typically because no
// API key is configured. Every call returns Err.
type Unavailable struct {
	Err error
	Dim int
}

// ChatWithMessages returns u.Err.
func (u Unavailable) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	return "", u.Err
}

// EmbedTexts returns u.Err.
func (u Unavailable) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, u.Err
}

// EmbedQuery returns u.Err.
func (u Unavailable) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, u.Err
}

// Dimension returns the configured vector size.
func (u Unavailable) Dimension() int {
	return u.Dim
}
