package indexer

// Chunk represents a chunk of text from one page of a PDF.
type Chunk struct {
	Index     int    // Chunk index within the document (starts at 0)
	Page      int    // 1-based page number the chunk was taken from
	Text      string // Chunk text content
	Timestamp string // First lecture timestamp found in the text (e.g., "12:34"), empty if none
	IsCode    bool   // True when the chunk contains a fenced code block
}
