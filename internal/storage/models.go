package storage

import "time"

// DocumentRecord represents an indexed PDF file.
type DocumentRecord struct {
	ID        string // UUID
	RelPath   string // Path relative to the PDF directory, forward slashes
	Filename  string
	Title     string
	Author    string
	Subject   string
	Pages     int
	Hash      string // SHA256 hex string of file content
	IndexedAt time.Time
}

// ChunkRecord represents a chunk of PDF text, indexed for vector search.
type ChunkRecord struct {
	ID         string // UUID (same as the vector point ID)
	DocumentID string // UUID (foreign key to documents.id)
	ChunkIndex int    // Index within document (starts at 0)
	Page       int
	Timestamp  string
	IsCode     bool
	Text       string
}

// TurnRecord is one persisted question/answer exchange of a conversation session.
type TurnRecord struct {
	ID          int64
	SessionID   string
	Position    int    // 0-based order within the session
	Question    string
	Answer      string
	References  string // JSON array of references
	ContextUsed bool
	Model       string
	CreatedAt   time.Time
}
