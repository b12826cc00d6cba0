package models

import (
	"time"
)

// DocumentReference identifies one stored document by its container and object name.
type DocumentReference struct {
	Container string `json:"container"`
	Name      string `json:"name"`
}

func (r DocumentReference) String() string {
	return r.Container + "/" + r.Name
}

// RawDocument is the decoded text of a document. It only lives for one ingestion run.
type RawDocument struct {
	Ref     DocumentReference
	Content string
}

// Chunk is one bounded slice of a RawDocument.
//
// Index: zero-based position of the chunk in the document.
// Text:  chunk content, always a substring of the source text.
// Start: offset (in characters) of the first character of Text in the source.
// End:   offset (in characters) one past the last character of Text.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// RecordMetadata is stored next to every vector in the index.
type RecordMetadata struct {
	Source     string `json:"source"`
	Container  string `json:"container"`
	ChunkIndex int    `json:"chunk_index"`
	Category   string `json:"category"`
}

// IndexRecord is the unit written to the vector index.
type IndexRecord struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Vector   []float32      `json:"-"`
	Metadata RecordMetadata `json:"metadata"`
}

// SearchResult is one hit returned by a similarity search.
type SearchResult struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// IngestResult summarises one ingestion run.
type IngestResult struct {
	Ref        DocumentReference `json:"document"`
	State      string            `json:"state"`
	Chunks     int               `json:"chunks"`
	Records    int               `json:"records"`
	Error      string            `json:"error,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Answer is a grounded response from the query side.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}
