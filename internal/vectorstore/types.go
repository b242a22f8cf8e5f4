package vectorstore

import "time"

// Document is source-level metadata for an ingested file.
type Document struct {
	SourceFile  string
	Title       string
	ContentType string
	TotalChunks int
	IngestedAt  time.Time
}

// Chunk is one indexed slice of a document, ready for upsert.
type Chunk struct {
	ID         string // sha256(source_file:chunk_index), stable across re-ingestion
	SourceFile string
	Title      string
	Section    string
	Page       int
	ChunkIndex int
	TokenCount int
	Content    string
	Embedding  []float32
}

// Match is a search hit: the stored chunk fields plus cosine similarity
// in [0, 1], higher is closer.
type Match struct {
	ID         string
	SourceFile string
	Title      string
	Section    string
	Page       int
	ChunkIndex int
	Content    string
	Similarity float64
}
