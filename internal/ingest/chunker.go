package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/uovfts/faculty-assistant/internal/vectorstore"
)

// Chunker splits cleaned text into token-bounded, overlapping windows.
// Sizing uses the cl100k_base encoding so chunk budgets line up with the
// prompt builder's accounting.
type Chunker struct {
	enc     *tiktoken.Tiktoken
	size    int
	overlap int
}

// NewChunker creates a chunker producing chunks of at most size tokens with
// the given overlap between consecutive chunks.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}
	return &Chunker{enc: enc, size: size, overlap: overlap}, nil
}

// Chunk splits one passage into vectorstore chunks. Indexing starts at
// startIndex so multi-passage documents keep a single contiguous sequence.
// Embeddings are left empty for the pipeline to fill.
func (c *Chunker) Chunk(p Passage, doc Metadata, startIndex int) []vectorstore.Chunk {
	tokens := c.enc.Encode(p.Text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []vectorstore.Chunk
	for start := 0; start < len(tokens); start += step {
		end := min(start+c.size, len(tokens))
		index := startIndex + len(chunks)

		chunks = append(chunks, vectorstore.Chunk{
			ID:         ChunkID(doc.SourceFile, index),
			SourceFile: doc.SourceFile,
			Title:      doc.Title,
			Section:    p.Section,
			Page:       p.Page,
			ChunkIndex: index,
			TokenCount: end - start,
			Content:    c.enc.Decode(tokens[start:end]),
		})

		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// ChunkID derives a stable chunk identifier. Re-ingesting the same file
// yields the same ids, so upserts replace rows instead of duplicating them.
func ChunkID(sourceFile string, index int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d", sourceFile, index))
	return hex.EncodeToString(sum[:])
}
