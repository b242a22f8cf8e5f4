// Package retriever turns a question into the document chunks most relevant
// to it: embed the question, nearest-neighbor search the vector index, filter
// by similarity threshold.
package retriever

import (
	"context"
	"fmt"

	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/store"
	"github.com/uovfts/faculty-assistant/internal/vectorstore"
)

// Embedder embeds a search question. Implemented by *embed.Client.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs nearest-neighbor search. Implemented by *vectorstore.Store.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]vectorstore.Match, error)
}

// Chunk is one retrieved document slice with its similarity to the question.
type Chunk struct {
	ID         string
	SourceFile string
	Title      string
	Section    string
	Page       int
	ChunkIndex int
	Content    string
	Similarity float64
}

// Retriever performs threshold-filtered vector retrieval.
type Retriever struct {
	embedder  Embedder
	searcher  Searcher
	topK      int
	threshold float64
	logger    log.Logger
}

// New creates a Retriever with fixed topK and similarity threshold.
func New(embedder Embedder, searcher Searcher, topK int, threshold float64, logger log.Logger) *Retriever {
	return &Retriever{
		embedder:  embedder,
		searcher:  searcher,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// Retrieve returns the chunks relevant to the question, ordered by descending
// similarity. An empty result is not an error. Embedding failures surface as
// embed.ErrEmbedding, index failures as vectorstore.ErrUnavailable; the
// retriever never retries, that policy belongs to the orchestrator.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]Chunk, error) {
	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := r.searcher.Search(ctx, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	chunks := make([]Chunk, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < r.threshold {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:         m.ID,
			SourceFile: m.SourceFile,
			Title:      m.Title,
			Section:    m.Section,
			Page:       m.Page,
			ChunkIndex: m.ChunkIndex,
			Content:    m.Content,
			Similarity: m.Similarity,
		})
	}

	r.logger.Debug("retrieval finished",
		"candidates", len(matches),
		"above_threshold", len(chunks),
		"threshold", r.threshold)

	return chunks, nil
}

// Citations extracts the distinct sources of the given chunks, deduplicated
// by (source file, page) and ordered by first appearance. Every citation is
// backed by an input chunk; nothing is ever invented here.
func Citations(chunks []Chunk) []store.Citation {
	type key struct {
		source string
		page   int
	}
	seen := make(map[key]bool, len(chunks))
	citations := make([]store.Citation, 0, len(chunks))
	for _, c := range chunks {
		k := key{source: c.SourceFile, page: c.Page}
		if seen[k] {
			continue
		}
		seen[k] = true
		citations = append(citations, store.Citation{
			Source:     c.SourceFile,
			Title:      c.Title,
			Page:       c.Page,
			Section:    c.Section,
			Similarity: c.Similarity,
		})
	}
	return citations
}
