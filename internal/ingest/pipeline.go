// Package ingest turns faculty documents into indexed, embedded chunks.
//
// The pipeline runs load, clean, chunk, embed, upsert per file. Files that
// fail to load are skipped with a log entry so one bad document never
// aborts a directory run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/vectorstore"
)

// Embedder produces passage embeddings for document chunks.
type Embedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is the chunk index the pipeline writes to. Implemented by
// *vectorstore.Store.
type Index interface {
	UpsertDocument(ctx context.Context, doc vectorstore.Document) error
	UpsertChunks(ctx context.Context, chunks []vectorstore.Chunk) error
	DeleteBySource(ctx context.Context, sourceFile string) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
}

// Config holds pipeline tuning knobs.
type Config struct {
	EmbedBatchSize  int
	UpsertBatchSize int
	Clean           CleanOptions
}

// Stats summarizes one ingestion run.
type Stats struct {
	Files   int
	Chunks  int
	Skipped int
}

// Pipeline ingests documents into the vector index.
type Pipeline struct {
	loader   *Loader
	chunker  *Chunker
	embedder Embedder
	index    Index
	cfg      Config
	logger   log.Logger
}

// New creates an ingestion pipeline.
func New(loader *Loader, chunker *Chunker, embedder Embedder, index Index, cfg Config, logger log.Logger) *Pipeline {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = 100
	}
	return &Pipeline{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProcessDirectory ingests every supported file under dir, recursively.
// Load failures skip the file; embedding and index failures abort the run
// since continuing would leave the index inconsistent.
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir string, recreate bool) (Stats, error) {
	var stats Stats

	supported := SupportedExtensions()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !slices.Contains(supported, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := p.ProcessFile(ctx, path, recreate)
		if err != nil {
			if isLoadErr(err) {
				p.logger.Warn("skipping file", "path", path, "error", err)
				stats.Skipped++
				return nil
			}
			return fmt.Errorf("processing %s: %w", path, err)
		}

		stats.Files++
		stats.Chunks += n
		return nil
	})
	if err != nil {
		return stats, err
	}

	total, err := p.index.CountChunks(ctx)
	if err != nil {
		p.logger.Warn("failed to count indexed chunks", "error", err)
	} else {
		p.logger.Info("ingestion complete",
			"files", stats.Files,
			"chunks", stats.Chunks,
			"skipped", stats.Skipped,
			"index_total", total,
		)
	}
	return stats, nil
}

// ProcessFile ingests a single file and reports how many chunks were
// written. With recreate set, previously indexed chunks for the same source
// are removed first.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, recreate bool) (int, error) {
	meta, passages, err := p.loader.Load(ctx, path)
	if err != nil {
		return 0, &loadError{err: err}
	}

	var chunks []vectorstore.Chunk
	for _, passage := range passages {
		passage.Text = Clean(passage.Text, p.cfg.Clean)
		if passage.Text == "" {
			continue
		}
		chunks = append(chunks, p.chunker.Chunk(passage, meta, len(chunks))...)
	}
	if len(chunks) == 0 {
		return 0, &loadError{err: fmt.Errorf("no text content in %s", path)}
	}

	if err := p.embed(ctx, chunks); err != nil {
		return 0, err
	}

	if recreate {
		deleted, err := p.index.DeleteBySource(ctx, meta.SourceFile)
		if err != nil {
			return 0, err
		}
		if deleted > 0 {
			p.logger.Info("removed stale chunks", "source", meta.SourceFile, "count", deleted)
		}
	}

	if err := p.index.UpsertDocument(ctx, vectorstore.Document{
		SourceFile:  meta.SourceFile,
		Title:       meta.Title,
		ContentType: meta.ContentType,
		TotalChunks: len(chunks),
	}); err != nil {
		return 0, err
	}

	for batch := range slices.Chunk(chunks, p.cfg.UpsertBatchSize) {
		if err := p.index.UpsertChunks(ctx, batch); err != nil {
			return 0, err
		}
	}

	p.logger.Info("ingested file",
		"source", meta.SourceFile,
		"content_type", meta.ContentType,
		"chunks", len(chunks),
	)
	return len(chunks), nil
}

// embed fills chunk embeddings in batches.
func (p *Pipeline) embed(ctx context.Context, chunks []vectorstore.Chunk) error {
	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := min(start+p.cfg.EmbedBatchSize, len(chunks))

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}

		vectors, err := p.embedder.EmbedPassages(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch at %d: %w", start, err)
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// loadError marks per-file failures that should skip the file rather than
// abort a directory run.
type loadError struct {
	err error
}

func (e *loadError) Error() string { return e.err.Error() }
func (e *loadError) Unwrap() error { return e.err }

func isLoadErr(err error) bool {
	var le *loadError
	return errors.As(err, &le)
}
