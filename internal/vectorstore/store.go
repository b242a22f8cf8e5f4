// Package vectorstore manages the document index backed by PostgreSQL and
// pgvector. Chunks carry a 768-dimension embedding and are searched by cosine
// distance; similarity reported to callers is 1 - distance.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/uovfts/faculty-assistant/internal/log"
)

// ErrUnavailable indicates the index could not be reached or queried.
var ErrUnavailable = errors.New("vector store unavailable")

// DB is the subset of pgxpool.Pool the store depends on.
// Consumer-defined so tests can substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store provides vector search and ingestion writes over document_chunks.
// Safe for concurrent use.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store.
func New(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Search returns up to topK chunks nearest to the query embedding, ordered by
// descending similarity. Ties break on chunk id so the order is stable.
// Threshold filtering is the retriever's job, not the store's.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, source_file, title, section, page, chunk_index, content,
		       1 - (embedding <=> $1) AS similarity
		FROM document_chunks
		ORDER BY embedding <=> $1, id
		LIMIT $2`,
		pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: searching chunks: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.SourceFile, &m.Title, &m.Section, &m.Page,
			&m.ChunkIndex, &m.Content, &m.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %v", ErrUnavailable, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading chunks: %v", ErrUnavailable, err)
	}
	return matches, nil
}

// UpsertDocument records source-level metadata for an ingested file.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (source_file, title, content_type, total_chunks, ingested_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (source_file) DO UPDATE
		SET title = EXCLUDED.title,
		    content_type = EXCLUDED.content_type,
		    total_chunks = EXCLUDED.total_chunks,
		    ingested_at = now()`,
		doc.SourceFile, doc.Title, doc.ContentType, doc.TotalChunks)
	if err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.SourceFile, err)
	}
	return nil
}

// UpsertChunks writes a batch of chunks in one round trip. Chunk ids are
// stable across re-ingestion, so conflicting rows are updated in place.
func (s *Store) UpsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO document_chunks
				(id, source_file, title, section, page, chunk_index, token_count, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title,
			    section = EXCLUDED.section,
			    page = EXCLUDED.page,
			    token_count = EXCLUDED.token_count,
			    content = EXCLUDED.content,
			    embedding = EXCLUDED.embedding`,
			c.ID, c.SourceFile, c.Title, c.Section, c.Page, c.ChunkIndex,
			c.TokenCount, c.Content, pgvector.NewVector(c.Embedding))
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting chunk %d of %d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

// DeleteBySource removes a document and its chunks, returning the number of
// chunks deleted.
func (s *Store) DeleteBySource(ctx context.Context, sourceFile string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM document_chunks WHERE source_file = $1`, sourceFile)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for %q: %w", sourceFile, err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM documents WHERE source_file = $1`, sourceFile); err != nil {
		return 0, fmt.Errorf("deleting document %q: %w", sourceFile, err)
	}
	return tag.RowsAffected(), nil
}

// CountChunks reports the number of indexed chunks.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM document_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Ping verifies the index is reachable and the chunk table exists. Used by
// the health endpoint to report the vector index independently of the
// session store.
func (s *Store) Ping(ctx context.Context) error {
	var ok bool
	if err := s.db.QueryRow(ctx,
		`SELECT to_regclass('document_chunks') IS NOT NULL`).Scan(&ok); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: document_chunks table missing, run migrations", ErrUnavailable)
	}
	return nil
}
