package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/testutil"
	"github.com/uovfts/faculty-assistant/internal/vectorstore"
)

type fakeIndex struct {
	documents    []vectorstore.Document
	chunks       []vectorstore.Chunk
	deleted      []string
	upsertCalls  int
	deleteReturn int64
}

func (f *fakeIndex) UpsertDocument(_ context.Context, doc vectorstore.Document) error {
	f.documents = append(f.documents, doc)
	return nil
}

func (f *fakeIndex) UpsertChunks(_ context.Context, chunks []vectorstore.Chunk) error {
	f.upsertCalls++
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeIndex) DeleteBySource(_ context.Context, sourceFile string) (int64, error) {
	f.deleted = append(f.deleted, sourceFile)
	return f.deleteReturn, nil
}

func (f *fakeIndex) CountChunks(context.Context) (int64, error) {
	return int64(len(f.chunks)), nil
}

func newTestPipeline(t *testing.T, index Index, cfg Config) *Pipeline {
	t.Helper()
	chunker, err := NewChunker(512, 50)
	require.NoError(t, err)
	return New(NewLoader("", log.NewNop()), chunker, testutil.NewFakeEmbedder(8), index, cfg, log.NewNop())
}

func TestPipeline_ProcessFile(t *testing.T) {
	index := &fakeIndex{}
	p := newTestPipeline(t, index, Config{})

	path := writeFile(t, "exam_rules.txt", "All exams start at 9 AM. Bring your student ID.")
	n, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, index.documents, 1)
	assert.Equal(t, "exam_rules.txt", index.documents[0].SourceFile)
	assert.Equal(t, 1, index.documents[0].TotalChunks)

	require.Len(t, index.chunks, 1)
	ch := index.chunks[0]
	assert.Equal(t, ChunkID("exam_rules.txt", 0), ch.ID)
	assert.Len(t, ch.Embedding, 8)
	assert.Contains(t, ch.Content, "9 AM")
	assert.Empty(t, index.deleted)
}

func TestPipeline_Recreate(t *testing.T) {
	index := &fakeIndex{deleteReturn: 4}
	p := newTestPipeline(t, index, Config{})

	path := writeFile(t, "handbook.md", "# Admissions\nApply before July.")
	_, err := p.ProcessFile(context.Background(), path, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"handbook.md"}, index.deleted)
}

func TestPipeline_EmptyFileIsSkippable(t *testing.T) {
	p := newTestPipeline(t, &fakeIndex{}, Config{})

	path := writeFile(t, "blank.txt", "   \n  ")
	_, err := p.ProcessFile(context.Background(), path, false)
	require.Error(t, err)
	assert.True(t, isLoadErr(err))
}

func TestPipeline_EmbeddingFailureAborts(t *testing.T) {
	index := &fakeIndex{}
	chunker, err := NewChunker(512, 50)
	require.NoError(t, err)
	embedder := testutil.NewFailingEmbedder(errors.New("model unavailable"))
	p := New(NewLoader("", log.NewNop()), chunker, embedder, index, Config{}, log.NewNop())

	path := writeFile(t, "a.txt", "some content")
	_, err = p.ProcessFile(context.Background(), path, false)
	require.Error(t, err)
	assert.False(t, isLoadErr(err), "embedding failures must abort, not skip")
	assert.Empty(t, index.chunks)
}

func TestPipeline_UpsertBatching(t *testing.T) {
	index := &fakeIndex{}
	p := newTestPipeline(t, index, Config{UpsertBatchSize: 2})

	// Five headings produce five chunks, upserted in batches of two.
	content := "# A\none\n# B\ntwo\n# C\nthree\n# D\nfour\n# E\nfive\n"
	path := writeFile(t, "sections.md", content)

	n, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, index.upsertCalls)
	assert.Len(t, index.chunks, 5)
}

func TestPipeline_ProcessDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first document"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# Intro\nsecond document"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.csv"), []byte("x,y"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("  "), 0o600))

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.txt"), []byte("third document"), 0o600))

	index := &fakeIndex{}
	p := newTestPipeline(t, index, Config{})

	stats, err := p.ProcessDirectory(context.Background(), dir, false)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, 1, stats.Skipped, "empty file is skipped, unsupported one is ignored")
	assert.Len(t, index.documents, 3)
}

func TestPipeline_ProcessDirectoryCancel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, &fakeIndex{}, Config{})
	_, err := p.ProcessDirectory(ctx, dir, false)
	assert.ErrorIs(t, err, context.Canceled)
}
