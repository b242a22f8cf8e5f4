package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uovfts/faculty-assistant/internal/llm"
	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/prompt"
	"github.com/uovfts/faculty-assistant/internal/retriever"
)

type fakeCompleter struct {
	answer string
	err    error
	calls  int
	last   []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.calls++
	f.last = messages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newGenerator(t *testing.T, completer Completer) *Generator {
	t.Helper()
	counter, err := prompt.NewCounter()
	require.NoError(t, err)
	return New(completer, prompt.NewBuilder(counter, 6000), log.NewNop())
}

func chunk(id, source string, page int, similarity float64) retriever.Chunk {
	return retriever.Chunk{
		ID:         id,
		SourceFile: source,
		Page:       page,
		Content:    "content of " + id,
		Similarity: similarity,
	}
}

func TestGenerate(t *testing.T) {
	completer := &fakeCompleter{answer: "Admissions close on 30 September [1]."}
	g := newGenerator(t, completer)

	chunks := []retriever.Chunk{
		chunk("a", "handbook.pdf", 2, 0.9),
		chunk("b", "handbook.pdf", 2, 0.8),
		chunk("c", "dates.txt", 0, 0.75),
	}

	answer, err := g.Generate(t.Context(), "when do admissions close?", chunks, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, "Admissions close on 30 September [1].", answer.Text)
	assert.True(t, answer.FromContext)
	assert.Equal(t, 3, answer.ChunksUsed)
	assert.Equal(t, ConfidenceHigh, answer.Confidence)

	// Citations come only from the input chunks, deduplicated by source+page.
	require.Len(t, answer.Citations, 2)
	assert.Equal(t, "handbook.pdf", answer.Citations[0].Source)
	assert.Equal(t, "dates.txt", answer.Citations[1].Source)
}

func TestGenerate_NoChunksSkipsModel(t *testing.T) {
	completer := &fakeCompleter{answer: "should never be used"}
	g := newGenerator(t, completer)

	answer, err := g.Generate(t.Context(), "q?", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, completer.calls, "no completion call without context")
	assert.Equal(t, InsufficientContextAnswer, answer.Text)
	assert.Equal(t, ConfidenceLow, answer.Confidence)
	assert.False(t, answer.FromContext)
	assert.Empty(t, answer.Citations)
}

func TestGenerate_CompletionFailure(t *testing.T) {
	completer := &fakeCompleter{err: llm.ErrGeneration}
	g := newGenerator(t, completer)

	_, err := g.Generate(t.Context(), "q?", []retriever.Chunk{chunk("a", "s", 0, 0.9)}, nil)
	assert.ErrorIs(t, err, llm.ErrGeneration)
}

func TestGenerate_HistoryReachesPrompt(t *testing.T) {
	completer := &fakeCompleter{answer: "ok"}
	g := newGenerator(t, completer)

	history := []prompt.Turn{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}
	_, err := g.Generate(t.Context(), "follow-up?", []retriever.Chunk{chunk("a", "s", 0, 0.9)}, history)
	require.NoError(t, err)

	require.Len(t, completer.last, 4)
	assert.Equal(t, "earlier question", completer.last[1].Content)
	assert.Equal(t, "earlier answer", completer.last[2].Content)
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		chunks []retriever.Chunk
		want   string
	}{
		{"none", nil, ConfidenceLow},
		{
			"high needs three strong chunks",
			[]retriever.Chunk{{Similarity: 0.8}, {Similarity: 0.75}, {Similarity: 0.7}},
			ConfidenceHigh,
		},
		{
			"two strong chunks are only medium",
			[]retriever.Chunk{{Similarity: 0.9}, {Similarity: 0.9}},
			ConfidenceMedium,
		},
		{
			"average below medium bar",
			[]retriever.Chunk{{Similarity: 0.45}, {Similarity: 0.4}},
			ConfidenceLow,
		},
		{
			"single chunk is low regardless of score",
			[]retriever.Chunk{{Similarity: 0.99}},
			ConfidenceLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, confidence(tt.chunks))
		})
	}
}
