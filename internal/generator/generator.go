// Package generator produces grounded answers: one completion call over the
// retrieved chunks and recent history, plus citations and a confidence tier
// derived from the chunks that actually made it into the prompt.
package generator

import (
	"context"
	"fmt"

	"github.com/uovfts/faculty-assistant/internal/llm"
	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/prompt"
	"github.com/uovfts/faculty-assistant/internal/retriever"
	"github.com/uovfts/faculty-assistant/internal/store"
)

// Confidence tiers reported with every answer.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// InsufficientContextAnswer is returned when no document chunk was relevant
// enough to ground an answer. No completion call is made in that case.
const InsufficientContextAnswer = "I don't have enough information in the faculty documents to answer that. Please contact the faculty office, or try rephrasing your question."

// Completer runs one chat completion. Implemented by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Answer is a generated response with its provenance.
type Answer struct {
	Text        string           `json:"text"`
	Citations   []store.Citation `json:"citations"`
	Confidence  string           `json:"confidence"`
	ChunksUsed  int              `json:"chunks_used"`
	FromContext bool             `json:"from_context"` // false for the canned insufficient-context answer
}

// Generator builds prompts and runs completions.
type Generator struct {
	completer Completer
	builder   *prompt.Builder
	logger    log.Logger
}

// New creates a Generator.
func New(completer Completer, builder *prompt.Builder, logger log.Logger) *Generator {
	return &Generator{completer: completer, builder: builder, logger: logger}
}

// Generate answers the question from the given chunks and history. chunks
// must be ordered by descending similarity. With no chunks at all the canned
// insufficient-context answer is returned without calling the model.
// Completion failures surface as llm.ErrGeneration; the orchestrator owns
// the retry policy.
func (g *Generator) Generate(ctx context.Context, question string, chunks []retriever.Chunk, history []prompt.Turn) (*Answer, error) {
	if len(chunks) == 0 {
		return &Answer{
			Text:       InsufficientContextAnswer,
			Citations:  []store.Citation{},
			Confidence: ConfidenceLow,
		}, nil
	}

	messages, kept := g.builder.Build(question, chunks, history)
	if len(kept) == 0 {
		// The budget squeezed out every chunk; answering without grounding
		// would invite hallucination.
		g.logger.Warn("token budget dropped all context chunks", "candidates", len(chunks))
		return &Answer{
			Text:       InsufficientContextAnswer,
			Citations:  []store.Citation{},
			Confidence: ConfidenceLow,
		}, nil
	}

	text, err := g.completer.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("completing answer: %w", err)
	}

	return &Answer{
		Text:        text,
		Citations:   retriever.Citations(kept),
		Confidence:  confidence(kept),
		ChunksUsed:  len(kept),
		FromContext: true,
	}, nil
}

// confidence maps the kept chunks to a tier: high needs at least 3 chunks
// averaging 0.7 similarity, medium at least 2 averaging 0.5, anything else
// is low.
func confidence(chunks []retriever.Chunk) string {
	if len(chunks) == 0 {
		return ConfidenceLow
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Similarity
	}
	avg := sum / float64(len(chunks))

	switch {
	case avg >= 0.7 && len(chunks) >= 3:
		return ConfidenceHigh
	case avg >= 0.5 && len(chunks) >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
