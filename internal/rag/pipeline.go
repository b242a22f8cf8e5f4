// Package rag orchestrates one chat turn: cache check, retrieval, generation
// and persistence, with the failure policy each stage calls for. The stages
// themselves live in their own packages; this one only sequences them.
//
// Per turn: cache hit answers immediately, skipping retrieval and generation.
// On a miss: embed + retrieve (one retry on index unavailability, then a
// zero-context fallback), generate (one retry, then a user-visible failure),
// persist both turns best-effort, cache grounded answers for next time.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uovfts/faculty-assistant/internal/embed"
	"github.com/uovfts/faculty-assistant/internal/generator"
	"github.com/uovfts/faculty-assistant/internal/log"
	"github.com/uovfts/faculty-assistant/internal/prompt"
	"github.com/uovfts/faculty-assistant/internal/retriever"
	"github.com/uovfts/faculty-assistant/internal/store"
)

// Cache is the response cache. Implemented by *cache.Cache[*generator.Answer].
type Cache interface {
	Get(question string) (*generator.Answer, bool)
	Put(question string, answer *generator.Answer)
}

// Retriever fetches relevant chunks. Implemented by *retriever.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]retriever.Chunk, error)
}

// Generator produces an answer. Implemented by *generator.Generator.
type Generator interface {
	Generate(ctx context.Context, question string, chunks []retriever.Chunk, history []prompt.Turn) (*generator.Answer, error)
}

// MessageStore persists conversation turns. Implemented by *store.Store.
type MessageStore interface {
	EnsureSession(ctx context.Context, id uuid.UUID) error
	GetMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]store.Message, error)
	SaveMessage(ctx context.Context, sessionID uuid.UUID, role, content string, citations []store.Citation) (*store.Message, error)
}

// Config bounds the pipeline's external calls.
type Config struct {
	HistoryLimit int           // messages of history loaded per turn
	CallTimeout  time.Duration // per external call
	RetryDelay   time.Duration // backoff before the single retrieval retry
}

// Result is one answered chat turn.
type Result struct {
	SessionID uuid.UUID
	MessageID uuid.UUID // assistant message id; uuid.Nil when persistence failed
	Answer    *generator.Answer
	Cached    bool
}

// Pipeline runs chat turns. Safe for concurrent use.
type Pipeline struct {
	cache     Cache
	retriever Retriever
	generator Generator
	messages  MessageStore
	cfg       Config
	logger    log.Logger
}

// New creates a Pipeline.
func New(cache Cache, ret Retriever, gen Generator, messages MessageStore, cfg Config, logger log.Logger) *Pipeline {
	return &Pipeline{
		cache:     cache,
		retriever: ret,
		generator: gen,
		messages:  messages,
		cfg:       cfg,
		logger:    logger,
	}
}

// Chat answers one question within a session. The session is created if it
// does not exist yet.
func (p *Pipeline) Chat(ctx context.Context, sessionID uuid.UUID, question string) (*Result, error) {
	if err := p.messages.EnsureSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("ensuring session: %w", err)
	}

	if answer, ok := p.cache.Get(question); ok {
		p.logger.Debug("cache hit", "session_id", sessionID)
		msgID := p.persist(ctx, sessionID, question, answer)
		return &Result{SessionID: sessionID, MessageID: msgID, Answer: answer, Cached: true}, nil
	}

	// History load is best-effort: a turn without history still answers.
	var history []prompt.Turn
	if msgs, err := p.messages.GetMessages(ctx, sessionID, p.cfg.HistoryLimit); err != nil {
		p.logger.Warn("failed to load history, answering without it",
			"session_id", sessionID, "error", err)
	} else {
		history = toTurns(msgs)
	}

	chunks, err := p.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	answer, err := p.generate(ctx, question, chunks, history)
	if err != nil {
		return nil, err
	}

	// A canceled client gets no further side effects.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	msgID := p.persist(ctx, sessionID, question, answer)

	// Only grounded answers are cached: the insufficient-context fallback
	// should retry retrieval next time, not be served for an hour.
	if answer.FromContext {
		p.cache.Put(question, answer)
	}

	return &Result{SessionID: sessionID, MessageID: msgID, Answer: answer}, nil
}

// retrieve runs retrieval with one retry on index unavailability. Embedding
// failures are fatal immediately. If the retry also fails the turn proceeds
// with zero context instead of erroring.
func (p *Pipeline) retrieve(ctx context.Context, question string) ([]retriever.Chunk, error) {
	chunks, err := p.withTimeout(ctx, func(ctx context.Context) ([]retriever.Chunk, error) {
		return p.retriever.Retrieve(ctx, question)
	})
	if err == nil {
		return chunks, nil
	}
	if errors.Is(err, embed.ErrEmbedding) {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	p.logger.Warn("retrieval failed, retrying once", "error", err)
	if sleepErr := sleep(ctx, p.cfg.RetryDelay); sleepErr != nil {
		return nil, sleepErr
	}

	chunks, err = p.withTimeout(ctx, func(ctx context.Context) ([]retriever.Chunk, error) {
		return p.retriever.Retrieve(ctx, question)
	})
	if err == nil {
		return chunks, nil
	}
	if errors.Is(err, embed.ErrEmbedding) {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	p.logger.Error("retrieval retry failed, answering with zero context", "error", err)
	return nil, nil
}

// generate runs generation with one retry on identical inputs.
func (p *Pipeline) generate(ctx context.Context, question string, chunks []retriever.Chunk, history []prompt.Turn) (*generator.Answer, error) {
	answer, err := p.withTimeoutAnswer(ctx, question, chunks, history)
	if err == nil {
		return answer, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.logger.Warn("generation failed, retrying once", "error", err)
	answer, err = p.withTimeoutAnswer(ctx, question, chunks, history)
	if err == nil {
		return answer, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
}

// persist writes the user and assistant turns best-effort and returns the
// assistant message id, or uuid.Nil when persistence failed. A lost turn is
// logged, never surfaced to the user.
func (p *Pipeline) persist(ctx context.Context, sessionID uuid.UUID, question string, answer *generator.Answer) uuid.UUID {
	if _, err := p.messages.SaveMessage(ctx, sessionID, store.RoleUser, question, nil); err != nil {
		p.logger.Error("failed to persist user message", "session_id", sessionID, "error", err)
		return uuid.Nil
	}
	msg, err := p.messages.SaveMessage(ctx, sessionID, store.RoleAssistant, answer.Text, answer.Citations)
	if err != nil {
		p.logger.Error("failed to persist assistant message", "session_id", sessionID, "error", err)
		return uuid.Nil
	}
	return msg.ID
}

func (p *Pipeline) withTimeout(ctx context.Context, fn func(context.Context) ([]retriever.Chunk, error)) ([]retriever.Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func (p *Pipeline) withTimeoutAnswer(ctx context.Context, question string, chunks []retriever.Chunk, history []prompt.Turn) (*generator.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()
	return p.generator.Generate(ctx, question, chunks, history)
}

func toTurns(msgs []store.Message) []prompt.Turn {
	turns := make([]prompt.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, prompt.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
