// Package prompt assembles chat completion messages from a question, the
// retrieved chunks and recent conversation history, under a hard token
// budget. When the budget is exceeded, oldest history turns go first, then
// the lowest-similarity chunks; the question and system prompt always fit.
package prompt

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/uovfts/faculty-assistant/internal/llm"
	"github.com/uovfts/faculty-assistant/internal/retriever"
)

const systemPrompt = `You are the assistant of the Faculty of Technological Studies. You answer student and staff questions using only the faculty documents provided as context.

Rules:
- Answer only from the provided context. Do not invent facts, dates, fees or names.
- If the context does not contain the answer, say so and suggest contacting the faculty office.
- Cite sources by their bracketed number, e.g. [1], when you use them.
- Keep answers concise and direct.`

// Counter counts tokens with the cl100k_base encoding, the same tokenizer
// family the serving models use. Construction loads the encoding tables, so
// build one Counter and share it.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads the cl100k_base encoding.
func NewCounter() (*Counter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading cl100k_base encoding: %w", err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// Turn is one prior conversation message, oldest first.
type Turn struct {
	Role    string // llm.RoleUser or llm.RoleAssistant
	Content string
}

// Builder assembles completion messages under a token budget.
type Builder struct {
	counter *Counter
	budget  int
}

// NewBuilder creates a Builder. budget is the total prompt-side token
// allowance; completion tokens are bounded separately by the LLM client.
func NewBuilder(counter *Counter, budget int) *Builder {
	return &Builder{counter: counter, budget: budget}
}

// Build produces the ordered messages for one completion call and reports
// which chunks survived the budget. chunks must be ordered by descending
// similarity; history must be ordered oldest first.
func (b *Builder) Build(question string, chunks []retriever.Chunk, history []Turn) ([]llm.Message, []retriever.Chunk) {
	questionPart := "Question: " + question
	base := b.counter.Count(systemPrompt) + b.counter.Count(questionPart)

	chunkCosts := make([]int, len(chunks))
	total := base
	for i, c := range chunks {
		chunkCosts[i] = b.counter.Count(formatChunk(i+1, c))
		total += chunkCosts[i]
	}
	historyCosts := make([]int, len(history))
	for i, h := range history {
		historyCosts[i] = b.counter.Count(h.Content)
		total += historyCosts[i]
	}

	// Oldest history goes first.
	keptHistory := history
	for total > b.budget && len(keptHistory) > 0 {
		total -= historyCosts[0]
		historyCosts = historyCosts[1:]
		keptHistory = keptHistory[1:]
	}

	// Then the least similar chunks, from the tail of the similarity order.
	keptChunks := chunks
	for total > b.budget && len(keptChunks) > 0 {
		last := len(keptChunks) - 1
		total -= chunkCosts[last]
		chunkCosts = chunkCosts[:last]
		keptChunks = keptChunks[:last]
	}

	messages := make([]llm.Message, 0, len(keptHistory)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, h := range keptHistory {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}

	var user strings.Builder
	if len(keptChunks) > 0 {
		user.WriteString("Context:\n")
		for i, c := range keptChunks {
			user.WriteString(formatChunk(i+1, c))
			user.WriteString("\n\n")
		}
	}
	user.WriteString(questionPart)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: user.String()})

	return messages, keptChunks
}

// formatChunk renders one context entry: "[i] source (Page p) - section"
// followed by the chunk text.
func formatChunk(index int, c retriever.Chunk) string {
	var header strings.Builder
	fmt.Fprintf(&header, "[%d] %s", index, c.SourceFile)
	if c.Page > 0 {
		fmt.Fprintf(&header, " (Page %d)", c.Page)
	}
	if c.Section != "" {
		fmt.Fprintf(&header, " - %s", c.Section)
	}
	return header.String() + "\n" + c.Content
}
