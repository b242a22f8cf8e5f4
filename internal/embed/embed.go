// Package embed provides the embedding client for questions and document
// passages. It speaks the OpenAI embeddings API against a configurable
// OpenAI-compatible endpoint serving an E5 family model.
//
// E5 models expect asymmetric prefixes: "query: " for search questions and
// "passage: " for indexed document text. Both sides must agree or retrieval
// quality collapses, so the prefixes live here and nowhere else.
package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/uovfts/faculty-assistant/internal/log"
)

// ErrEmbedding indicates the embedding endpoint failed or returned an
// unusable response. Callers treat it as fatal for the request.
var ErrEmbedding = errors.New("embedding failed")

const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// Config holds client settings for the embedding endpoint.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
}

// Client embeds text via an OpenAI-compatible embeddings endpoint.
type Client struct {
	api    *openai.Client
	model  string
	dim    int
	logger log.Logger
}

// New creates an embedding client. APIKey may be empty for local endpoints
// that do not authenticate.
func New(cfg Config, logger log.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		model:  cfg.Model,
		dim:    cfg.Dimension,
		logger: logger,
	}
}

// EmbedQuery embeds a single search question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedPassages embeds a batch of document passages in one request,
// preserving input order.
func (c *Client) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = passagePrefix + t
	}
	return c.embed(ctx, prefixed)
}

func (c *Client) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: endpoint returned %d vectors for %d inputs",
			ErrEmbedding, len(resp.Data), len(inputs))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != c.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrEmbedding, i, len(d.Embedding), c.dim)
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
