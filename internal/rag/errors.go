package rag

import "errors"

var (
	// ErrEmbeddingFailed indicates the question could not be embedded.
	// Fatal for the request; the pipeline never retries it.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrGenerationUnavailable indicates generation failed twice. Callers
	// surface it to users as an apology, not a crash.
	ErrGenerationUnavailable = errors.New("generation unavailable")
)
