package domain

import "errors"

var (
	// ErrMissingInput means a required upstream artifact does not exist.
	ErrMissingInput = errors.New("missing input file")
	// ErrEmptyCorpus means there are no chunks with content to embed.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrEmbedding wraps failures of the embedding provider.
	ErrEmbedding = errors.New("embedding provider failure")
	// ErrQuotaExceeded is returned by generators when the provider reports
	// exhausted quota or rate limits.
	ErrQuotaExceeded = errors.New("generation quota exceeded")
	// ErrGeneration wraps every other generation failure.
	ErrGeneration = errors.New("generation failure")
)
