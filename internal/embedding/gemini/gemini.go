package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"manualrag/internal/domain"
	"manualrag/internal/embedding"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-004"
	// maxBatch is the provider limit on contents per batch request.
	maxBatch = 100
)

// Config configures the Gemini embeddings client.
type Config struct {
	APIKey string
	Model  string
}

// Embedder calls the Gemini embedding endpoint in batches.
type Embedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	// batch is replaced in tests.
	batch func(ctx context.Context, texts []string) ([][]float32, error)
}

// New connects a Gemini embedder. Close releases the underlying client.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini embedder: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}
	e := &Embedder{client: client, model: client.EmbeddingModel(cfg.Model)}
	e.batch = e.remoteBatch
	return e, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "gemini" }

// Close releases the client connection.
func (e *Embedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Embed returns one normalized vector per text in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		vecs, err := e.batch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: gemini: %w", domain.ErrEmbedding, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: gemini: got %d embeddings for %d inputs", domain.ErrEmbedding, len(vecs), end-start)
		}
		for _, v := range vecs {
			out = append(out, embedding.FromFloat32(v))
		}
	}
	return out, nil
}

func (e *Embedder) remoteBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b := e.model.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	resp, err := e.model.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
