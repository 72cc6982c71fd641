// Package openai provides the hosted embedding backend using the official
// OpenAI SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Dimensionality per hosted model.
var modelDims = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// Embedder embeds text batches via the OpenAI embeddings endpoint.
type Embedder struct {
	client openai.Client
	model  string
	dims   int
}

// NewEmbedder creates a hosted embedder. The access credential is required.
func NewEmbedder(apiKey, model string) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: missing API key")
	}
	if model == "" {
		model = "text-embedding-3-large"
	}
	dims, ok := modelDims[model]
	if !ok {
		return nil, fmt.Errorf("openai: unknown embedding model %q", model)
	}
	return &Embedder{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		dims:   dims,
	}, nil
}

// Dimensions returns the vector size this embedder produces.
func (e *Embedder) Dimensions() int { return e.dims }

// Model returns the embedding model identifier.
func (e *Embedder) Model() string { return e.model }

// EmbedBatch embeds all texts in one API call, order-preserving. A failure
// fails the whole batch; the caller owns retry policy.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("openai embed batch of %d", len(texts)), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.Consistencyf("openai: %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		// The API pairs results by index, not response order.
		out[int(d.Index)] = vec
	}
	return out, nil
}

// wrapErr classifies an SDK failure. Server faults, throttling, and
// transport errors are retryable; API rejections (bad key, unknown model)
// fail the same way every time and are not.
func wrapErr(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) &&
		apiErr.StatusCode < http.StatusInternalServerError &&
		apiErr.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, err, domain.ErrUnavailable)
}
