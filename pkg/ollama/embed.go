// Package ollama provides embedding and chat clients backed by a locally
// served Ollama instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

// Known embedding dimensionalities per model. Dimensionality is fixed per
// provider instance; it does not need to match across providers.
var modelDims = map[string]int{
	"nomic-embed-text":  768,
	"llama3.2":          3072,
	"mxbai-embed-large": 1024,
}

const defaultEmbedModel = "nomic-embed-text"

// EmbedClient embeds text via Ollama's HTTP API.
type EmbedClient struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewEmbedClient creates an Ollama embedding client. The model must have
// a known dimensionality: collection creation depends on it, and a wrong
// guess would only fail later at upsert.
func NewEmbedClient(baseURL, model string) (*EmbedClient, error) {
	if model == "" {
		model = defaultEmbedModel
	}
	dims, ok := modelDims[model]
	if !ok {
		return nil, fmt.Errorf("ollama: unknown embedding model %q", model)
	}
	return &EmbedClient{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{},
	}, nil
}

// Dimensions returns the vector size this client produces.
func (c *EmbedClient) Dimensions() int { return c.dims }

// Model returns the embedding model identifier.
func (c *EmbedClient) Model() string { return c.model }

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

func (c *EmbedClient) embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed %s: %w: %w", c.baseURL, err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("ollama embed", resp)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// statusError turns a non-200 reply into an error carrying the status and
// response body. Server faults and throttling are retryable; anything
// else (unknown model, malformed request) fails the same way every time.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return domain.Unavailablef("%s: status %d: %s", op, resp.StatusCode, msg)
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, msg)
}

// EmbedBatch embeds each text in order. Any failure fails the whole batch.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
