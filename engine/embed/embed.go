// Package embed defines the embedding capability used at index and query
// time, and selects a backend once from configuration. Business logic never
// branches on backend identity; it holds an Embedder and nothing more.
package embed

import (
	"context"
	"fmt"

	"github.com/HomeGenieAI/homegenie-engine/pkg/ollama"
	"github.com/HomeGenieAI/homegenie-engine/pkg/openai"
)

// Embedder converts text into fixed-dimensionality vectors. EmbedBatch is
// order-preserving and all-or-nothing: a failure on any item fails the
// whole call, and the caller decides whether to retry the entire batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config selects and parameterizes an embedding backend.
type Config struct {
	Provider string // "openai" or "ollama"
	Model    string
	BaseURL  string // ollama base URL; ignored by the hosted backend
	APIKey   string // hosted access credential
}

// New builds the configured Embedder. Called once at assembly time.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return openai.NewEmbedder(cfg.APIKey, cfg.Model)
	case ProviderOllama:
		return ollama.NewEmbedClient(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
}
