package semantic

import "github.com/HomeGenieAI/homegenie-engine/engine/domain"

// VectorRecord is a single point to store: listing content, its metadata
// payload, and an externally assigned id.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Content   string
	Meta      domain.Metadata
}

// SearchResult is a single vector search hit.
type SearchResult struct {
	ID      string          `json:"id"`
	Score   float32         `json:"score"`
	Content string          `json:"content"`
	Meta    domain.Metadata `json:"meta"`
}
