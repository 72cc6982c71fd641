// Package rag wires query-time retrieval to the answering service: embed
// the question, search the collection, stuff the retrieved listings into a
// prompt, and return the answer with its sources.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
	"github.com/HomeGenieAI/homegenie-engine/engine/embed"
	"github.com/HomeGenieAI/homegenie-engine/engine/semantic"
)

// DefaultTopK is the fixed result count for similarity search.
const DefaultTopK = 5

// Searcher abstracts vector search over the listing collection.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]semantic.SearchResult, error)
}

// Retriever is the thin query-time wrapper around similarity search.
type Retriever struct {
	embedder embed.Embedder
	search   Searcher
	topK     int
}

// NewRetriever creates a Retriever with a fixed top-k. The embedder must be
// the same provider used at index time.
func NewRetriever(embedder embed.Embedder, search Searcher, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, search: search, topK: topK}
}

// Retrieve returns the top-k hits for a query, rank 1 first.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]semantic.SearchResult, error) {
	vectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, domain.Consistencyf("rag: %d embeddings for one query", len(vectors))
	}
	results, err := r.search.Search(ctx, vectors[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	return results, nil
}

// TopK returns the configured result count.
func (r *Retriever) TopK() int { return r.topK }

// Answerer is the answering-service collaborator: given a query, explicit
// conversation history, and retrieved contexts, it produces free text.
type Answerer interface {
	Answer(ctx context.Context, query string, history []domain.Message, contexts []string) (string, error)
}

// Answer is the structured response from the query pipeline.
type Answer struct {
	Text    string                  `json:"text"`
	Sources []semantic.SearchResult `json:"sources"`
}

// Service runs retrieve-then-answer for user questions.
type Service struct {
	retriever *Retriever
	answerer  Answerer
	logger    *slog.Logger
}

// NewService creates the query service.
func NewService(retriever *Retriever, answerer Answerer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{retriever: retriever, answerer: answerer, logger: logger}
}

// Query answers one question against the collection.
func (s *Service) Query(ctx context.Context, question string, history []domain.Message) (*Answer, error) {
	results, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rag: retrieved", "question_len", len(question), "hits", len(results))

	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = FormatContext(r)
	}

	text, err := s.answerer.Answer(ctx, question, history, contexts)
	if err != nil {
		return nil, fmt.Errorf("rag: answer: %w", err)
	}
	return &Answer{Text: text, Sources: results}, nil
}

// FormatContext renders one hit as prompt context: the listing body plus
// the metadata a buyer asks about.
func FormatContext(r semantic.SearchResult) string {
	m := r.Meta
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s)\n", m.Title, m.DistrictCounty, m.ProvinceCity)
	fmt.Fprintf(&b, "Giá: %.0f VND, %.1f m2, %d PN, %d WC, hướng %s\n",
		m.PriceVND, m.AreaM2, m.Bedrooms, m.Toilets, m.Direction)
	b.WriteString(r.Content)
	if m.URL != "" {
		fmt.Fprintf(&b, "\n%s", m.URL)
	}
	return b.String()
}
