package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
	"github.com/HomeGenieAI/homegenie-engine/engine/embed"
	"github.com/HomeGenieAI/homegenie-engine/engine/normalize"
	"github.com/HomeGenieAI/homegenie-engine/engine/semantic"
	"github.com/HomeGenieAI/homegenie-engine/pkg/fn"
)

// EmbedBatchSize is the max documents per embedding request. Chunking never
// splits a document's embedding from its metadata: each chunk is embedded
// and upserted as a unit.
const EmbedBatchSize = 100

// VectorStore is the collection-owning adapter the pipeline writes to.
type VectorStore interface {
	RecreateCollection(ctx context.Context, dims int) error
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Deps holds the external dependencies for the indexing pipeline.
type Deps struct {
	Embedder embed.Embedder
	Store    VectorStore
	Logger   *slog.Logger
	// Retry bounds re-attempts of transient embed/store failures.
	// Zero value means fn.DefaultRetry.
	Retry fn.RetryOpts
}

// Request describes one batch indexing invocation.
type Request struct {
	Listings   []domain.Listing
	SourceName string
	// DropOld destroys and recreates the collection before writing, which
	// makes re-indexing a full batch idempotent with respect to stale
	// entries. When false new documents append alongside existing ones.
	DropOld bool
}

// Report summarizes a completed batch.
type Report struct {
	Written int
	Skipped int
}

// Pipeline orchestrates build → embed → upsert for full batches.
type Pipeline struct {
	deps Deps
}

// NewPipeline creates an indexing pipeline.
func NewPipeline(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Retry.MaxAttempts == 0 {
		deps.Retry = fn.DefaultRetry
	}
	if deps.Retry.RetryIf == nil {
		// Only service outages are worth another attempt. Consistency
		// violations and rejected requests fail the same way every time.
		deps.Retry.RetryIf = func(err error) bool { return errors.Is(err, domain.ErrUnavailable) }
	}
	return &Pipeline{deps: deps}
}

// chunk pairs a slice of documents with their content texts.
type chunk struct {
	docs []domain.Document
}

// embeddedChunk carries documents with their vectors, paired by index.
type embeddedChunk struct {
	docs    []domain.Document
	vectors [][]float32
}

// embedChunk is the embedding stage. A transient failure fails the whole
// chunk call; it is retried as a whole when the error is retryable.
func (p *Pipeline) embedChunk(ctx context.Context, c chunk) fn.Result[embeddedChunk] {
	texts := fn.Map(c.docs, func(d domain.Document) string { return d.Content })
	vectors, err := p.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fn.Err[embeddedChunk](fmt.Errorf("ingest: embed: %w", err))
	}
	if len(vectors) != len(c.docs) {
		return fn.Err[embeddedChunk](domain.Consistencyf("ingest: %d embeddings for %d documents", len(vectors), len(c.docs)))
	}
	return fn.Ok(embeddedChunk{docs: c.docs, vectors: vectors})
}

// storeChunk upserts one embedded chunk and yields the documents written.
func (p *Pipeline) storeChunk(ctx context.Context, ec embeddedChunk) fn.Result[int] {
	records := make([]semantic.VectorRecord, len(ec.docs))
	for i, doc := range ec.docs {
		records[i] = semantic.VectorRecord{
			ID:        doc.ID,
			Embedding: ec.vectors[i],
			Content:   doc.Content,
			Meta:      doc.Metadata,
		}
	}
	if err := p.deps.Store.Upsert(ctx, records); err != nil {
		return fn.Err[int](fmt.Errorf("ingest: upsert: %w", err))
	}
	return fn.Ok(len(records))
}

// Index runs one full batch. Invalid listings are skipped and reported,
// never aborting the batch; all other failures abort the invocation and
// the caller re-runs the whole batch.
func (p *Pipeline) Index(ctx context.Context, req Request) (Report, error) {
	log := p.deps.Logger

	var valid []domain.Listing
	skipped := 0
	for i, l := range req.Listings {
		if err := domain.ValidateListing(l); err != nil {
			skipped++
			log.Warn("ingest: skipping listing", "row", i, "title", l.Title, "error", err)
			continue
		}
		valid = append(valid, l)
	}

	docs := BuildDocuments(valid, req.SourceName)

	dims := p.deps.Embedder.Dimensions()
	if req.DropOld {
		// Recreate strictly before any upsert begins.
		if err := p.deps.Store.RecreateCollection(ctx, dims); err != nil {
			return Report{}, fmt.Errorf("ingest: recreate collection: %w", err)
		}
	} else {
		if err := p.deps.Store.EnsureCollection(ctx, dims); err != nil {
			return Report{}, fmt.Errorf("ingest: ensure collection: %w", err)
		}
	}

	if len(docs) == 0 {
		// A zero-document batch is a no-op success.
		log.Info("ingest: nothing to index", "skipped", skipped)
		return Report{Skipped: skipped}, nil
	}

	stage := fn.Then(
		fn.TracedStage("ingest.embed", fn.RetryStage(p.deps.Retry, p.embedChunk)),
		fn.Then(
			fn.TapStage(func(_ context.Context, ec embeddedChunk) {
				log.Debug("ingest: chunk embedded", "documents", len(ec.docs))
			}),
			fn.TracedStage("ingest.store", p.storeChunk),
		),
	)

	written := 0
	for _, part := range fn.Chunk(docs, EmbedBatchSize) {
		if err := ctx.Err(); err != nil {
			return Report{Written: written, Skipped: skipped}, err
		}
		n, err := stage(ctx, chunk{docs: part}).Unwrap()
		if err != nil {
			return Report{Written: written, Skipped: skipped}, err
		}
		written += n
		log.Info("ingest: chunk stored", "documents", n, "total", written)
	}

	log.Info("ingest: batch complete", "written", written, "skipped", skipped)
	return Report{Written: written, Skipped: skipped}, nil
}

// LoadRecords reads a normalized JSON file and returns its listings plus
// the derived source name.
func LoadRecords(path string) ([]domain.Listing, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := normalize.ReadRecords(f)
	if err != nil {
		return nil, "", err
	}
	listings := fn.Map(records, normalize.Record.Listing)
	return listings, filepath.Base(path), nil
}
