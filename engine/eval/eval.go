// Package eval benchmarks retrieval and answer quality against a gold
// query set. Each query is retrieved and answered, the resulting
// (query, answer, contexts) triples are scored per metric, and scores
// are averaged across the set.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/HomeGenieAI/homegenie-engine/engine/rag"
	"github.com/HomeGenieAI/homegenie-engine/engine/semantic"
	"github.com/HomeGenieAI/homegenie-engine/pkg/fn"
)

// Record is one evaluated triple. Contexts hold the retrieved document
// contents in similarity order, rank 1 first. Err marks a query whose
// answering failed; failed records are excluded from metric averages.
type Record struct {
	Query    string   `json:"query"`
	Answer   string   `json:"answer"`
	Contexts []string `json:"contexts"`
	Err      error    `json:"-"`
}

// Scorer computes one quality metric over a record. Scores are in [0,1].
type Scorer interface {
	Name() string
	Score(ctx context.Context, rec Record) (float64, error)
}

// Metric is the aggregate for one scorer over the gold set.
type Metric struct {
	Mean   float64 `json:"mean"`
	Scored int     `json:"scored"`
}

// Report is the harness output.
type Report struct {
	Records []Record          `json:"records"`
	Metrics map[string]Metric `json:"metrics"`
	// Failed lists queries whose answering failed.
	Failed []string `json:"failed,omitempty"`
}

// Retriever is the query-time retrieval collaborator, satisfied by
// rag.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]semantic.SearchResult, error)
}

// Options tune harness concurrency and pacing.
type Options struct {
	// Workers bounds concurrent query evaluation. Zero means 4.
	Workers int
	// QPS paces answering and judging calls so a local model is not
	// flooded. Zero means unpaced.
	QPS    float64
	Logger *slog.Logger
}

// Harness drives gold queries through retrieval and answering, then
// scores the collected records.
type Harness struct {
	retriever Retriever
	answerer  rag.Answerer
	scorers   []Scorer
	workers   int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewHarness creates an evaluation harness.
func NewHarness(retriever Retriever, answerer rag.Answerer, scorers []Scorer, opts Options) *Harness {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var limiter *rate.Limiter
	if opts.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.QPS), 1)
	}
	return &Harness{
		retriever: retriever,
		answerer:  answerer,
		scorers:   scorers,
		workers:   opts.Workers,
		limiter:   limiter,
		logger:    opts.Logger,
	}
}

// Evaluate runs every gold query and scores the results. An answering
// failure is marked on its record and never aborts the batch. A
// retrieval failure aborts the whole run and its error, including the
// missing-collection and unreachable-store kinds, surfaces to the
// caller.
func (h *Harness) Evaluate(ctx context.Context, queries []string) (*Report, error) {
	batch := fn.BatchStage(h.workers, func(ctx context.Context, q string) fn.Result[Record] {
		return fn.FromPair(h.evaluateOne(ctx, q))
	})
	records, err := batch(ctx, queries).Unwrap()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Records: records, Metrics: map[string]Metric{}}
	failed := fn.Filter(records, func(r Record) bool { return r.Err != nil })
	report.Failed = fn.Map(failed, func(r Record) string { return r.Query })

	for _, scorer := range h.scorers {
		report.Metrics[scorer.Name()] = h.score(ctx, scorer, records)
	}
	return report, nil
}

// evaluateOne retrieves and answers one query. A retrieval error is
// returned rather than recorded: a broken store taints every query, so
// scoring the remainder would only report noise. An answering error
// marks the record and the run continues.
func (h *Harness) evaluateOne(ctx context.Context, query string) (Record, error) {
	rec := Record{Query: query}

	results, err := h.retriever.Retrieve(ctx, query)
	if err != nil {
		return rec, fmt.Errorf("eval: retrieve %q: %w", query, err)
	}

	// Record the raw contents in rank order; the answerer gets the same
	// hits rendered as prompt context.
	rec.Contexts = make([]string, len(results))
	contexts := make([]string, len(results))
	for i, r := range results {
		rec.Contexts[i] = r.Content
		contexts[i] = rag.FormatContext(r)
	}

	if err := h.wait(ctx); err != nil {
		return rec, err
	}
	answer, err := h.answerer.Answer(ctx, query, nil, contexts)
	if err != nil {
		rec.Err = fmt.Errorf("eval: answer %q: %w", query, err)
		h.logger.Error("eval: answering failed", "query", query, "error", err)
		return rec, nil
	}
	rec.Answer = answer
	return rec, nil
}

// score averages one metric over the successfully answered records.
func (h *Harness) score(ctx context.Context, scorer Scorer, records []Record) Metric {
	var sum float64
	scored := 0
	for _, rec := range records {
		if rec.Err != nil {
			continue
		}
		if err := h.wait(ctx); err != nil {
			break
		}
		v, err := scorer.Score(ctx, rec)
		if err != nil {
			h.logger.Warn("eval: scoring failed", "metric", scorer.Name(), "query", rec.Query, "error", err)
			continue
		}
		sum += v
		scored++
	}
	m := Metric{Scored: scored}
	if scored > 0 {
		m.Mean = sum / float64(scored)
	}
	return m
}

func (h *Harness) wait(ctx context.Context) error {
	if h.limiter == nil {
		return nil
	}
	return h.limiter.Wait(ctx)
}

// LoadGoldQueries reads a gold set file, a JSON array of query strings.
func LoadGoldQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval: read gold set %s: %w", path, err)
	}
	var queries []string
	if err := json.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("eval: parse gold set %s: %w", path, err)
	}
	// A duplicated query would double-weight the averages.
	return fn.Unique(queries), nil
}
