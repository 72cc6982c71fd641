// Command evaluate runs a gold query set against a seeded collection and
// reports faithfulness and answer-relevancy averages.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/HomeGenieAI/homegenie-engine/engine/embed"
	"github.com/HomeGenieAI/homegenie-engine/engine/eval"
	"github.com/HomeGenieAI/homegenie-engine/engine/rag"
	"github.com/HomeGenieAI/homegenie-engine/engine/semantic"
	"github.com/HomeGenieAI/homegenie-engine/pkg/ollama"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	godotenv.Load()

	var (
		gold       = flag.String("gold", "gold_set.json", "gold query file (JSON array of strings)")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "homegenie"), "Qdrant collection name")
		provider   = flag.String("provider", envOr("EMBED_PROVIDER", "ollama"), "embedding provider (openai|ollama)")
		model      = flag.String("model", os.Getenv("EMBED_MODEL"), "embedding model")
		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		chatModel  = flag.String("chat-model", envOr("CHAT_MODEL", "llama3.1:8b"), "answering model")
		judgeModel = flag.String("judge-model", envOr("JUDGE_MODEL", "llama3.1:8b"), "metric judge model")
		topK       = flag.Int("k", rag.DefaultTopK, "retrieved contexts per query")
		workers    = flag.Int("workers", 4, "concurrent query evaluation")
		qps        = flag.Float64("qps", 0, "pace model calls at this rate (0: unpaced)")
		out        = flag.String("out", "", "write the full report JSON here (default: stdout)")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	queries, err := eval.LoadGoldQueries(*gold)
	if err != nil {
		log.Error("gold set load failed", "error", err)
		os.Exit(1)
	}

	embedder, err := embed.New(embed.Config{
		Provider: *provider,
		Model:    *model,
		BaseURL:  *ollamaURL,
		APIKey:   os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
		log.Error("embedder init failed", "error", err)
		os.Exit(1)
	}

	store, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	retriever := rag.NewRetriever(embedder, store, *topK)
	answerer := rag.NewChatAnswerer(ollama.NewChatClient(*ollamaURL, *chatModel, 0.3))
	judge := ollama.NewChatClient(*ollamaURL, *judgeModel, 0)

	harness := eval.NewHarness(retriever, answerer,
		[]eval.Scorer{eval.NewFaithfulness(judge), eval.NewAnswerRelevancy(judge)},
		eval.Options{Workers: *workers, QPS: *qps, Logger: log})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("evaluating", "queries", len(queries), "k", *topK,
		"collection", *collection, "chat_model", *chatModel, "judge_model", *judgeModel)

	report, err := harness.Evaluate(ctx, queries)
	if err != nil {
		log.Error("evaluation aborted", "error", err)
		os.Exit(1)
	}

	for name, m := range report.Metrics {
		log.Info("metric", "name", name, "mean", m.Mean, "scored", m.Scored)
	}
	for _, q := range report.Failed {
		log.Warn("query failed", "query", q)
	}

	w := os.Stdout
	if *out != "" {
		w, err = os.Create(*out)
		if err != nil {
			log.Error("create report failed", "error", err)
			os.Exit(1)
		}
		defer w.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		log.Error("write report failed", "error", err)
		os.Exit(1)
	}
}
