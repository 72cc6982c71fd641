// Command seed indexes a normalized listing file into Qdrant. With
// -drop-old (the default) the collection is destroyed and rebuilt, so
// re-running the same file yields the same collection contents.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/HomeGenieAI/homegenie-engine/engine/embed"
	"github.com/HomeGenieAI/homegenie-engine/engine/ingest"
	"github.com/HomeGenieAI/homegenie-engine/engine/semantic"
	"github.com/HomeGenieAI/homegenie-engine/pkg/metrics"
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
		file        = flag.String("file", "", "normalized JSON listing file")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", "homegenie"), "Qdrant collection name")
		provider    = flag.String("provider", envOr("EMBED_PROVIDER", "ollama"), "embedding provider (openai|ollama)")
		model       = flag.String("model", os.Getenv("EMBED_MODEL"), "embedding model (provider default if empty)")
		ollamaURL   = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		dropOld     = flag.Bool("drop-old", true, "recreate the collection before writing")
		metricsAddr = flag.String("metrics", "", "serve /metrics on this address (empty: off)")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if *file == "" {
		log.Error("missing -file")
		os.Exit(2)
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

	reg := metrics.New()
	m := metrics.NewIngestMetrics(reg, *provider)
	if *metricsAddr != "" {
		reg.ServeAsync(*metricsAddr, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listings, sourceName, err := ingest.LoadRecords(*file)
	if err != nil {
		log.Error("load records failed", "error", err)
		os.Exit(1)
	}
	log.Info("seeding collection",
		"file", *file, "listings", len(listings),
		"collection", *collection, "provider", *provider,
		"model", embedder.Model(), "drop_old", *dropOld)

	pipeline := ingest.NewPipeline(ingest.Deps{Embedder: embedder, Store: store, Logger: log})

	start := time.Now()
	report, err := pipeline.Index(ctx, ingest.Request{
		Listings:   listings,
		SourceName: sourceName,
		DropOld:    *dropOld,
	})
	m.IndexDuration.Since(start)
	m.DocumentsIndexed.Add(int64(report.Written))
	m.ListingsSkipped.Add(int64(report.Skipped))
	if err != nil {
		m.BatchesFailed.Inc()
		log.Error("seeding failed", "written", report.Written, "error", err)
		os.Exit(1)
	}

	log.Info("seeding complete", "written", report.Written, "skipped", report.Skipped,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if n, err := store.Count(ctx); err == nil {
		log.Info("collection size", "collection", *collection, "points", n)
	}
}
