// Command ingestd consumes normalized listings from a NATS feed and
// appends them to the collection. Failed listings are retried and then
// parked on the DLQ subject.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

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
		natsURL     = envOr("NATS_URL", nats.DefaultURL)
		qdrantAddr  = envOr("QDRANT_URL", "localhost:6334")
		collection  = envOr("QDRANT_COLLECTION", "homegenie")
		provider    = envOr("EMBED_PROVIDER", "ollama")
		model       = os.Getenv("EMBED_MODEL")
		ollamaURL   = envOr("OLLAMA_URL", "http://localhost:11434")
		sourceName  = envOr("SOURCE_NAME", "listing_feed")
		metricsAddr = envOr("METRICS_ADDR", ":9091")
	)

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(log)

	embedder, err := embed.New(embed.Config{
		Provider: provider,
		Model:    model,
		BaseURL:  ollamaURL,
		APIKey:   os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
		log.Error("embedder init failed", "error", err)
		os.Exit(1)
	}

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		log.Error("ensure collection failed", "error", err)
		os.Exit(1)
	}

	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Error("nats connect failed", "url", natsURL, "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	reg := metrics.New()
	m := metrics.NewIngestMetrics(reg, provider)
	reg.ServeAsync(metricsAddr, log)

	pipeline := ingest.NewPipeline(ingest.Deps{Embedder: embedder, Store: store, Logger: log})

	sub, err := ingest.StartConsumer(nc, pipeline, sourceName, m)
	if err != nil {
		log.Error("subscribe failed", "error", err)
		os.Exit(1)
	}

	log.Info("ingestd running",
		"subject", ingest.ListingSubject, "collection", collection,
		"provider", provider, "model", embedder.Model())

	<-ctx.Done()
	log.Info("shutting down")
	if err := sub.Drain(); err != nil {
		log.Error("drain failed", "error", err)
	}
}
