// Command chat serves a JSON question-answering API over the seeded
// collection: embed the question, search Qdrant, answer with Ollama.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
	"github.com/HomeGenieAI/homegenie-engine/engine/embed"
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

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	qdrantAddr := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", "homegenie")
	provider := envOr("EMBED_PROVIDER", "ollama")
	embedModel := os.Getenv("EMBED_MODEL")
	ollamaURL := envOr("OLLAMA_URL", "http://localhost:11434")
	chatModel := envOr("CHAT_MODEL", "llama3.1:8b")
	port := envOr("PORT", "8090")

	embedder, err := embed.New(embed.Config{
		Provider: provider,
		Model:    embedModel,
		BaseURL:  ollamaURL,
		APIKey:   os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
		logger.Error("embedder init failed", "error", err)
		os.Exit(1)
	}

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		logger.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	svc := rag.NewService(
		rag.NewRetriever(embedder, store, rag.DefaultTopK),
		rag.NewChatAnswerer(ollama.NewChatClient(ollamaURL, chatModel, 0.3)),
		logger,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		handleChat(w, r, svc, logger)
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: otelhttp.NewHandler(corsMiddleware(mux), "chat-api"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("chat API starting", "port", port, "collection", collection, "chat_model", chatModel)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type chatRequest struct {
	Question string           `json:"question"`
	History  []domain.Message `json:"history,omitempty"`
}

func handleChat(w http.ResponseWriter, r *http.Request, svc *rag.Service, logger *slog.Logger) {
	if r.Method != "POST" {
		http.Error(w, "method not allowed", 405)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		http.Error(w, `{"error":"question required"}`, 400)
		return
	}

	answer, err := svc.Query(r.Context(), req.Question, req.History)
	if err != nil {
		logger.Error("query failed", "error", err)
		status := 500
		if errors.Is(err, domain.ErrUnavailable) {
			status = 503
		}
		http.Error(w, `{"error":"query failed"}`, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}
